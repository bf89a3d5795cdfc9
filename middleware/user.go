package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
)

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// WithTarget loads the user named by the {userID} route param.
func WithTarget(users UserLoader) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 64)
			if err != nil || id == 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			u, err := users.GetUser(r.Context(), uint(id))
			if err != nil {
				if errors.Is(err, db.ErrUserNotFound) {
					w.WriteHeader(http.StatusNotFound)
				} else {
					w.WriteHeader(http.StatusInternalServerError)
				}
				return
			}
			h.ServeHTTP(w, r.WithContext(WithTargetUser(r.Context(), u)))
		}
		return http.HandlerFunc(fn)
	}
}

// CanManageTarget only lets the target itself or an admin through.
// Must run after Authenticator and WithTarget.
func CanManageTarget(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !UserFrom(r.Context()).CanManage(TargetFrom(r.Context())) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
