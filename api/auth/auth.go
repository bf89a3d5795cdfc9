package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/api"
	"github.com/puoklam/social-graph-backend/auth"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenCookie = "accessToken"

type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertSession(ctx context.Context, userID uint, ip, pushToken string) (*model.Session, error)
	DeleteSession(ctx context.Context, userID uint, ip string) error
}

type Handlers struct {
	logger *zap.Logger
	store  Store
	signer *auth.Signer
	auth   middleware.Auth
}

func (h *Handlers) signin(w http.ResponseWriter, r *http.Request) {
	var body InSignin
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid input")
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if body.Email == "" || body.Password == "" {
		api.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	c := r.Context()
	u, err := h.store.GetUserByEmail(c, body.Email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.logger.Error("signin lookup", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Pass), []byte(body.Password)) != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ip := middleware.DeviceIPFrom(c)
	if _, err := h.store.UpsertSession(c, u.ID, ip, middleware.ExpoPushTokenFrom(c)); err != nil {
		h.logger.Error("upsert session", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	accessToken, err := h.signer.AccessToken(u.ID, ip)
	if err != nil {
		h.logger.Error("issue access token", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Expires:  time.Now().Add(h.signer.TTL()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	api.JSON(w, http.StatusOK, &OutSignin{
		AccessToken: accessToken,
		ExpiresIn:   int64(h.signer.TTL().Seconds()),
		User:        u,
	})
}

func (h *Handlers) signout(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r.Context())
	if err := h.store.DeleteSession(r.Context(), s.UserID, s.IP); err != nil {
		h.logger.Error("delete session", zap.Uint("user_id", s.UserID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) user(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, middleware.UserFrom(r.Context()))
}

func (h *Handlers) SetupRoutes(r *chi.Mux) {
	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.WithExpoPushToken).Post("/signin", h.signin)
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Required)
			r.With(middleware.NoCache).Get("/user", h.user)
			r.Post("/signout", h.signout)
		})
	})
}

func NewHandlers(logger *zap.Logger, store Store, signer *auth.Signer, a middleware.Auth) *Handlers {
	return &Handlers{logger: logger, store: store, signer: signer, auth: a}
}
