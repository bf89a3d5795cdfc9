package relationship

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/api"
	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/middleware"
	"github.com/puoklam/social-graph-backend/relationship"
	"go.uber.org/zap"
)

type Graph interface {
	Follow(ctx context.Context, actor, target *model.User) (relationship.Result, error)
	Unfollow(ctx context.Context, actor, target *model.User) (relationship.Result, error)
	Following(ctx context.Context, userID uint) (model.IDSet, error)
	Followers(ctx context.Context, userID uint) ([]uint, error)
}

type Handlers struct {
	logger *zap.Logger
	graph  Graph
	users  middleware.UserLoader
	auth   middleware.Auth
}

type OutMutation struct {
	Result    relationship.Result `json:"result"`
	Following bool                `json:"following"`
}

type OutFollowing struct {
	UserID    uint   `json:"user_id"`
	Following []uint `json:"following"`
}

type OutFollowers struct {
	UserID    uint   `json:"user_id"`
	Followers []uint `json:"followers"`
}

type OutRelationship struct {
	Following  bool `json:"following"`
	FollowedBy bool `json:"followed_by"`
}

type mutation func(ctx context.Context, actor, target *model.User) (relationship.Result, error)

func (h *Handlers) mutate(op string, fn mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.UserFrom(r.Context())
		target := middleware.TargetFrom(r.Context())
		res, err := fn(r.Context(), actor, target)
		if err != nil {
			if !errors.Is(err, relationship.ErrPersistence) {
				h.logger.Error(op, zap.Error(err))
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		out := &OutMutation{Result: res}
		if actor != nil && actor.Following != nil {
			out.Following = actor.Following.Has(target.ID)
		}
		api.JSON(w, http.StatusOK, out)
	}
}

func (h *Handlers) following(w http.ResponseWriter, r *http.Request) {
	u := middleware.TargetFrom(r.Context())
	ids, err := h.graph.Following(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("load following", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, &OutFollowing{UserID: u.ID, Following: ids.Slice()})
}

func (h *Handlers) followers(w http.ResponseWriter, r *http.Request) {
	u := middleware.TargetFrom(r.Context())
	ids, err := h.graph.Followers(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("load followers", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, &OutFollowers{UserID: u.ID, Followers: ids})
}

func (h *Handlers) relationship(w http.ResponseWriter, r *http.Request) {
	me := middleware.UserFrom(r.Context())
	u := middleware.TargetFrom(r.Context())
	mine, err := h.graph.Following(r.Context(), me.ID)
	if err != nil {
		h.logger.Error("load following", zap.Uint("user_id", me.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	theirs, err := h.graph.Following(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("load following", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, &OutRelationship{
		Following:  mine.Has(u.ID),
		FollowedBy: theirs.Has(me.ID),
	})
}

// SetupRoutes expects to be mounted under the same /users router as the
// user handlers.
func (h *Handlers) SetupRoutes(r chi.Router) {
	target := middleware.WithTarget(h.users)
	// anonymous callers reach the service and are rejected there
	r.With(target, h.auth.Optional).Post("/{userID}/follow", h.mutate("follow", h.graph.Follow))
	r.With(target, h.auth.Optional).Post("/{userID}/unfollow", h.mutate("unfollow", h.graph.Unfollow))
	r.With(target, middleware.NoCache).Get("/{userID}/following", h.following)
	r.With(target, middleware.NoCache).Get("/{userID}/followers", h.followers)
	r.With(target, h.auth.Required, middleware.NoCache).Get("/{userID}/relationship", h.relationship)
}

func NewHandlers(l *zap.Logger, graph Graph, users middleware.UserLoader, auth middleware.Auth) *Handlers {
	return &Handlers{logger: l, graph: graph, users: users, auth: auth}
}
