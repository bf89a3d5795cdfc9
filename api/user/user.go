package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/puoklam/social-graph-backend/api"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost   = 12
	maxUploadBytes = 10 << 20
)

var pictureExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id uint) ([]uint, error)
}

type Graph interface {
	SearchUsers(ctx context.Context, query string) ([]model.User, error)
	Following(ctx context.Context, userID uint) (model.IDSet, error)
	FollowerCount(ctx context.Context, userID uint) (int64, error)
	Forget(ctx context.Context, userIDs ...uint)
}

type Pictures interface {
	Save(ctx context.Context, r io.Reader, original string) (string, error)
	Remove(name string) error
}

type Handlers struct {
	logger   *zap.Logger
	store    Store
	graph    Graph
	pictures Pictures
	auth     middleware.Auth
	validate *validator.Validate
	cost     int
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	users, err := h.graph.SearchUsers(r.Context(), search)
	if err != nil {
		h.logger.Error("search users", zap.String("search", search), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, &OutListUsers{Users: users, Search: search})
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var body InCreateUser
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid input")
		return
	}
	body.normalize()
	if err := h.validate.Struct(&body); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	pass, err := bcrypt.GenerateFromPassword([]byte(body.Password), h.cost)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid password")
		return
	}
	u := &model.User{
		Username: body.Username,
		Email:    body.Email,
		Pass:     string(pass),
		Roles:    []string{model.RoleUser},
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, db.ErrDuplicateUser) {
			api.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("create user", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/users/"+uintString(u.ID))
	api.JSON(w, http.StatusCreated, u)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u := middleware.TargetFrom(r.Context())
	following, err := h.graph.Following(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("load following", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	followers, err := h.graph.FollowerCount(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("count followers", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := &OutGetUser{
		User:           u,
		FollowingCount: following.Len(),
		FollowerCount:  followers,
	}
	if me := middleware.UserFrom(r.Context()); me != nil && me.ID != u.ID {
		mine, err := h.graph.Following(r.Context(), me.ID)
		if err != nil {
			h.logger.Error("load following", zap.Uint("user_id", me.ID), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		followed := mine.Has(u.ID)
		out.FollowedByMe = &followed
	}
	api.JSON(w, http.StatusOK, out)
}

func (h *Handlers) parseEditForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

func (h *Handlers) editUser(w http.ResponseWriter, r *http.Request) {
	u := middleware.TargetFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := h.parseEditForm(r); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid form")
		return
	}
	body := InEditUser{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	body.normalize()
	if err := h.validate.Struct(&body); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	u.Username = body.Username
	u.Email = body.Email
	u.Roles = []string{model.RoleUser}
	if body.Password != "" {
		pass, err := bcrypt.GenerateFromPassword([]byte(body.Password), h.cost)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid password")
			return
		}
		u.Pass = string(pass)
	}

	oldPicture := u.Picture
	file, header, err := r.FormFile("picture")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		api.Error(w, http.StatusBadRequest, "invalid picture")
		return
	default:
		defer file.Close()
		if !pictureExts[strings.ToLower(filepath.Ext(header.Filename))] {
			api.Error(w, http.StatusBadRequest, "unsupported picture type")
			return
		}
		// a failed upload keeps the previous picture
		if name, err := h.pictures.Save(r.Context(), file, header.Filename); err != nil {
			h.logger.Warn("store picture", zap.Uint("user_id", u.ID), zap.Error(err))
		} else {
			u.Picture = name
		}
	}

	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		if u.Picture != oldPicture {
			h.removePicture(u.Picture)
		}
		if errors.Is(err, db.ErrDuplicateUser) {
			api.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("update user", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if oldPicture != "" && u.Picture != oldPicture {
		h.removePicture(oldPicture)
	}
	api.JSON(w, http.StatusOK, u)
}

func (h *Handlers) removePicture(name string) {
	if err := h.pictures.Remove(name); err != nil {
		h.logger.Warn("remove picture", zap.String("picture", name), zap.Error(err))
	}
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	u := middleware.TargetFrom(r.Context())
	followers, err := h.store.DeleteUser(r.Context(), u.ID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.logger.Error("delete user", zap.Uint("user_id", u.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.graph.Forget(r.Context(), append(followers, u.ID)...)
	if u.Picture != "" {
		h.removePicture(u.Picture)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetupRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)

	target := middleware.WithTarget(h.store)
	r.With(target, h.auth.Optional, middleware.NoCache).Get("/{userID}", h.getUser)

	manage := r.With(target, h.auth.Required, middleware.CanManageTarget)
	manage.Put("/{userID}", h.editUser)
	manage.Post("/{userID}/edit", h.editUser)
	manage.Delete("/{userID}", h.deleteUser)
}

func NewHandlers(l *zap.Logger, store Store, graph Graph, pictures Pictures, auth middleware.Auth) *Handlers {
	return &Handlers{
		logger:   l,
		store:    store,
		graph:    graph,
		pictures: pictures,
		auth:     auth,
		validate: validator.New(),
		cost:     passwordCost,
	}
}
