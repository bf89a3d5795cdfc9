package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users  map[uint]*model.User
	nextID uint
}

func newFakeStore(users ...*model.User) *fakeStore {
	s := &fakeStore{users: make(map[uint]*model.User), nextID: 1}
	for _, u := range users {
		s.users[u.ID] = u
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	return s
}

func (s *fakeStore) taken(id uint, email, username string) bool {
	for _, u := range s.users {
		if u.ID != id && (u.Email == email || u.Username == username) {
			return true
		}
	}
	return false
}

func (s *fakeStore) CreateUser(ctx context.Context, u *model.User) error {
	if s.taken(0, u.Email, u.Username) {
		return db.ErrDuplicateUser
	}
	u.ID = s.nextID
	s.nextID++
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *fakeStore) UpdateUser(ctx context.Context, u *model.User) error {
	if s.taken(u.ID, u.Email, u.Username) {
		return db.ErrDuplicateUser
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *fakeStore) DeleteUser(ctx context.Context, id uint) ([]uint, error) {
	if _, ok := s.users[id]; !ok {
		return nil, db.ErrUserNotFound
	}
	delete(s.users, id)
	return []uint{7}, nil
}

type fakeGraph struct {
	following map[uint]model.IDSet
	followers map[uint]int64
	forgotten []uint
	users     []model.User
}

func (g *fakeGraph) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	out := make([]model.User, 0)
	for _, u := range g.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (g *fakeGraph) Following(ctx context.Context, userID uint) (model.IDSet, error) {
	if s, ok := g.following[userID]; ok {
		return s, nil
	}
	return model.NewIDSet(), nil
}

func (g *fakeGraph) FollowerCount(ctx context.Context, userID uint) (int64, error) {
	return g.followers[userID], nil
}

func (g *fakeGraph) Forget(ctx context.Context, userIDs ...uint) {
	g.forgotten = append(g.forgotten, userIDs...)
}

type fakePictures struct {
	saved   []string
	removed []string
}

func (p *fakePictures) Save(ctx context.Context, r io.Reader, original string) (string, error) {
	name := "stored-" + original
	p.saved = append(p.saved, name)
	return name, nil
}

func (p *fakePictures) Remove(name string) error {
	p.removed = append(p.removed, name)
	return nil
}

// testAuth trusts the X-User header so handlers can be exercised without tokens.
func testAuth(store *fakeStore) middleware.Auth {
	resolve := func(r *http.Request) *http.Request {
		id, err := strconv.ParseUint(r.Header.Get("X-User"), 10, 64)
		if err != nil {
			return r
		}
		u, err := store.GetUser(r.Context(), uint(id))
		if err != nil {
			return r
		}
		return r.WithContext(middleware.WithUser(r.Context(), u))
	}
	return middleware.Auth{
		Required: func(h http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r = resolve(r)
				if middleware.UserFrom(r.Context()) == nil {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				h.ServeHTTP(w, r)
			})
		},
		Optional: func(h http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h.ServeHTTP(w, resolve(r))
			})
		},
	}
}

type fixture struct {
	store    *fakeStore
	graph    *fakeGraph
	pictures *fakePictures
	router   http.Handler
}

func newFixture() *fixture {
	alice := &model.User{Base: model.Base{ID: 1}, Username: "alice", Email: "alice@example.com", Roles: []string{model.RoleUser}, Picture: "old.png"}
	bob := &model.User{Base: model.Base{ID: 2}, Username: "bob", Email: "bob@example.com", Roles: []string{model.RoleUser}}
	admin := &model.User{Base: model.Base{ID: 3}, Username: "root", Email: "root@example.com", Roles: []string{model.RoleAdmin}}
	f := &fixture{
		store: newFakeStore(alice, bob, admin),
		graph: &fakeGraph{
			following: map[uint]model.IDSet{1: model.NewIDSet(2)},
			followers: map[uint]int64{2: 1},
			users:     []model.User{*alice, *bob, *admin},
		},
		pictures: &fakePictures{},
	}
	h := NewHandlers(zap.NewNop(), f.store, f.graph, f.pictures, testAuth(f.store))
	h.cost = bcrypt.MinCost
	r := chi.NewRouter()
	r.Route("/users", h.SetupRoutes)
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request, as uint) *httptest.ResponseRecorder {
	if as != 0 {
		req.Header.Set("X-User", strconv.FormatUint(uint64(as), 10))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListUsersSearch(t *testing.T) {
	f := newFixture()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/users/?search=AL", nil), 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out OutListUsers
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Users) != 1 || out.Users[0].Username != "alice" || out.Search != "AL" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture()
	body := `{"username":"carol","email":" Carol@Example.com ","password":"s3cretpass"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(body)), 0)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if loc := rec.Header().Get("Location"); loc != "/users/4" {
		t.Fatalf("location %q", loc)
	}
	if strings.Contains(rec.Body.String(), "s3cretpass") {
		t.Fatal("password leaked in response")
	}
	u := f.store.users[4]
	if u.Email != "carol@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if !u.HasRole(model.RoleUser) || len(u.Roles) != 1 {
		t.Fatalf("roles %v", u.Roles)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Pass), []byte("s3cretpass")) != nil {
		t.Fatal("password not hashed with bcrypt")
	}
}

func TestCreateUserRejects(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"bad email", `{"username":"carol","email":"nope","password":"s3cretpass"}`, http.StatusBadRequest},
		{"short password", `{"username":"carol","email":"c@example.com","password":"x"}`, http.StatusBadRequest},
		{"duplicate", `{"username":"bob","email":"b2@example.com","password":"s3cretpass"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(tc.body)), 0)
			if rec.Code != tc.status {
				t.Fatalf("want %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/users/2", nil), 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out struct {
		Username       string `json:"username"`
		FollowerCount  int64  `json:"follower_count"`
		FollowingCount int    `json:"following_count"`
		FollowedByMe   *bool  `json:"followed_by_me"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Username != "bob" || out.FollowerCount != 1 || out.FollowingCount != 0 {
		t.Fatalf("unexpected %+v", out)
	}
	if out.FollowedByMe == nil || !*out.FollowedByMe {
		t.Fatal("alice follows bob")
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/users/2", nil), 0)
	if strings.Contains(rec.Body.String(), "followed_by_me") {
		t.Fatal("anonymous view must not carry followed_by_me")
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/users/99", nil), 0); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func multipartEdit(t *testing.T, fields map[string]string, picture string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if picture != "" {
		fw, err := mw.CreateFormFile("picture", picture)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("image bytes"))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPut, "/users/1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestEditUser(t *testing.T) {
	f := newFixture()
	f.store.users[1].Roles = []string{model.RoleUser, model.RoleAdmin}
	req := multipartEdit(t, map[string]string{"username": "alicia", "email": "alicia@example.com"}, "Me.PNG")
	rec := f.do(req, 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	u := f.store.users[1]
	if u.Username != "alicia" || u.Picture != "stored-Me.PNG" {
		t.Fatalf("not updated: %+v", u)
	}
	if len(u.Roles) != 1 || u.Roles[0] != model.RoleUser {
		t.Fatalf("roles not reset: %v", u.Roles)
	}
	if len(f.pictures.removed) != 1 || f.pictures.removed[0] != "old.png" {
		t.Fatalf("old picture not removed: %v", f.pictures.removed)
	}
}

func TestEditUserAuthorization(t *testing.T) {
	f := newFixture()
	fields := map[string]string{"username": "alicia", "email": "alicia@example.com"}

	if rec := f.do(multipartEdit(t, fields, ""), 0); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want 401, got %d", rec.Code)
	}
	if rec := f.do(multipartEdit(t, fields, ""), 2); rec.Code != http.StatusForbidden {
		t.Fatalf("other user: want 403, got %d", rec.Code)
	}
	if rec := f.do(multipartEdit(t, fields, ""), 3); rec.Code != http.StatusOK {
		t.Fatalf("admin: want 200, got %d", rec.Code)
	}
}

func TestEditUserConflict(t *testing.T) {
	f := newFixture()
	req := multipartEdit(t, map[string]string{"username": "bob", "email": "alice@example.com"}, "me.png")
	if rec := f.do(req, 1); rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
	if f.store.users[1].Username != "alice" {
		t.Fatal("user changed on conflict")
	}
	if len(f.pictures.removed) != 1 || f.pictures.removed[0] != "stored-me.png" {
		t.Fatalf("new picture not cleaned up: %v", f.pictures.removed)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodDelete, "/users/1", nil)
	if rec := f.do(req, 2); rec.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/users/1", nil)
	if rec := f.do(req, 1); rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
	if _, ok := f.store.users[1]; ok {
		t.Fatal("user not deleted")
	}
	if len(f.graph.forgotten) != 2 || f.graph.forgotten[0] != 7 || f.graph.forgotten[1] != 1 {
		t.Fatalf("cache not invalidated: %v", f.graph.forgotten)
	}
	if len(f.pictures.removed) != 1 || f.pictures.removed[0] != "old.png" {
		t.Fatalf("picture not removed: %v", f.pictures.removed)
	}
}
