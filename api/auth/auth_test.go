package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/auth"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type sessionKey struct {
	userID uint
	ip     string
}

type fakeStore struct {
	users    map[uint]*model.User
	sessions map[sessionKey]*model.Session
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	pass, err := bcrypt.GenerateFromPassword([]byte("s3cretpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeStore{
		users: map[uint]*model.User{
			1: {Base: model.Base{ID: 1}, Username: "alice", Email: "alice@example.com", Pass: string(pass)},
		},
		sessions: make(map[sessionKey]*model.Session),
	}
}

func (s *fakeStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (s *fakeStore) UpsertSession(ctx context.Context, userID uint, ip, pushToken string) (*model.Session, error) {
	session := &model.Session{UserID: userID, IP: ip, ExpoPushToken: pushToken}
	s.sessions[sessionKey{userID, ip}] = session
	return session, nil
}

func (s *fakeStore) GetSession(ctx context.Context, userID uint, ip string) (*model.Session, error) {
	session, ok := s.sessions[sessionKey{userID, ip}]
	if !ok {
		return nil, db.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeStore) DeleteSession(ctx context.Context, userID uint, ip string) error {
	delete(s.sessions, sessionKey{userID, ip})
	return nil
}

func newRouter(store *fakeStore) http.Handler {
	signer := auth.NewSigner([]byte("secret"), time.Hour)
	h := NewHandlers(zap.NewNop(), store, signer, middleware.NewAuth(store, signer, zap.NewNop()))
	r := chi.NewRouter()
	r.Use(middleware.WithDeviceInfo)
	h.SetupRoutes(r)
	return r
}

func signin(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(body))
	req.Header.Set("X-Expo-Push-Token", "ExponentPushToken[abc]")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func withToken(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestSigninSignout(t *testing.T) {
	store := newFakeStore(t)
	router := newRouter(store)

	rec := signin(t, router, `{"email":"Alice@example.com","password":"s3cretpass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status %d", rec.Code)
	}
	var out OutSignin
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.AccessToken == "" || out.ExpiresIn != 3600 {
		t.Fatalf("unexpected signin response %+v", out)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Value != out.AccessToken || !c[0].HttpOnly {
		t.Fatalf("access token cookie not set: %v", c)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("want one session, got %d", len(store.sessions))
	}
	for _, s := range store.sessions {
		if s.ExpoPushToken != "ExponentPushToken[abc]" {
			t.Fatalf("push token not stored: %+v", s)
		}
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodGet, "/auth/user", out.AccessToken))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("me: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodPost, "/auth/signout", out.AccessToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("signout status %d", rec.Code)
	}
	if len(store.sessions) != 0 {
		t.Fatal("session survived signout")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodGet, "/auth/user", out.AccessToken))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("token after signout: want 403, got %d", rec.Code)
	}
}

func TestSigninRejects(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"missing password", `{"email":"alice@example.com"}`, http.StatusBadRequest},
		{"unknown email", `{"email":"zed@example.com","password":"s3cretpass"}`, http.StatusUnauthorized},
		{"wrong password", `{"email":"alice@example.com","password":"nope"}`, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(t)
			if rec := signin(t, newRouter(store), tc.body); rec.Code != tc.status {
				t.Fatalf("want %d, got %d", tc.status, rec.Code)
			}
			if len(store.sessions) != 0 {
				t.Fatal("session created for failed signin")
			}
		})
	}
}
