package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/puoklam/social-graph-backend/auth"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

type Identity interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetSession(ctx context.Context, userID uint, ip string) (*model.Session, error)
}

var errNoToken = errors.New("no access token")

func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("accessToken"); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the caller. The returned status is meaningful only
// when err is not nil.
func authenticate(r *http.Request, ids Identity, signer *auth.Signer) (*model.User, *model.Session, int, error) {
	raw := accessToken(r)
	if raw == "" {
		return nil, nil, http.StatusUnauthorized, errNoToken
	}
	uid, ip, err := signer.Parse(raw)
	if err != nil {
		return nil, nil, http.StatusUnauthorized, err
	}
	// match session
	if ip != DeviceIPFrom(r.Context()) {
		return nil, nil, http.StatusUnauthorized, auth.ErrInvalidToken
	}
	u, err := ids.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, http.StatusForbidden, err
		}
		return nil, nil, http.StatusInternalServerError, err
	}
	s, err := ids.GetSession(r.Context(), uid, ip)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			return nil, nil, http.StatusForbidden, err
		}
		return nil, nil, http.StatusInternalServerError, err
	}
	return u, s, 0, nil
}

func withIdentity(r *http.Request, u *model.User, s *model.Session) *http.Request {
	ctx := context.WithValue(WithUser(r.Context(), u), sessionKey, s)
	return r.WithContext(ctx)
}

// Authenticator rejects requests without a valid access token and session.
// Must run after WithDeviceInfo.
func Authenticator(ids Identity, signer *auth.Signer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			u, s, status, err := authenticate(r, ids, signer)
			if err != nil {
				if status >= http.StatusInternalServerError {
					logger.Error("authenticate", zap.Error(err))
				}
				w.WriteHeader(status)
				return
			}
			h.ServeHTTP(w, withIdentity(r, u, s))
		}
		return http.HandlerFunc(fn)
	}
}

// OptionalAuthenticator resolves the caller when it can and otherwise lets
// the request through anonymously. Infrastructure failures still fail.
func OptionalAuthenticator(ids Identity, signer *auth.Signer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			u, s, status, err := authenticate(r, ids, signer)
			if err != nil {
				if status >= http.StatusInternalServerError {
					logger.Error("authenticate", zap.Error(err))
					w.WriteHeader(status)
					return
				}
				if !errors.Is(err, errNoToken) {
					logger.Debug("anonymous request with unusable token", zap.Error(err))
				}
				h.ServeHTTP(w, r)
				return
			}
			h.ServeHTTP(w, withIdentity(r, u, s))
		}
		return http.HandlerFunc(fn)
	}
}

// Auth bundles the required and optional authenticators for route setup.
type Auth struct {
	Required func(http.Handler) http.Handler
	Optional func(http.Handler) http.Handler
}

func NewAuth(ids Identity, signer *auth.Signer, logger *zap.Logger) Auth {
	return Auth{
		Required: Authenticator(ids, signer, logger),
		Optional: OptionalAuthenticator(ids, signer, logger),
	}
}
