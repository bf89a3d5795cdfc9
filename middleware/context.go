package middleware

import (
	"context"

	"github.com/puoklam/social-graph-backend/db/model"
)

type contextKey string

const (
	userKey          contextKey = "user"
	sessionKey       contextKey = "session"
	targetKey        contextKey = "target"
	deviceIPKey      contextKey = "deviceIP"
	expoPushTokenKey contextKey = "expoPushToken"
	requestIDKey     contextKey = "requestID"
)

// UserFrom returns the authenticated user, or nil for anonymous requests.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

func SessionFrom(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionKey).(*model.Session)
	return s
}

// TargetFrom returns the user addressed by the {userID} route param.
func TargetFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(targetKey).(*model.User)
	return u
}

func DeviceIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(deviceIPKey).(string)
	return ip
}

func ExpoPushTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(expoPushTokenKey).(string)
	return t
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func WithTargetUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, targetKey, u)
}
