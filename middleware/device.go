package middleware

import (
	"context"
	"net"
	"net/http"
)

func WithDeviceInfo(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		ctx := context.WithValue(r.Context(), deviceIPKey, ip)
		h.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}

// WithExpoPushToken picks up the optional X-Expo-Push-Token header.
func WithExpoPushToken(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if t := r.Header.Get("X-Expo-Push-Token"); t != "" {
			r = r.WithContext(context.WithValue(r.Context(), expoPushTokenKey, t))
		}
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
