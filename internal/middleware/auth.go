package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"domore/internal/auth"
	"domore/internal/logger"

	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Session, error)
}

// Authenticate validates the bearer token and stores the session in the
// request context. Requests without a valid token get 401.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, "missing bearer token")
				return
			}

			session, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				logger.Warn("HTTP: authentication failed",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("client_ip", r.RemoteAddr),
					zap.Error(err))

				message := "invalid session"
				if errors.Is(err, auth.ErrRevoked) {
					message = "session revoked"
				}
				unauthorized(w, r, message)
				return
			}

			noteUser(r.Context(), session.User.ID, session.User.Email)
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="domore"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      "UNAUTHENTICATED",
		"message":    message,
		"request_id": GetRequestID(r.Context()),
	})
}
