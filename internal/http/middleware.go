package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/musiccy/music-svc/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// Access and refresh tokens travel in dedicated headers.
const (
	accessTokenHeader  = "U-Access-Token"
	refreshTokenHeader = "U-Refresh-Token"
)

// requireAuth resolves the access token to a verified, active user and
// stores it on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimSpace(r.Header.Get(accessTokenHeader))
		if tokenString == "" {
			s.respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := s.auth.Authenticate(r.Context(), tokenString)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestUser returns the authenticated user placed by requireAuth.
func requestUser(r *http.Request) (domain.User, bool) {
	user, ok := r.Context().Value(userContextKey).(domain.User)
	return user, ok
}
