package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/oculis/filevault/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authenticator extracts the caller identity from the Authorization header.
// Authentication itself happens in the external auth service; this middleware
// only verifies the shared-secret signature and unpacks the user id.
func (s *Server) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeErrorStatus(w, http.StatusUnauthorized, "missing token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeErrorStatus(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		userID, err := auth.GetUserIDFromToken(parts[1], s.jwtSecret)
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext returns the authenticated caller identity placed by
// the authenticator middleware.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
