package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/render"
	"github.com/nkiryanov/fittrack/internal/handlers/userctx"
)

type authService interface {
	// Authenticate request and return user id
	// May write renewed access token to the response
	AuthenticateRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Let only authenticated requests through, user id is put to request context
func AuthMiddleware(as authService, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := as.AuthenticateRequest(w, r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), userID)))
			case isAuthError(err):
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			default:
				l.Error("authentication failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
		})
	}
}

func isAuthError(err error) bool {
	for _, target := range []error{
		apperrors.ErrTokenMissing,
		apperrors.ErrTokenExpired,
		apperrors.ErrTokenInvalid,
		apperrors.ErrTokenRevoked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
