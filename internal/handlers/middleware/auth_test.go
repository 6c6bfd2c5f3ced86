package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/userctx"
)

// Allow to use a function as auth service
type authFunc func(w http.ResponseWriter, r *http.Request) (uuid.UUID, error)

func (f authFunc) AuthenticateRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	return f(w, r)
}

type errorLoggerFunc func(string, ...any)

func (f errorLoggerFunc) Error(msg string, v ...any) { f(msg, v...) }

func TestAuthMiddleware_Auth(t *testing.T) {
	userID := uuid.New()

	// Simple handler that try to get user from context
	// If ok write it id to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set user to context or write error to response
		id, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(id.String()))
		require.NoError(t, err, "should write user id to response")
	})

	noLog := errorLoggerFunc(func(string, ...any) {})

	get := func(t *testing.T, h http.Handler) (*http.Response, string) {
		srv := httptest.NewServer(h)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		return resp, string(body)
	}

	t.Run("auth ok", func(t *testing.T) {
		// Middleware that always return ok
		middleware := AuthMiddleware(authFunc(func(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
			return userID, nil
		}), noLog)

		resp, body := get(t, middleware(handler))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", body)
		require.Equal(t, userID.String(), body, "should return user id in response")
	})

	t.Run("renewed access reaches client", func(t *testing.T) {
		middleware := AuthMiddleware(authFunc(func(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
			w.Header().Set("Authorization", "Bearer renewed")
			return userID, nil
		}), noLog)

		resp, _ := get(t, middleware(handler))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Bearer renewed", resp.Header.Get("Authorization"))
	})

	for _, authErr := range []error{
		apperrors.ErrTokenMissing,
		apperrors.ErrTokenExpired,
		apperrors.ErrTokenInvalid,
		fmt.Errorf("wrapped: %w", apperrors.ErrTokenRevoked),
	} {
		t.Run("auth fail "+authErr.Error(), func(t *testing.T) {
			middleware := AuthMiddleware(authFunc(func(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
				return uuid.Nil, authErr
			}), noLog)

			resp, body := get(t, middleware(handler))

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", body)
			require.JSONEq(t, `{"message": "Unauthorized"}`, body)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		logged := 0
		middleware := AuthMiddleware(authFunc(func(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
			return uuid.Nil, errors.New("db is down")
		}), errorLoggerFunc(func(string, ...any) { logged++ }))

		resp, body := get(t, middleware(handler))

		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.JSONEq(t, `{"message": "Internal server error"}`, body)
		require.Equal(t, 1, logged, "failure must be logged")
	})
}
