package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/fittrack/internal/service/auth"
)

func Test_AuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login ok", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "nk@x.com", "StrongEnoughPassword")

		resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword"}`)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.Contains(t, body, `"message":"Login successful"`)

		refresh := cookieByName(resp, auth.RefreshCookieName)
		require.NotNil(t, refresh, "refresh cookie should be set")
		require.True(t, refresh.HttpOnly, "refresh cookie should be HttpOnly")
		require.Equal(t, "/", refresh.Path)
		require.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
		require.InDelta(t, (7 * 24 * time.Hour).Seconds(), refresh.MaxAge, 2, "max age should be refresh TTL")

		access := cookieByName(resp, auth.AccessCookieName)
		require.NotNil(t, access, "access cookie should be set")
		require.False(t, access.HttpOnly, "access cookie should be readable by scripts")
		require.InDelta(t, (15 * time.Minute).Seconds(), access.MaxAge, 2, "max age should be access TTL")
		require.Contains(t, body, `"accessToken":"`+access.Value+`"`)
	})

	t.Run("login fails the same way for unknown email and wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "nk@x.com", "StrongEnoughPassword")

		respUnknown, bodyUnknown := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "unknown@x.com", "password": "StrongEnoughPassword"}`)
		respWrong, bodyWrong := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "WrongPassword"}`)

		require.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
		require.Equal(t, respUnknown.StatusCode, respWrong.StatusCode)
		require.JSONEq(t, `{"message": "Invalid credentials"}`, bodyUnknown)
		require.JSONEq(t, bodyUnknown, bodyWrong)
		require.Empty(t, respWrong.Cookies())
	})

	t.Run("login validation failed", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/login", `{"email": "not-an-email"}`)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"password": "This field is required"
				}
			}`, body)
	})

	t.Run("signup, verify and login", func(t *testing.T) {
		env := newTestEnv(t)
		client := newClient(t)

		resp, body := do(t, client, http.MethodPost, env.userURL+"/api/auth/signup",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword", "username": "nk-runner"}`)
		require.Equalf(t, http.StatusCreated, resp.StatusCode, "signup failed. Body: %s", body)
		require.JSONEq(t, `{"message": "Signup successful, please verify your email."}`, body)

		// Unverified user can't login
		resp, body = do(t, client, http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.JSONEq(t, `{"message": "Email not verified"}`, body)

		link := env.mailer.lastLink(t)
		require.Equal(t, "/api/auth/verify-email", link.Path)

		resp, body = do(t, client, http.MethodGet, env.userURL+link.Path+"?"+link.RawQuery, "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "verify failed. Body: %s", body)
		require.JSONEq(t, `{"message": "Email verified successfully"}`, body)

		// Link works only once
		resp, _ = do(t, client, http.MethodGet, env.userURL+link.Path+"?"+link.RawQuery, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = do(t, client, http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("signup twice", func(t *testing.T) {
		env := newTestEnv(t)
		data := `{"email": "nk@x.com", "password": "StrongEnoughPassword", "username": "nk-runner"}`

		resp, _ := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/signup", data)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/signup", data)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "pending verification is not a conflict")
		require.JSONEq(t, `{"message": "Email has not been verified yet, click resend email to verify again"}`, body)
	})

	t.Run("signup with taken verified email", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "nk@x.com", "StrongEnoughPassword")

		resp, _ := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/signup",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword", "username": "nk-runner"}`)

		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("verify with wrong token", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := do(t, newClient(t), http.MethodGet, env.userURL+"/api/auth/verify-email?email=nk%40x.com&token=bad", "")

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{"message": "Invalid or expired verification link"}`, body)
	})

	t.Run("resend verification is acknowledged for any email", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "verified@x.com", "StrongEnoughPassword")

		for _, email := range []string{"unknown@x.com", "verified@x.com"} {
			resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/resend-email-verify",
				`{"email": "`+email+`"}`)

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `{"message": "`+msgResendAcknowledged+`"}`, body)
		}
		require.Empty(t, env.mailer.links, "nothing to send to unknown or verified user")
	})

	t.Run("resend verification sends working link", func(t *testing.T) {
		env := newTestEnv(t)
		resp, _ := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/signup",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword", "username": "nk-runner"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		first := env.mailer.lastLink(t)

		resp, _ = do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/resend-email-verify", `{"email": "nk@x.com"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		second := env.mailer.lastLink(t)

		resp, _ = do(t, newClient(t), http.MethodGet, env.userURL+first.Path+"?"+first.RawQuery, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "old link replaced by the new one")

		resp, _ = do(t, newClient(t), http.MethodGet, env.userURL+second.Path+"?"+second.RawQuery, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh", func(t *testing.T) {
		env := newTestEnv(t)
		client := env.loggedIn(t, "nk@x.com")

		resp, body := do(t, client, http.MethodPost, env.userURL+"/api/auth/refresh", "")

		require.Equalf(t, http.StatusOK, resp.StatusCode, "refresh failed. Body: %s", body)
		require.Contains(t, body, `"message":"Access token refreshed"`)
		require.NotNil(t, cookieByName(resp, auth.AccessCookieName))
		require.Nil(t, cookieByName(resp, auth.RefreshCookieName), "refresh token is not rotated")
		require.Contains(t, resp.Header.Get("Authorization"), "Bearer ")
	})

	t.Run("refresh without token", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/refresh", "")

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{"message": "Refresh token required"}`, body)
	})

	t.Run("refresh with revoked token", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.loggedIn(t, "nk@x.com")

		// Login once more from another client, first refresh token is replaced
		second := newClient(t)
		resp, _ := do(t, second, http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := do(t, first, http.MethodPost, env.userURL+"/api/auth/refresh", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `{"message": "Invalid or expired refresh token"}`, body)

		resp, _ = do(t, second, http.MethodPost, env.userURL+"/api/auth/refresh", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("logout revokes session", func(t *testing.T) {
		env := newTestEnv(t)
		client := env.loggedIn(t, "nk@x.com")

		resp, body := do(t, client, http.MethodPost, env.userURL+"/api/auth/logout", "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "logout failed. Body: %s", body)

		access := cookieByName(resp, auth.AccessCookieName)
		require.NotNil(t, access)
		assert.Negative(t, access.MaxAge, "cookie should be expired")

		resp, _ = do(t, client, http.MethodGet, env.userURL+"/api/user/profile", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout requires auth", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/logout", "")

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `{"message": "Unauthorized"}`, body)
	})

	t.Run("password reset", func(t *testing.T) {
		env := newTestEnv(t)
		client := env.loggedIn(t, "nk@x.com")

		resp, body := do(t, client, http.MethodPost, env.userURL+"/api/auth/request-password-reset", "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "reset request failed. Body: %s", body)
		require.JSONEq(t, `{"message": "`+msgResetAcknowledged+`"}`, body)

		link := env.mailer.lastLink(t)
		require.Equal(t, "/api/auth/reset-password", link.Path)
		data := `{"email": "nk@x.com", "token": "` + link.Query().Get("token") + `", "newPassword": "EvenStrongerPassword"}`

		resp, body = do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/reset-password", data)
		require.Equalf(t, http.StatusOK, resp.StatusCode, "reset failed. Body: %s", body)

		// Link is consumed
		resp, body = do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/reset-password", data)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{"message": "Invalid or expired password reset link"}`, body)

		// Standing session is revoked: access token is still fresh, but refresh fails
		resp, _ = do(t, client, http.MethodPost, env.userURL+"/api/auth/refresh", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/login",
			`{"email": "nk@x.com", "password": "EvenStrongerPassword"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("password reset link expires", func(t *testing.T) {
		env := newTestEnv(t)
		client := env.loggedIn(t, "nk@x.com")

		resp, _ := do(t, client, http.MethodPost, env.userURL+"/api/auth/request-password-reset", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		link := env.mailer.lastLink(t)

		env.clock.Advance(time.Hour)

		resp, _ = do(t, newClient(t), http.MethodPost, env.userURL+"/api/auth/reset-password",
			`{"email": "nk@x.com", "token": "`+link.Query().Get("token")+`", "newPassword": "EvenStrongerPassword"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "link expiring exactly now is expired")
	})
}
