package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"

	authHeaderName   = "Authorization"
	authHeaderScheme = "Bearer "
)

// Set auth tokens (access, refresh) to response
// Refresh token is not readable by scripts, access token is
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	s.setAccessCookie(w, pair.Access)
	http.SetCookie(w, s.cookie(RefreshCookieName, pair.Refresh, true))
}

// Set renewed access token to response both as cookie and header
func (s *AuthService) SetAccessToResponse(w http.ResponseWriter, access models.IssuedToken) {
	s.setAccessCookie(w, access)
	w.Header().Set(authHeaderName, authHeaderScheme+access.Value)
}

// Expire both auth cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := s.cookie(name, models.IssuedToken{}, name == RefreshCookieName)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// Get access token from cookie or 'Authorization: Bearer' header
func (s *AuthService) GetAccessString(r *http.Request) (string, error) {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	header := r.Header.Get(authHeaderName)
	if len(header) > len(authHeaderScheme) && strings.EqualFold(header[:len(authHeaderScheme)], authHeaderScheme) {
		return strings.TrimSpace(header[len(authHeaderScheme):]), nil
	}

	return "", apperrors.ErrTokenMissing
}

// Get refresh token from request cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		return "", apperrors.ErrTokenMissing
	}
	return c.Value, nil
}

// Authenticate request and return user id
// If access token was renewed it is written to the response
func (s *AuthService) AuthenticateRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	access, _ := s.GetAccessString(r)
	refresh, _ := s.GetRefreshString(r)

	session, err := s.Authenticate(r.Context(), access, refresh)
	if err != nil {
		return uuid.Nil, err
	}

	if session.Access != nil {
		s.SetAccessToResponse(w, *session.Access)
	}

	return session.UserID, nil
}

func (s *AuthService) setAccessCookie(w http.ResponseWriter, access models.IssuedToken) {
	http.SetCookie(w, s.cookie(AccessCookieName, access, false))
}

// MaxAge comes from token TTL so server clock skew does not shorten the cookie
func (s *AuthService) cookie(name string, token models.IssuedToken, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}

	if token.TTL > 0 {
		c.Expires = token.ExpiresAt
		c.MaxAge = int(token.TTL.Seconds())
	}

	return c
}
