package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/render"
	"github.com/nkiryanov/fittrack/internal/handlers/userctx"
	"github.com/nkiryanov/fittrack/internal/logger"
)

const (
	msgInternalError = "Internal server error"

	msgResendAcknowledged = "If that email is registered and not verified, a verification email has been sent."
	msgResetAcknowledged  = "If that email exists, a reset link has been sent."
)

type tokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credentials, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), credentials.Email, credentials.Password)

		switch {
		case err == nil:
			authService.SetTokenPairToResponse(w, pair)
			render.JSON(w, tokenResponse{Message: "Login successful", AccessToken: pair.Access.Value})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrEmailNotVerified):
			render.ServiceError(w, "Email not verified", http.StatusForbidden)
		default:
			l.Error("Failed to login", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleSignup(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=128"`
		Username string `json:"username" validate:"required,min=3,max=50"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signup, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = accountService.Signup(r.Context(), signup.Email, signup.Password, signup.Username)

		switch {
		case err == nil:
			render.JSONWithStatus(w, render.ErrorResponse{Message: "Signup successful, please verify your email."}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrVerificationPending):
			render.ServiceError(w, "Email has not been verified yet, click resend email to verify again", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrEmailDelivery):
			render.ServiceError(w, "Account created but verification email could not be sent, please request a new one", http.StatusInternalServerError)
		default:
			l.Error("Failed to signup", "error", err)
			render.ServiceError(w, "Failed to create account", http.StatusInternalServerError)
		}
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token required", http.StatusBadRequest)
			return
		}

		access, err := authService.Refresh(r.Context(), refresh)

		switch {
		case err == nil:
			authService.SetAccessToResponse(w, access)
			render.JSON(w, tokenResponse{Message: "Access token refreshed", AccessToken: access.Value})
		case isTokenError(err):
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh token", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		err := authService.Logout(r.Context(), userID)
		if err != nil {
			l.Error("Failed to logout", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		authService.ClearTokens(w)
		render.Message(w, "Logged out successfully")
	})
}

func handleVerifyEmail(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		err := accountService.VerifyEmail(r.Context(), query.Get("email"), query.Get("token"))

		switch {
		case err == nil:
			render.Message(w, "Email verified successfully")
		case errors.Is(err, apperrors.ErrInvalidOrExpiredLink):
			render.ServiceError(w, "Invalid or expired verification link", http.StatusBadRequest)
		default:
			l.Error("Failed to verify email", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleResendVerification(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resend, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = accountService.ResendVerification(r.Context(), resend.Email)
		if err != nil {
			l.Error("Failed to resend verification email", "error", err)
			render.ServiceError(w, "Failed to resend verification email", http.StatusInternalServerError)
			return
		}

		render.Message(w, msgResendAcknowledged)
	})
}

func handleRequestPasswordReset(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		err := accountService.RequestPasswordReset(r.Context(), userID)

		switch {
		case err == nil:
			render.Message(w, msgResetAcknowledged)
		case errors.Is(err, apperrors.ErrEmailNotVerified):
			render.ServiceError(w, "Email has not been verified yet, please verify your email first", http.StatusBadRequest)
		default:
			l.Error("Failed to request password reset", "error", err)
			render.ServiceError(w, "Failed to process password reset request", http.StatusInternalServerError)
		}
	})
}

func handleResetPassword(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Email       string `json:"email" validate:"required,email"`
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reset, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = accountService.ResetPassword(r.Context(), reset.Email, reset.Token, reset.NewPassword)

		switch {
		case err == nil:
			render.Message(w, "Password has been reset successfully")
		case errors.Is(err, apperrors.ErrInvalidOrExpiredLink):
			render.ServiceError(w, "Invalid or expired password reset link", http.StatusBadRequest)
		default:
			l.Error("Failed to reset password", "error", err)
			render.ServiceError(w, "Failed to reset password", http.StatusInternalServerError)
		}
	})
}

func isTokenError(err error) bool {
	return errors.Is(err, apperrors.ErrTokenMissing) ||
		errors.Is(err, apperrors.ErrTokenExpired) ||
		errors.Is(err, apperrors.ErrTokenInvalid) ||
		errors.Is(err, apperrors.ErrTokenRevoked)
}
