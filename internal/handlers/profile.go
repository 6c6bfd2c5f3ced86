package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/render"
	"github.com/nkiryanov/fittrack/internal/handlers/userctx"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/models"
)

const msgUserNotFound = "User not found"

type profileResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newProfileResponse(u models.User) profileResponse {
	return profileResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

func handleProfile(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		user, err := accountService.GetProfile(r.Context(), userID)

		switch {
		case err == nil:
			render.JSON(w, newProfileResponse(user))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, msgUserNotFound, http.StatusNotFound)
		default:
			l.Error("Failed to get profile", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

// Change username and/or email. New email has to be verified again
func handleUpdateProfile(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"omitempty,min=3,max=50"`
		Email    string `json:"email" validate:"omitempty,email"`
	}

	type response struct {
		Message string          `json:"message"`
		User    profileResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}
		if req.Username == "" && req.Email == "" {
			render.ServiceError(w, "At least one field (username or email) is required", http.StatusBadRequest)
			return
		}

		user, err := accountService.UpdateProfile(r.Context(), userID, req.Username, req.Email)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Profile updated successfully", User: newProfileResponse(user)})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Email is already taken", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, msgUserNotFound, http.StatusNotFound)
		case errors.Is(err, apperrors.ErrEmailDelivery):
			render.ServiceError(w, "Profile updated but verification email could not be sent, please request a new one", http.StatusInternalServerError)
		default:
			l.Error("Failed to update profile", "error", err)
			render.ServiceError(w, "Failed to update profile", http.StatusInternalServerError)
		}
	})
}

// Delete account after password confirmation and end the session
func handleDeleteProfile(accountService accountService, authService authService, l logger.Logger) http.Handler {
	type request struct {
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = accountService.DeleteAccount(r.Context(), userID, req.Password)

		switch {
		case err == nil:
			authService.ClearTokens(w)
			render.Message(w, "Account deleted successfully")
		case errors.Is(err, apperrors.ErrPasswordIncorrect):
			render.ServiceError(w, "Password is incorrect", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, msgUserNotFound, http.StatusNotFound)
		default:
			l.Error("Failed to delete account", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}
