package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(_ context.Context, params repository.CreateUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.byEmail(params.Email); ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	u := models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC(),
		Email:          params.Email,
		Username:       params.Username,
		HashedPassword: params.HashedPassword,
		Verification:   params.Verification,
	}
	u = cloneUser(u)
	r.s.users[u.ID] = u

	return cloneUser(u), nil
}

func (r *UserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.byEmail(email)
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) GetUserByEmailWithPendingReset(_ context.Context, email string, now time.Time) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.byEmail(email)
	if !ok || !u.PasswordReset.ActiveAt(now) {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) UpdateUser(_ context.Context, userID uuid.UUID, opts ...repository.UpdateOption) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	upd := repository.NewUserUpdate(opts...)
	if upd.Email.Set {
		if other, ok := r.byEmail(upd.Email.Value); ok && other.ID != userID {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	upd.Apply(&u)
	r.s.users[userID] = u

	return cloneUser(u), nil
}

func (r *UserRepo) DeleteUser(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return apperrors.ErrUserNotFound
	}

	delete(r.s.users, userID)
	for id, w := range r.s.workouts {
		if w.UserID == userID {
			delete(r.s.workouts, id)
		}
	}
	return nil
}

func (r *UserRepo) ConsumeVerification(_ context.Context, email string, hash string, now time.Time) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.byEmail(email)
	if !ok || !u.Verification.ActiveAt(now) || u.Verification.Hash != hash {
		return models.User{}, apperrors.ErrInvalidOrExpiredLink
	}

	u.IsVerified = true
	u.Verification = nil
	r.s.users[u.ID] = u

	return cloneUser(u), nil
}

func (r *UserRepo) ConsumePasswordReset(_ context.Context, email string, hash string, now time.Time, hashedPassword string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.byEmail(email)
	if !ok || !u.PasswordReset.ActiveAt(now) || u.PasswordReset.Hash != hash {
		return models.User{}, apperrors.ErrInvalidOrExpiredLink
	}

	u.HashedPassword = hashedPassword
	u.PasswordReset = nil
	u.RefreshTokenHash = ""
	r.s.users[u.ID] = u

	return cloneUser(u), nil
}

// Must be called with lock held
func (r *UserRepo) byEmail(email string) (models.User, bool) {
	for _, u := range r.s.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}
