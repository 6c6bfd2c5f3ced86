package repository

import (
	"time"

	"github.com/nkiryanov/fittrack/internal/models"
)

// Field of partial update. Applied only if Set
type Field[T any] struct {
	Set   bool
	Value T
}

func set[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Partial user update
// Nil secret or empty refresh hash clears the stored value
type UserUpdate struct {
	Email            Field[string]
	Username         Field[string]
	HashedPassword   Field[string]
	IsVerified       Field[bool]
	Verification     Field[*models.SecretToken]
	PasswordReset    Field[*models.SecretToken]
	RefreshTokenHash Field[string]
}

type UpdateOption func(*UserUpdate)

func NewUserUpdate(opts ...UpdateOption) UserUpdate {
	var u UserUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// Whether update has nothing to change
func (u UserUpdate) Empty() bool {
	return !u.Email.Set && !u.Username.Set && !u.HashedPassword.Set && !u.IsVerified.Set &&
		!u.Verification.Set && !u.PasswordReset.Set && !u.RefreshTokenHash.Set
}

// Apply update to the user in place
func (u UserUpdate) Apply(user *models.User) {
	if u.Email.Set {
		user.Email = u.Email.Value
	}
	if u.Username.Set {
		user.Username = u.Username.Value
	}
	if u.HashedPassword.Set {
		user.HashedPassword = u.HashedPassword.Value
	}
	if u.IsVerified.Set {
		user.IsVerified = u.IsVerified.Value
	}
	if u.Verification.Set {
		user.Verification = copySecret(u.Verification.Value)
	}
	if u.PasswordReset.Set {
		user.PasswordReset = copySecret(u.PasswordReset.Value)
	}
	if u.RefreshTokenHash.Set {
		user.RefreshTokenHash = u.RefreshTokenHash.Value
	}
}

// Email has to stay unique: taken email gives apperrors.ErrUserAlreadyExists
func WithEmail(email string) UpdateOption {
	return func(u *UserUpdate) { u.Email = set(email) }
}

func WithUsername(username string) UpdateOption {
	return func(u *UserUpdate) { u.Username = set(username) }
}

func WithHashedPassword(hash string) UpdateOption {
	return func(u *UserUpdate) { u.HashedPassword = set(hash) }
}

func WithVerified(verified bool) UpdateOption {
	return func(u *UserUpdate) { u.IsVerified = set(verified) }
}

func WithVerification(token *models.SecretToken) UpdateOption {
	return func(u *UserUpdate) { u.Verification = set(token) }
}

func WithPasswordReset(token *models.SecretToken) UpdateOption {
	return func(u *UserUpdate) { u.PasswordReset = set(token) }
}

func WithRefreshTokenHash(hash string) UpdateOption {
	return func(u *UserUpdate) { u.RefreshTokenHash = set(hash) }
}

// Partial workout update, nil fields are left unchanged
type WorkoutUpdate struct {
	Date         *time.Time
	ExerciseType *string
	Duration     *int
	Calories     *int
}

func (u WorkoutUpdate) Empty() bool {
	return u.Date == nil && u.ExerciseType == nil && u.Duration == nil && u.Calories == nil
}

func (u WorkoutUpdate) Apply(w *models.Workout) {
	if u.Date != nil {
		w.Date = *u.Date
	}
	if u.ExerciseType != nil {
		w.ExerciseType = *u.ExerciseType
	}
	if u.Duration != nil {
		w.Duration = *u.Duration
	}
	if u.Calories != nil {
		w.Calories = *u.Calories
	}
}

func copySecret(t *models.SecretToken) *models.SecretToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
