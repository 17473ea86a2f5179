package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/plantid/internal/apperrors"
	"github.com/example/plantid/internal/repository"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8

	invalidLoginMessage = "Please enter a correct username and password. Note that both fields may be case-sensitive."
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserRepository defines the persistence operations needed for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	FindByUsername(ctx context.Context, username string) (*repository.User, error)
}

// Registration is the submitted sign-up form.
type Registration struct {
	Username  string
	Password1 string
	Password2 string
}

// AccountUseCase registers and authenticates users.
type AccountUseCase struct {
	repo     UserRepository
	logger   *zap.Logger
	hashCost int
	now      func() time.Time
}

// NewAccountUseCase constructs a new use case instance.
func NewAccountUseCase(repo UserRepository, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		repo:     repo,
		logger:   logger.Named("account_usecase"),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register validates form and creates the account.
func (uc *AccountUseCase) Register(ctx context.Context, form Registration) (*repository.User, error) {
	username := strings.TrimSpace(form.Username)
	if err := validateRegistration(username, form.Password1, form.Password2); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password1), uc.hashCost)
	if err != nil {
		return nil, apperrors.NewInternalError("unable to secure password", err)
	}

	user := &repository.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    uc.now().UTC(),
	}
	if err := uc.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, apperrors.NewConflictError("A user with that username already exists.", err)
		}
		uc.logger.Error("failed to create user", zap.Error(err))
		return nil, apperrors.NewInternalError("unable to create account", err)
	}

	uc.logger.Info("account created", zap.Uint("user_id", user.ID))
	return user, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords give the
// same error.
func (uc *AccountUseCase) Authenticate(ctx context.Context, username, password string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError(invalidLoginMessage, nil)
	}

	user, err := uc.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError(invalidLoginMessage, nil)
		}
		uc.logger.Error("failed to load user", zap.Error(err))
		return nil, apperrors.NewInternalError("unable to sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewUnauthorizedError(invalidLoginMessage, err)
	}
	return user, nil
}

func validateRegistration(username, password1, password2 string) error {
	switch {
	case username == "":
		return apperrors.NewValidationError("Username is required.", nil)
	case len(username) > maxUsernameLength:
		return apperrors.NewValidationError("Username must be 150 characters or fewer.", nil)
	case !usernamePattern.MatchString(username):
		return apperrors.NewValidationError("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.", nil)
	case password1 == "" || password2 == "":
		return apperrors.NewValidationError("Both password fields are required.", nil)
	case password1 != password2:
		return apperrors.NewValidationError("The two password fields didn't match.", nil)
	case len(password1) < minPasswordLength:
		return apperrors.NewValidationError("This password is too short. It must contain at least 8 characters.", nil)
	case isNumeric(password1):
		return apperrors.NewValidationError("This password is entirely numeric.", nil)
	case strings.EqualFold(password1, username):
		return apperrors.NewValidationError("The password is too similar to the username.", nil)
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
