package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateUsername is returned when registering a taken username.
var ErrDuplicateUsername = errors.New("username already exists")

// User is a registered account.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;size:150;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// UserRepository persists accounts.
type UserRepository struct {
	db *gorm.DB
	retrier
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, retrier: newRetrier(logger.Named("user_repository"))}
}

// AutoMigrate ensures the schema is available.
func (r *UserRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&User{})
}

// Create inserts user, mapping unique violations to ErrDuplicateUsername.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	return r.executeWithRetry(ctx, "repository.create_user", "", func() error {
		err := r.db.WithContext(ctx).Create(user).Error
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return err
	})
}

// FindByUsername loads an account by its exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user", "", func() error {
		err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
