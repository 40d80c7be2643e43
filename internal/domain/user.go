package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UserRole controls access to administrative operations
type UserRole string

// Possible user roles
const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrInvalidUsername     = errors.New("username must be between 3 and 50 characters")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrInvalidUserRole     = errors.New("invalid user role")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

var emailValidator = validator.New()

// User is an identity that tasks can be assigned to.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Password       string    `json:"-"` // plaintext, only held until hashed
	HashedPassword string    `json:"-"`
	Role           UserRole  `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with the USER role.
//
// The caller is responsible for hashing the password before storing the user.
func NewUser(username, email, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  password,
		Role:      UserRoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Username == "" {
		return ErrEmptyUsername
	}
	if n := utf8.RuneCountInString(u.Username); n < 3 || n > 50 {
		return ErrInvalidUsername
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}
	if err := emailValidator.Var(u.Email, "email"); err != nil {
		return ErrInvalidEmail
	}

	if u.Role != UserRoleUser && u.Role != UserRoleAdmin {
		return ErrInvalidUserRole
	}

	// Existing users loaded from storage only carry the hash.
	if u.Password != "" {
		switch {
		case len(u.Password) < 8:
			return ErrPasswordTooShort
		case len(u.Password) > 72:
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		return ErrEmptyPassword
	}

	return nil
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
