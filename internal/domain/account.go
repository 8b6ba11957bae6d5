package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username or email already taken")
	ErrIncompleteProfile  = errors.New("all profile fields are required")
	ErrUsernameNotLower   = errors.New("username must be lowercase")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUnknownAccount     = errors.New("unknown account")
)

// Account is the durable user record behind a display name. PasswordHash
// is a bcrypt hash and never leaves the storage/auth boundary.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"password_hash"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Birthdate    string    `json:"birthdate"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Groups       []GroupID `json:"groups"`
	CreatedAt    time.Time `json:"created_at"`
}
