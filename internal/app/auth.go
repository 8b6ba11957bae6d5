package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

const bcryptCost = 10

// Auth verifies and creates durable accounts through the bridge. It
// holds no state of its own; claimed identities live in the registry.
type Auth struct {
	bridge core.Bridge
}

func NewAuth(bridge core.Bridge) *Auth {
	return &Auth{bridge: bridge}
}

type RegisterParams struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Birthdate       string `json:"birthdate"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (a *Auth) Register(ctx context.Context, p RegisterParams) error {
	if p.Username == "" || p.Name == "" || p.Surname == "" || p.Birthdate == "" ||
		p.Email == "" || p.Phone == "" || p.Password == "" || p.PasswordConfirm == "" {
		return domain.ErrIncompleteProfile
	}
	if p.Username != strings.ToLower(p.Username) {
		return domain.ErrUsernameNotLower
	}
	if p.Password != p.PasswordConfirm {
		return domain.ErrPasswordMismatch
	}

	existing, err := a.bridge.FindAccount(ctx, p.Username)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if existing != nil {
		return domain.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc := domain.Account{
		Username:     p.Username,
		PasswordHash: hash,
		Name:         p.Name,
		Surname:      p.Surname,
		Birthdate:    p.Birthdate,
		Email:        p.Email,
		Phone:        p.Phone,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.bridge.CreateAccount(ctx, acc); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	log.Info().Str("module", "app.auth").Str("username", p.Username).Msg("account registered")
	return nil
}

// Login verifies credentials. A missing account and a wrong password are
// indistinguishable to the caller.
func (a *Auth) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return domain.ErrInvalidCredentials
	}
	acc, err := a.bridge.FindAccount(ctx, username)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		return domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}
