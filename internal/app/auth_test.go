package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Meloken/voicehub/internal/domain"
)

func validRegistration() RegisterParams {
	return RegisterParams{
		Username:        "alice",
		Name:            "Alice",
		Surname:         "Liddell",
		Birthdate:       "1990-05-04",
		Email:           "alice@example.com",
		Phone:           "+100000000",
		Password:        "wonderland",
		PasswordConfirm: "wonderland",
	}
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	req := require.New(t)
	b := newFakeBridge()
	a := NewAuth(b)
	ctx := context.Background()

	req.NoError(a.Register(ctx, validRegistration()))

	acc := b.accounts["alice"]
	req.Equal("Alice", acc.Name)
	req.NotEqual("wonderland", string(acc.PasswordHash))
	req.NoError(bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte("wonderland")))

	req.NoError(a.Login(ctx, "alice", "wonderland"))
}

func TestAuth_Register_Validation(t *testing.T) {
	req := require.New(t)
	a := NewAuth(newFakeBridge())
	ctx := context.Background()

	p := validRegistration()
	p.Email = ""
	req.ErrorIs(a.Register(ctx, p), domain.ErrIncompleteProfile)

	p = validRegistration()
	p.Username = "Alice"
	req.ErrorIs(a.Register(ctx, p), domain.ErrUsernameNotLower)

	p = validRegistration()
	p.PasswordConfirm = "other"
	req.ErrorIs(a.Register(ctx, p), domain.ErrPasswordMismatch)
}

func TestAuth_Register_DuplicateUsername(t *testing.T) {
	req := require.New(t)
	a := NewAuth(newFakeBridge())
	ctx := context.Background()

	req.NoError(a.Register(ctx, validRegistration()))
	req.ErrorIs(a.Register(ctx, validRegistration()), domain.ErrUsernameTaken)
}

func TestAuth_Login_FailuresIndistinguishable(t *testing.T) {
	req := require.New(t)
	a := NewAuth(newFakeBridge())
	ctx := context.Background()
	req.NoError(a.Register(ctx, validRegistration()))

	// Unknown user and wrong password surface the same error.
	req.ErrorIs(a.Login(ctx, "nobody", "wonderland"), domain.ErrInvalidCredentials)
	req.ErrorIs(a.Login(ctx, "alice", "wrong"), domain.ErrInvalidCredentials)
	req.ErrorIs(a.Login(ctx, "", ""), domain.ErrInvalidCredentials)
}
