package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/codessneha/SciScope/models"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(testDB(t), zap.NewNop())
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newUserService(t)

	user, err := svc.Register("Alice", "  Alice@Example.COM ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))

	logged, err := svc.Authenticate("alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserService(t)

	_, err := svc.Register("", "alice@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register("Alice", "alice@example.com", "short")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newUserService(t)

	_, err := svc.Register("Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	// Gleiche Adresse in anderer Schreibweise.
	_, err = svc.Register("Alice Again", "ALICE@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := newUserService(t)

	_, err := svc.Register("Alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	// Unbekannte Adresse und falsches Passwort sind nicht unterscheidbar.
	_, err = svc.Authenticate("nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
