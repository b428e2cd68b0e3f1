package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewUser verifies user creation and password bounds.
func TestNewUser(t *testing.T) {
	t.Run("valid user", func(t *testing.T) {
		user, err := NewUser("alex@example.com", "correct-horse-battery")

		require.NoError(t, err)
		require.NotNil(t, user)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "alex@example.com", user.Email)
		assert.Equal(t, "correct-horse-battery", user.Password)
		assert.Empty(t, user.HashedPassword, "hashing happens in the store")
	})

	t.Run("invalid email", func(t *testing.T) {
		user, err := NewUser("not-an-email", "correct-horse-battery")

		assert.ErrorIs(t, err, ErrInvalidEmail)
		assert.Nil(t, user)
	})

	t.Run("password too short", func(t *testing.T) {
		user, err := NewUser("alex@example.com", "short")

		assert.ErrorIs(t, err, ErrPasswordTooShort)
		assert.Nil(t, user)
	})

	t.Run("password too long", func(t *testing.T) {
		user, err := NewUser("alex@example.com", strings.Repeat("a", MaxPasswordLength+1))

		assert.ErrorIs(t, err, ErrPasswordTooLong)
		assert.Nil(t, user)
	})
}

// TestUserValidateStoredUser verifies that a user loaded from storage,
// carrying only a hash, still validates.
func TestUserValidateStoredUser(t *testing.T) {
	user := &User{
		ID:             uuid.New(),
		Email:          "alex@example.com",
		HashedPassword: "$2a$10$abcdefghijklmnopqrstuv",
	}

	assert.NoError(t, user.Validate())

	user.HashedPassword = ""
	assert.ErrorIs(t, user.Validate(), ErrEmptyPassword)
}
