package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"ana@example.com", "ana.silva+promo@mail.example.com.br"}
	invalid := []string{"", "ana", "ana@", "@example.com", "Ana <ana@example.com>", "ana@example"}

	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}
	for _, email := range invalid {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, email)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Passw0rd"))
	assert.NoError(t, ValidatePassword("Çedilha123"))

	for _, password := range []string{"Sh0rt", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		assert.ErrorIs(t, ValidatePassword(password), ErrWeakPassword, password)
	}
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", SanitizeEmail("  Ana@Example.COM "))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("Passw0rd", bcrypt.MinCost)
	assert.NoError(t, err)

	assert.True(t, CheckPasswordHash("Passw0rd", hash))
	assert.False(t, CheckPasswordHash("passw0rd", hash))
	assert.False(t, CheckPasswordHash("Passw0rd", ""))
}
