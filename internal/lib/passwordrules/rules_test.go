package passwordrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const minLength = 8

func TestValidate_Valid(t *testing.T) {
	res := Validate("Password1!", "user@example.com", minLength)

	assert.True(t, res.MinLength)
	assert.True(t, res.HasLowercase)
	assert.True(t, res.HasUppercase)
	assert.True(t, res.HasDigit)
	assert.True(t, res.HasSymbol)
	assert.True(t, res.HasThreeTypes)
	assert.True(t, res.NotSimilarToEmail)
	assert.True(t, res.Valid)
}

func TestValidate_SimilarToEmail(t *testing.T) {
	res := Validate("userPass1!", "user@example.com", minLength)

	assert.False(t, res.NotSimilarToEmail)
	assert.False(t, res.Valid)
}

func TestValidate_TooFewTypes(t *testing.T) {
	res := Validate("abcdefgh", "x@example.com", minLength)

	assert.True(t, res.MinLength)
	assert.True(t, res.HasLowercase)
	assert.False(t, res.HasUppercase)
	assert.False(t, res.HasDigit)
	assert.False(t, res.HasSymbol)
	assert.False(t, res.HasThreeTypes)
	assert.False(t, res.Valid)
}

func TestValidate_TooShort(t *testing.T) {
	res := Validate("Pa1!", "user@example.com", minLength)

	assert.False(t, res.MinLength)
	assert.False(t, res.Valid)
}

func TestValidate_ShortLocalPartIgnored(t *testing.T) {
	// "x" is shorter than 3 characters, so similarity is not enforced.
	res := Validate("xPassword1!", "x@example.com", minLength)

	assert.True(t, res.NotSimilarToEmail)
	assert.True(t, res.Valid)
}

func TestValidate_SimilarityCaseInsensitive(t *testing.T) {
	res := Validate("USERpass1!", "User@example.com", minLength)

	assert.False(t, res.NotSimilarToEmail)
	assert.False(t, res.Valid)
}
