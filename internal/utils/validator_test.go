package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "secret124"))
}

func TestValidateUserName(t *testing.T) {
	assert.True(t, ValidateUserName("alice_01"))
	assert.False(t, ValidateUserName("al"))
	assert.False(t, ValidateUserName("has space"))
	assert.False(t, ValidateUserName("abcdefghijklmnopqrstu"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("alice@example.com"))
	assert.False(t, ValidateEmail("alice"))
	assert.False(t, ValidateEmail("alice@localhost"))
	assert.False(t, ValidateEmail("Alice <alice@example.com>"))
}

func TestNormalizeGroupCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeGroupCode("ab12cd"))
	assert.Equal(t, "AB12CD", NormalizeGroupCode("  Ab12cD\n"))
}

func TestValidDateAndClock(t *testing.T) {
	assert.True(t, ValidDate(""))
	assert.True(t, ValidDate("2025-07-04"))
	assert.False(t, ValidDate("07/04/2025"))
	assert.False(t, ValidDate("2025-13-45"))
	assert.False(t, ValidDate("2025-02-30"))
	assert.False(t, ValidDate("2025-7-4"))
	assert.True(t, ValidDate("2024-02-29"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
}

func TestUserNameFromEmail(t *testing.T) {
	assert.Equal(t, "alice", UserNameFromEmail("alice@example.com"))
	assert.Equal(t, "abc", UserNameFromEmail("a.b-c@example.com"))
	assert.Equal(t, "x__", UserNameFromEmail("x@example.com"))
	assert.True(t, ValidateUserName(UserNameFromEmail("a.very.long.local.part.indeed@example.com")))
}

func TestGenerateGroupCode_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code, err := GenerateGroupCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !ValidGroupCode(code) {
			t.Fatalf("invalid code %q", code)
		}
	})
}

func TestNormalizeGroupCode_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code := rapid.StringMatching(`[A-Z0-9]{6}`).Draw(t, "code")
		mixed := rapid.StringMatching(`[a-zA-Z0-9]{6}`).Draw(t, "mixed")
		if NormalizeGroupCode(code) != code {
			t.Fatalf("upper-case code changed: %q", code)
		}
		if !ValidGroupCode(NormalizeGroupCode("  " + mixed + " ")) {
			t.Fatalf("normalized %q is not a valid code", mixed)
		}
	})
}
