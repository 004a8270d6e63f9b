package goGuard

import (
	"errors"
	"testing"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("ada@example.com"))
	require.Equal(t, autherr.CodeInvalidEmail, autherr.CodeOf(ValidateEmail("")))
	require.Equal(t, autherr.CodeInvalidEmail, autherr.CodeOf(ValidateEmail("ada@example")))
	require.Equal(t, autherr.CodeInvalidEmail, autherr.CodeOf(ValidateEmail("ada example.com")))
}

func TestScorePassword(t *testing.T) {
	require.Equal(t, 1, ScorePassword("abc"))
	require.Equal(t, 3, ScorePassword("abcdefgh1"))
	require.Equal(t, 5, ScorePassword("Abcdefg1!"))
}

func TestCheckPassword(t *testing.T) {
	v := DefaultConfig().Validation

	require.Equal(t, "Password is required", v.CheckPassword("").Message)
	require.Equal(t, "Password is too short", v.CheckPassword("Ab1").Message)

	weak := v.CheckPassword("abcdef")
	require.False(t, weak.Valid)
	require.Equal(t, 1, weak.Score)

	strong := v.CheckPassword(testPassword)
	require.True(t, strong.Valid)
	require.Equal(t, 4, strong.Score)
}

func TestValidateUsername(t *testing.T) {
	v := DefaultConfig().Validation
	require.NoError(t, v.ValidateUsername("ada_99"))
	require.True(t, errors.Is(v.ValidateUsername(""), ErrInvalidUsername))
	require.True(t, errors.Is(v.ValidateUsername("ab"), ErrInvalidUsername))
	require.True(t, errors.Is(v.ValidateUsername("ada-lovelace"), ErrInvalidUsername))
}

func TestCheckEmailDomain(t *testing.T) {
	require.True(t, CheckEmailDomain("ada@Gmail.com").CommonDomain)
	require.Equal(t, "Did you mean ada@gmail.com?", CheckEmailDomain("ada@gmial.com").Suggestion)
	require.Equal(t, EmailHint{}, CheckEmailDomain("ada@example.org"))
	require.Equal(t, EmailHint{}, CheckEmailDomain("no-at-sign"))
}
