package autherr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"wrong password", &ProviderError{Status: 401, Message: "Invalid login credentials"}, CodeWrongPassword},
		{"expired", &ProviderError{Status: 401, Message: "JWT expired"}, CodeSessionExpired},
		{"invalid email", &ProviderError{Status: 400, Message: "Invalid email address"}, CodeInvalidEmail},
		{"weak password", &ProviderError{Status: 400, Message: "Invalid password: too short"}, CodeInvalidPassword},
		{"registered", &ProviderError{Status: 400, Message: "User already registered"}, CodeEmailAlreadyRegistered},
		{"not found", &ProviderError{Status: 404, Message: "no user"}, CodeUserNotFound},
		{"rate limited", &ProviderError{Status: 429, Message: "slow down"}, CodeRateLimited},
		{"too many text", errors.New("Too many requests"), CodeRateLimited},
		{"fetch failure", errors.New("TypeError: fetch failed"), CodeNetworkError},
		{"deadline", fmt.Errorf("sign in: %w", context.DeadlineExceeded), CodeNetworkError},
		{"other 400", &ProviderError{Status: 400, Message: "bad"}, CodeUnknown},
		{"plain", errors.New("boom"), CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.err)
			require.Equal(t, tc.want, got.Code)
			require.NotEmpty(t, got.Message)
			require.False(t, got.Timestamp.IsZero())
		})
	}
}

func TestParseNetworkKeepsOriginalMessage(t *testing.T) {
	got := Parse(errors.New("Network request failed"))
	require.Equal(t, CodeNetworkError, got.Code)
	require.Equal(t, "Network request failed", got.Details["original_error"])
}

func TestParseNilIsUnknown(t *testing.T) {
	require.Equal(t, CodeUnknown, Parse(nil).Code)
}

func TestParseReturnsClassifiedErrorUnchanged(t *testing.T) {
	orig := New(CodeCSRFFailed, "bad token", nil)
	wrapped := fmt.Errorf("login: %w", orig)
	require.Same(t, orig, Parse(wrapped))
}

func TestAuthErrorIsMatchesCode(t *testing.T) {
	err := Wrap(CodeWrongPassword, "nope", nil, errors.New("cause"))
	require.ErrorIs(t, err, ErrWrongPassword)
	require.NotErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, CodeWrongPassword, CodeOf(fmt.Errorf("outer: %w", err)))
	require.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestRecoverySuggestionPerCode(t *testing.T) {
	for _, code := range Codes {
		s := RecoverySuggestion(code)
		require.NotEmpty(t, s.Action, code)
		require.NotEmpty(t, s.Message, code)
	}
	require.Equal(t, ActionShowForgotPassword, RecoverySuggestion(CodeWrongPassword).Action)
	require.Equal(t, ActionWaitAndRetry, RecoverySuggestion(CodeRateLimited).Action)
	require.Equal(t, ActionRefreshPage, RecoverySuggestion(CodeCSRFFailed).Action)
	require.Equal(t, ActionRetry, RecoverySuggestion(CodeUnknown).Action)
	require.Equal(t, ActionRetry, RecoverySuggestion(Code("made_up")).Action)
}
