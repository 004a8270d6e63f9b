// Package autherr normalizes identity-provider and network failures into a
// closed set of codes, attaches one recovery action per code, and keeps a
// bounded rolling log of recent failures.
package autherr

import (
	"errors"
	"time"
)

// Code is a member of the closed auth error taxonomy.
type Code string

const (
	CodeInvalidEmail           Code = "invalid_email"
	CodeInvalidPassword        Code = "invalid_password"
	CodeUserNotFound           Code = "user_not_found"
	CodeWrongPassword          Code = "wrong_password"
	CodeEmailAlreadyRegistered Code = "email_already_registered"
	CodeRateLimited            Code = "rate_limited"
	CodeNetworkError           Code = "network_error"
	CodeSessionExpired         Code = "session_expired"
	CodeCSRFFailed             Code = "csrf_failed"
	CodeUnknown                Code = "unknown_error"
)

// Codes lists every code.
var Codes = []Code{
	CodeInvalidEmail,
	CodeInvalidPassword,
	CodeUserNotFound,
	CodeWrongPassword,
	CodeEmailAlreadyRegistered,
	CodeRateLimited,
	CodeNetworkError,
	CodeSessionExpired,
	CodeCSRFFailed,
	CodeUnknown,
}

// AuthError is a classified failure. It is immutable once constructed.
type AuthError struct {
	Code      Code              `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	cause error
}

// New constructs an AuthError stamped with the current time.
func New(code Code, message string, details map[string]string) *AuthError {
	return &AuthError{
		Code:      code,
		Message:   message,
		Details:   copyDetails(details),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap is like New but keeps cause reachable through errors.Is/As.
func Wrap(code Code, message string, details map[string]string, cause error) *AuthError {
	e := New(code, message, details)
	e.cause = cause
	return e
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Code) + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return other.Code == e.Code
}

// Suggestion returns the recovery hint for e's code.
func (e *AuthError) Suggestion() Suggestion {
	return RecoverySuggestion(e.Code)
}

// CodeOf returns the code of the first *AuthError in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	var ae *AuthError
	if errors.As(err, &ae) && ae != nil {
		return ae.Code
	}
	return CodeUnknown
}

// Sentinel targets for errors.Is checks against a code.
var (
	ErrInvalidEmail           = &AuthError{Code: CodeInvalidEmail}
	ErrInvalidPassword        = &AuthError{Code: CodeInvalidPassword}
	ErrUserNotFound           = &AuthError{Code: CodeUserNotFound}
	ErrWrongPassword          = &AuthError{Code: CodeWrongPassword}
	ErrEmailAlreadyRegistered = &AuthError{Code: CodeEmailAlreadyRegistered}
	ErrRateLimited            = &AuthError{Code: CodeRateLimited}
	ErrNetwork                = &AuthError{Code: CodeNetworkError}
	ErrSessionExpired         = &AuthError{Code: CodeSessionExpired}
	ErrCSRFFailed             = &AuthError{Code: CodeCSRFFailed}
	ErrUnknown                = &AuthError{Code: CodeUnknown}
)

func copyDetails(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
