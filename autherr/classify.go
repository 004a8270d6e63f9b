package autherr

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

// ProviderError is a raw failure reported by the identity provider or the
// backend, carrying the HTTP status when one is known.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return strconv.Itoa(e.Status) + " " + e.Message
}

// StatusCode returns the HTTP status.
func (e *ProviderError) StatusCode() int {
	return e.Status
}

type statusCoder interface {
	StatusCode() int
}

// Parse classifies err. Errors already classified are returned unchanged;
// nil and unrecognized errors map to CodeUnknown.
func Parse(err error) *AuthError {
	if err == nil {
		return New(CodeUnknown, "An unexpected error occurred. Please try again.", nil)
	}

	var classified *AuthError
	if errors.As(err, &classified) && classified != nil {
		return classified
	}

	msg := err.Error()
	if isNetworkError(err, msg) {
		return Wrap(CodeNetworkError,
			"Network connection error. Please check your internet connection and try again.",
			map[string]string{"original_error": msg}, err)
	}

	status := statusOf(err)
	switch status {
	case 400:
		switch {
		case strings.Contains(msg, "Invalid email"):
			return Wrap(CodeInvalidEmail, "Please enter a valid email address.", nil, err)
		case strings.Contains(msg, "Invalid password"):
			return Wrap(CodeInvalidPassword, "Password does not meet security requirements.", nil, err)
		case strings.Contains(msg, "User already registered"):
			return Wrap(CodeEmailAlreadyRegistered, "This email is already registered. Try logging in instead.", nil, err)
		}
	case 401:
		if strings.Contains(msg, "Invalid login credentials") {
			return Wrap(CodeWrongPassword, "Invalid email or password. Please try again.", nil, err)
		}
		return Wrap(CodeSessionExpired, "Your session has expired. Please login again.", nil, err)
	case 404:
		return Wrap(CodeUserNotFound, "No account found with this email. Please register first.", nil, err)
	}

	if status == 429 || strings.Contains(msg, "Too many") {
		return Wrap(CodeRateLimited, "Too many login attempts. Please wait before trying again.", nil, err)
	}

	if msg == "" {
		msg = "Something went wrong. Please try again later."
	}
	return Wrap(CodeUnknown, msg, nil, err)
}

func isNetworkError(err error, msg string) bool {
	if strings.Contains(msg, "Network") || strings.Contains(msg, "fetch") {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
