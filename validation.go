package goGuard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/MrEthical07/goGuard/autherr"
)

const maxPasswordScore = 5

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

var commonEmailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"icloud.com":  {},
}

var emailDomainTypos = map[string]string{
	"gmial.com":   "gmail.com",
	"gmai.com":    "gmail.com",
	"yahooo.com":  "yahoo.com",
	"hotmial.com": "hotmail.com",
}

// PasswordStrength is the outcome of password validation.
type PasswordStrength struct {
	Valid   bool
	Score   int
	Message string
}

// EmailHint flags well-known domains and suggests a fix for common typos.
type EmailHint struct {
	CommonDomain bool
	Suggestion   string
}

// ValidateEmail rejects an empty or malformed address with an
// invalid_email AuthError.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return autherr.New(autherr.CodeInvalidEmail, "Email is required", nil)
	}
	if !emailPattern.MatchString(email) {
		return autherr.New(autherr.CodeInvalidEmail, "Please enter a valid email address", nil)
	}
	return nil
}

// ScorePassword scores password out of 5: one point each for length >= 8,
// an uppercase letter, a lowercase letter, a digit and a special character.
func ScorePassword(password string) int {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	score := 0
	for _, ok := range []bool{len(password) >= 8, upper, lower, digit, special} {
		if ok {
			score++
		}
	}
	return score
}

// CheckPassword applies the configured length and strength policy.
func (c ValidationConfig) CheckPassword(password string) PasswordStrength {
	if password == "" {
		return PasswordStrength{Message: "Password is required"}
	}
	if len(password) < c.MinPasswordLength {
		return PasswordStrength{Message: "Password is too short"}
	}
	score := ScorePassword(password)
	if score < c.MinPasswordScore {
		return PasswordStrength{Score: score, Message: "Password should include uppercase, lowercase, and numbers"}
	}
	return PasswordStrength{Valid: true, Score: score}
}

// validatePassword returns an invalid_password AuthError when password
// fails the policy.
func (c ValidationConfig) validatePassword(password string) error {
	s := c.CheckPassword(password)
	if s.Valid {
		return nil
	}
	return autherr.New(autherr.CodeInvalidPassword, s.Message, map[string]string{"field": "password"})
}

// ValidateUsername requires at least MinUsernameLength characters drawn
// from letters, digits and underscore.
func (c ValidationConfig) ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidUsername)
	case len(username) < c.MinUsernameLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidUsername, c.MinUsernameLength)
	case !usernamePattern.MatchString(username):
		return fmt.Errorf("%w: only letters, numbers, and underscores are allowed", ErrInvalidUsername)
	}
	return nil
}

// CheckEmailDomain reports whether email uses a well-known domain and
// suggests a corrected address for known misspellings.
func CheckEmailDomain(email string) EmailHint {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok {
		return EmailHint{}
	}
	domain = strings.ToLower(domain)
	if _, common := commonEmailDomains[domain]; common {
		return EmailHint{CommonDomain: true}
	}
	if fixed, typo := emailDomainTypos[domain]; typo {
		return EmailHint{Suggestion: "Did you mean " + local + "@" + fixed + "?"}
	}
	return EmailHint{}
}
