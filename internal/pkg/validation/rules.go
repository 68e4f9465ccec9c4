// Package validation holds the input rules shared by request binding and the
// services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// Validation rule patterns
var (
	// ISBN-10 or ISBN-13, optionally separated by hyphens or spaces
	ISBNPattern = `^[0-9][0-9 \-]{0,15}[0-9Xx]$`

	// Letters, digits and @ . + - _ only
	UsernamePattern = `^[\w.@+\-]+$`

	PasswordMinLength = 6

	UsernameMinLength = 3
	UsernameMaxLength = 150
	ISBNMaxLength     = 17
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	ISBN     *regexp.Regexp
	Username *regexp.Regexp
}{
	ISBN:     regexp.MustCompile(ISBNPattern),
	Username: regexp.MustCompile(UsernamePattern),
}

// StringValidation checks one string against length and pattern rules
type StringValidation struct {
	Value    string
	MinLen   int
	MaxLen   int
	Required bool
	Pattern  *regexp.Regexp
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMinLength sets minimum length
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern sets regex pattern
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Pattern = pattern
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate performs validation
func (v *StringValidation) Validate() bool {
	if v.Value == "" {
		return !v.Required
	}

	n := len([]rune(v.Value))
	if v.MinLen > 0 && n < v.MinLen {
		return false
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return false
	}

	return v.Pattern == nil || v.Pattern.MatchString(v.Value)
}

// Username validates a username
func Username(username string) error {
	ok := NewStringValidation(username).
		WithMinLength(UsernameMinLength).
		WithMaxLength(UsernameMaxLength).
		WithPattern(CompiledPatterns.Username).
		Validate()
	if !ok {
		return apperrors.NewValidationError("username",
			fmt.Sprintf("username must be %d-%d characters of letters, digits and @.+-_", UsernameMinLength, UsernameMaxLength))
	}
	return nil
}

// ISBN validates an ISBN
func ISBN(isbn string) error {
	ok := NewStringValidation(isbn).
		WithMaxLength(ISBNMaxLength).
		WithPattern(CompiledPatterns.ISBN).
		Validate()
	if !ok {
		return apperrors.NewValidationError("isbn", "isbn must be at most 17 digits, hyphens or spaces")
	}
	return nil
}

// Password checks length and requires an uppercase letter and a digit
func Password(password string) error {
	if len(password) < PasswordMinLength {
		return apperrors.NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters long", PasswordMinLength))
	}

	var hasUpper, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}
	if !hasUpper {
		return apperrors.NewValidationError("password", "password must contain at least one uppercase letter")
	}
	if !hasDigit {
		return apperrors.NewValidationError("password", "password must contain at least one digit")
	}
	return nil
}

// RegisterBindingRules adds the "isbn" and "username" tags to v
func RegisterBindingRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"isbn": func(fl validator.FieldLevel) bool {
			return ISBN(strings.TrimSpace(fl.Field().String())) == nil
		},
		"username": func(fl validator.FieldLevel) bool {
			return Username(strings.TrimSpace(fl.Field().String())) == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return nil
}
