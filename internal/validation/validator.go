// Package validation wraps go-playground/validator with the request rules and
// the user-facing messages of the API.
package validation

import (
	"errors"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const PasswordMessage = "Invalid Password Provided. Password Must Be 8 or More Characters Long & " +
	"Must Contains Atleast One Alphabet (Capital and Small) & Number & Special character."

var (
	validate     *validator.Validate
	validateOnce sync.Once

	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*]`)
)

// Error is a single failed rule. Message is safe to return to clients.
type Error struct {
	Field   string
	Tag     string
	Message string
}

func (e *Error) Error() string { return e.Message }

func get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return StrongPassword(fl.Field().String())
		})
	})
	return validate
}

// StrongPassword reports whether p has at least 8 characters including a
// lowercase and an uppercase letter, a digit and one of !@#$%^&*.
func StrongPassword(p string) bool {
	return utf8.RuneCountInString(p) >= 8 &&
		lowerRe.MatchString(p) &&
		upperRe.MatchString(p) &&
		digitRe.MatchString(p) &&
		specialRe.MatchString(p)
}

// Struct validates s and returns the first failure, using the "msg" tag of
// the failing field as the client message.
func Struct(s any) *Error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Message: "Invalid Data Provided."}
	}

	fe := verrs[0]
	return &Error{
		Field:   fe.Field(),
		Tag:     fe.Tag(),
		Message: messageFor(s, fe),
	}
}
