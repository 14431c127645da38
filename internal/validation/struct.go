package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"socialnet/internal/models"

	"github.com/go-playground/validator/v10"
)

var mobileRegex = regexp.MustCompile(`^[6-9]\d{9}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return mobileRegex.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and returns a VALIDATION_ERROR AppError on failure.
func Struct(v interface{}) error {
	if err := instance().Struct(v); err != nil {
		return models.NewValidationError(FormatValidationError(err))
	}
	return nil
}

// FormatValidationError joins field errors into one readable message.
func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fieldErrorMessage(fe))
	}
	return strings.Join(messages, "; ")
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := toSnake(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "mobile":
		return fmt.Sprintf("%s must be a 10 digit number starting with 6-9", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, toSnake(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
