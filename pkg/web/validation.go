package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/costura/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// NewValidator returns a validator reporting fields by their json or query names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}

			if name != "" {
				return name
			}
		}

		return field.Name
	})

	return validate
}

// invalidRequest answers a request that failed struct validation with a 422 listing
// every broken field.
func invalidRequest(c fiber.Ctx, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return unprocessable(c, services.NewViolationError("ValidateRequest", services.ErrInvalidRequest, []string{err.Error()}))
	}

	violations := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		violations = append(violations, describeFieldError(fe))
	}

	return unprocessable(c, services.NewViolationError("ValidateRequest", services.ErrInvalidRequest, violations))
}

func describeFieldError(fe validator.FieldError) string {
	// Namespace starts with the struct name, e.g. ReplaceBomRequest.lines[0].material_id.
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}

		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}
