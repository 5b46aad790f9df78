package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// Global validator instance (reused across all handlers)
var validate = validator.New()

// ValidateRequest validates a request struct and returns field-level errors
// suitable for a 422 response, or nil when the struct passes.
func ValidateRequest(req interface{}) []httpapi.FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []httpapi.FieldError{{Field: "request", Message: err.Error()}}
	}

	fields := make([]httpapi.FieldError, 0, len(ve))
	for _, fieldError := range ve {
		fields = append(fields, httpapi.FieldError{
			Field:   fieldError.Field(),
			Message: formatValidationError(fieldError),
		})
	}
	return fields
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
