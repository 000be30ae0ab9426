package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; validator instances cache
// struct metadata and are safe for concurrent use
var validate = validator.New()

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateStruct runs the `validate` tags on any request struct and
// returns the first failure as a ValidationError.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return &ValidationError{
			Field:   first.Field(),
			Message: fmt.Sprintf("Campo %s no es válido (%s)", first.Field(), first.Tag()),
		}
	}

	return &ValidationError{Message: err.Error()}
}

// ValidateCodigo checks a table access code before any network call is
// made. Only the length is checked locally; whether the code is current
// for the table is the backend's call.
func ValidateCodigo(codigo string) error {
	if len(codigo) != 4 || strings.ContainsAny(codigo, " \t") {
		return &ValidationError{Field: "codigo", Message: "El código debe tener 4 caracteres"}
	}
	return nil
}

// ValidateMedioPago checks a payment method before checkout starts
func ValidateMedioPago(medioPago string) error {
	switch medioPago {
	case "efectivo", "app", "tarjeta":
		return nil
	}
	return &ValidationError{Field: "medio_pago", Message: "Medio de pago no válido"}
}

// ConcatNotas merges the notes of repeated additions of the same product,
// separated by " | ". Empty parts are dropped.
func ConcatNotas(existing, added string) string {
	existing = strings.TrimSpace(existing)
	added = strings.TrimSpace(added)

	switch {
	case existing == "":
		return added
	case added == "":
		return existing
	default:
		return existing + " | " + added
	}
}
