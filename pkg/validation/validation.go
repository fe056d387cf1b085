// Package validation wraps go-playground/validator with the custom tags used
// by request types and renders the first failure as a domain error.
package validation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	dErrors "nexuscred/pkg/domain-errors"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// digest: 64 hex characters, optional 0x prefix
	_ = v.RegisterValidation("digest", func(fl validator.FieldLevel) bool {
		raw := strings.TrimPrefix(fl.Field().String(), "0x")
		if len(raw) != 64 {
			return false
		}
		_, err := hex.DecodeString(raw)
		return err == nil
	})
	return v
}

// Validate validates a struct using the default validator and returns a domain error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a human-readable message.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	fe := validationErrs[0]
	field := snakeCase(fe.StructField())
	if ns := fe.StructNamespace(); strings.Count(ns, ".") > 1 {
		// nested: report the path below the root struct
		parts := strings.Split(ns, ".")[1:]
		for i := range parts {
			parts[i] = snakeCase(parts[i])
		}
		field = strings.Join(parts, ".")
	}

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid url", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have exactly %s items", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "digest":
		return fmt.Sprintf("%s must be a 64 character hex digest", field)
	default:
		if field == "" {
			return "invalid request body"
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}

// snakeCase renders Go field names the way request JSON spells them:
// IssuerID -> issuer_id, GPAMin -> gpa_min.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			endsAcronym := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || endsAcronym {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
