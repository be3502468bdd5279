// Package validation wraps go-playground/validator with the service's custom
// rules and turns failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "accountopen/pkg/domain-errors"
	s "accountopen/pkg/string"
)

var (
	ssnPattern = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	dobPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	defaultValidator = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("ssn", func(fl validator.FieldLevel) bool {
		return ssnPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return dobPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate runs the struct tags on req. Every failing field is reported, in
// declaration order, in a single CodeValidation error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage renders validator failures as "<field> <problem>" clauses
// joined by "; ". Fields are named by their snake_cased JSON path.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

// fieldPath turns "VerifyRequest.mailingAddress.zipCode" into
// "mailing_address.zip_code".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = s.ToSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	if field == "" {
		return "invalid request body"
	}
	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "uuid":
		return field + " must be a valid uuid"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "notblank":
		return field + " must not be blank"
	case "ssn":
		return field + " must look like 123-45-6789"
	case "isodate":
		return field + " must be formatted YYYY-MM-DD"
	default:
		return field + " is invalid"
	}
}
