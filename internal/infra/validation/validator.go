package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"resort/internal/app/middleware"
)

var ErrValidation = errors.New("validation failed")

// FieldError names one rejected field and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Error carries every field that failed. It matches ErrValidation with errors.Is.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Param != "" {
			parts[i] = fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Rule)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// StructValidator checks commands and queries against their `validate` tags.
type StructValidator struct {
	v *validator.Validate
}

func New() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &StructValidator{v: v}
}

// Validate skips values that are not structs; they have nothing to check.
func (s *StructValidator) Validate(_ context.Context, message any) error {
	if message == nil {
		return nil
	}
	t := reflect.TypeOf(message)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	err := s.v.Struct(message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// fieldPath drops the leading struct name: "CreateBookingCommand.AddOns[0].quantity" becomes
// "AddOns[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

var _ middleware.Validator = (*StructValidator)(nil)
