package lireddit

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// inputValidator checks mutation payloads and reports every failed
// constraint as one ValidationError.
type inputValidator struct {
	v *validator.Validate
}

// fieldRule is a constraint whose parameter comes from configuration rather
// than a struct tag.
type fieldRule struct {
	field string
	value string
	tag   string
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	return &inputValidator{v: v}
}

func minLengthRule(field, value string, n int) fieldRule {
	return fieldRule{field: field, value: value, tag: "min=" + strconv.Itoa(n)}
}

// check validates the struct tags of input, then the extra rules of fields
// that passed their tags. A nil input only runs the rules.
func (iv *inputValidator) check(input any, rules ...fieldRule) error {
	var out []FieldError
	failed := make(map[string]bool)

	if input != nil {
		if err := iv.v.Struct(input); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			for _, fe := range verrs {
				failed[fe.Field()] = true
				out = append(out, FieldError{Field: fe.Field(), Message: constraintMessage(fe.Field(), fe.Tag(), fe.Param())})
			}
		}
	}

	for _, r := range rules {
		if failed[r.field] {
			continue
		}
		if err := iv.v.Var(r.value, r.tag); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			for _, fe := range verrs {
				failed[r.field] = true
				out = append(out, FieldError{Field: r.field, Message: constraintMessage(r.field, fe.Tag(), fe.Param())})
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return &ValidationError{Fields: out}
}

func constraintMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s should not be empty", field)
	case "min":
		return fmt.Sprintf("%s must be longer than or equal to %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be shorter than or equal to %s characters", field, param)
	case "excludes":
		return fmt.Sprintf("%s must not contain %s", field, param)
	case "email":
		return fmt.Sprintf("%s must be an email", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, strings.TrimSpace(tag))
	}
}
