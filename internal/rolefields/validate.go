package rolefields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RawFields are the values as typed or selected by the user, before "other" resolution.
type RawFields struct {
	Field1      string `json:"field1"`
	Field2      string `json:"field2"`
	Field3      string `json:"field3"`
	Field1Other string `json:"field1OtherValue,omitempty"`
	Field2Other string `json:"field2OtherValue,omitempty"`
}

// Resolved are the effective values persisted as role details.
type Resolved struct {
	Field1 string `json:"field1"`
	Field2 string `json:"field2"`
	Field3 string `json:"field3"`
}

// FieldErrors maps a field key to a user-facing message.
type FieldErrors map[string]string

// Empty reports whether there are no errors.
func (e FieldErrors) Empty() bool { return len(e) == 0 }

const (
	keyField1Other = "field1OtherValue"
	keyField2Other = "field2OtherValue"
	keyRole        = "role"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,18}[0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("rolefields: registering phone validation: %v", err))
	}
	return v
}

// ResolveFieldValue applies the "other" indirection: when raw equals the field's
// sentinel the effective value comes from the sibling free-text input.
func ResolveFieldValue(spec FieldSpec, raw, other string) (string, bool) {
	if spec.HasOther() && raw == spec.OtherSentinel {
		return strings.TrimSpace(other), true
	}
	return strings.TrimSpace(raw), false
}

// ValidateRoleFields resolves and validates the three role fields for role.
// Every field is checked; the returned errors cover all problems at once.
func ValidateRoleFields(role string, raw RawFields) (Resolved, FieldErrors) {
	errs := FieldErrors{}
	spec, ok := Lookup(role)
	if !ok {
		errs[keyRole] = "Please select a valid role."
		return Resolved{}, errs
	}

	var res Resolved
	res.Field1 = resolveRequired(spec.Fields[0], raw.Field1, raw.Field1Other, "field1", keyField1Other, errs)
	res.Field2 = resolveRequired(spec.Fields[1], raw.Field2, raw.Field2Other, "field2", keyField2Other, errs)

	f3 := spec.Fields[2]
	res.Field3 = strings.TrimSpace(raw.Field3)
	switch {
	case res.Field3 == "" && !f3.Optional:
		errs["field3"] = fmt.Sprintf("%s is required.", f3.Label)
	case res.Field3 != "":
		if msg := checkFormat(f3, res.Field3); msg != "" {
			errs["field3"] = msg
		}
	}

	return res, errs
}

func resolveRequired(spec FieldSpec, raw, other, key, otherKey string, errs FieldErrors) string {
	value, usedOther := ResolveFieldValue(spec, raw, other)
	if value != "" {
		return value
	}
	if usedOther {
		errs[otherKey] = fmt.Sprintf("Please specify your %s.", strings.ToLower(spec.Label))
	} else if !spec.Optional {
		errs[key] = fmt.Sprintf("%s is required.", spec.Label)
	}
	return value
}

func checkFormat(spec FieldSpec, value string) string {
	switch spec.Kind {
	case KindURL:
		if validate.Var(value, "url") != nil {
			return fmt.Sprintf("%s must be a valid URL.", spec.Label)
		}
	case KindTel:
		if validate.Var(value, "phone") != nil {
			return fmt.Sprintf("%s must be a valid phone number.", spec.Label)
		}
	}
	return ""
}
