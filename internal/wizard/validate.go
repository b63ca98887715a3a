package wizard

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"student_portal_backend/internal/rolefields"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

// FieldErrors maps a draft field key to a user-facing message.
type FieldErrors = rolefields.FieldErrors

var validate = validator.New()

// ValidateStep runs the validation for a single step against d. It never
// touches the network and never mutates d.
func ValidateStep(d Draft, step int) FieldErrors {
	switch step {
	case StepRole:
		return validateRole(d)
	case StepIdentity:
		return validateIdentity(d)
	case StepRoleFields:
		_, errs := rolefields.ValidateRoleFields(d.Role, d.rawFields())
		return errs
	case StepReview:
		return validateConsent(d)
	}
	return FieldErrors{}
}

// ValidateAll runs every step and merges the results. Used by the server to
// re-check a submitted registration.
func ValidateAll(d Draft) FieldErrors {
	all := FieldErrors{}
	for step := StepRole; step <= StepReview; step++ {
		for k, v := range ValidateStep(d, step) {
			all[k] = v
		}
	}
	return all
}

func validateRole(d Draft) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(d.Role) == "" {
		errs["role"] = "Please select a role."
	} else if !rolefields.IsValidRole(d.Role) {
		errs["role"] = "Please select a valid role."
	}
	return errs
}

// validateIdentity checks all four identity fields independently so every
// problem is reported at once.
func validateIdentity(d Draft) FieldErrors {
	errs := FieldErrors{}

	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		errs["name"] = "Name is required."
	case utf8.RuneCountInString(name) < minNameLength:
		errs["name"] = "Name must be at least 2 characters."
	}

	email := strings.TrimSpace(d.Email)
	switch {
	case email == "":
		errs["email"] = "Email is required."
	case validate.Var(email, "email") != nil:
		errs["email"] = "Please enter a valid email address."
	}

	switch {
	case d.Password == "":
		errs["password"] = "Password is required."
	case utf8.RuneCountInString(d.Password) < minPasswordLength:
		errs["password"] = "Password must be at least 6 characters."
	}

	switch {
	case d.ConfirmPassword == "":
		errs["confirmPassword"] = "Please confirm your password."
	case d.ConfirmPassword != d.Password:
		errs["confirmPassword"] = "Passwords do not match."
	}

	return errs
}

func validateConsent(d Draft) FieldErrors {
	errs := FieldErrors{}
	if !d.AcceptedTerms {
		errs["acceptedTerms"] = "You must accept the terms to continue."
	}
	return errs
}
