// Package wizard implements the four-step registration state machine:
// role selection, core identity fields, role-specific fields, then consent.
//
// A Wizard is owned by a single user interaction and is not safe for
// concurrent use.
package wizard

import (
	"context"
	"errors"
	"strings"

	"student_portal_backend/internal/rolefields"
)

// Steps.
const (
	StepRole       = 1
	StepIdentity   = 2
	StepRoleFields = 3
	StepReview     = 4
)

// Mode is the mode of the surrounding auth UI.
type Mode string

const (
	ModeRegister Mode = "register"
	ModeSignIn   Mode = "signin"
)

// Draft is an in-progress registration.
type Draft struct {
	Role             string
	Name             string
	Email            string
	Password         string
	ConfirmPassword  string
	Field1Value      string
	Field2Value      string
	Field3Value      string
	Field1OtherValue string
	Field2OtherValue string
	AcceptedTerms    bool
	CurrentStep      int
}

func newDraft() Draft {
	return Draft{CurrentStep: StepRole}
}

func (d Draft) rawFields() rolefields.RawFields {
	return rolefields.RawFields{
		Field1:      d.Field1Value,
		Field2:      d.Field2Value,
		Field3:      d.Field3Value,
		Field1Other: d.Field1OtherValue,
		Field2Other: d.Field2OtherValue,
	}
}

// RegistrationRequest is what the wizard hands to the Registrar on submit.
// It is also the JSON body of the register endpoint.
type RegistrationRequest struct {
	Role            string               `json:"role"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Password        string               `json:"password"`
	ConfirmPassword string               `json:"confirmPassword"`
	RoleDetails     rolefields.RawFields `json:"roleDetails"`
	AcceptedTerms   bool                 `json:"acceptedTerms"`
}

// Draft rebuilds the draft a request was made from, positioned on the review step.
func (r RegistrationRequest) Draft() Draft {
	return Draft{
		Role:             r.Role,
		Name:             r.Name,
		Email:            r.Email,
		Password:         r.Password,
		ConfirmPassword:  r.ConfirmPassword,
		Field1Value:      r.RoleDetails.Field1,
		Field2Value:      r.RoleDetails.Field2,
		Field3Value:      r.RoleDetails.Field3,
		Field1OtherValue: r.RoleDetails.Field1Other,
		Field2OtherValue: r.RoleDetails.Field2Other,
		AcceptedTerms:    r.AcceptedTerms,
		CurrentStep:      StepReview,
	}
}

// Registrar creates the account. It is the only network boundary of the wizard.
type Registrar interface {
	Register(ctx context.Context, req RegistrationRequest) error
}

// ErrValidation is returned by Submit when the draft does not pass validation.
var ErrValidation = errors.New("wizard: draft failed validation")

// ErrNotOnReview is returned by Submit before the review step is reached.
var ErrNotOnReview = errors.New("wizard: submit is only allowed from the review step")

// SubmitErrorKey is the error key for a failed submission.
const SubmitErrorKey = "submit"

type Wizard struct {
	registrar Registrar
	draft     Draft
	errors    FieldErrors
	mode      Mode
}

// New returns a wizard on step 1 with an empty draft.
func New(registrar Registrar) *Wizard {
	return &Wizard{
		registrar: registrar,
		draft:     newDraft(),
		errors:    FieldErrors{},
		mode:      ModeRegister,
	}
}

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft { return w.draft }

// Step returns the current step.
func (w *Wizard) Step() int { return w.draft.CurrentStep }

// Mode returns the surrounding UI mode.
func (w *Wizard) Mode() Mode { return w.mode }

// SetMode switches between register and sign-in.
func (w *Wizard) SetMode(m Mode) { w.mode = m }

// Errors returns a copy of the current field errors.
func (w *Wizard) Errors() FieldErrors {
	out := make(FieldErrors, len(w.errors))
	for k, v := range w.errors {
		out[k] = v
	}
	return out
}

// Update applies fn to the draft. The step cannot be changed this way, a role
// change discards the role-specific values, and an "other" value is dropped
// whenever its selector no longer points at the sentinel.
func (w *Wizard) Update(fn func(*Draft)) {
	prev := w.draft
	next := prev
	fn(&next)
	next.CurrentStep = prev.CurrentStep

	if next.Role != prev.Role {
		next.Field1Value, next.Field2Value, next.Field3Value = "", "", ""
		next.Field1OtherValue, next.Field2OtherValue = "", ""
	}
	if spec, ok := rolefields.Lookup(next.Role); ok {
		if !selectsOther(spec.Fields[0], next.Field1Value) {
			next.Field1OtherValue = ""
		}
		if !selectsOther(spec.Fields[1], next.Field2Value) {
			next.Field2OtherValue = ""
		}
	}
	w.draft = next
}

func selectsOther(f rolefields.FieldSpec, raw string) bool {
	return f.HasOther() && raw == f.OtherSentinel
}

// Advance validates the current step and moves forward when it passes.
// It returns false, with errors populated, when validation fails.
func (w *Wizard) Advance() bool {
	errs := ValidateStep(w.draft, w.draft.CurrentStep)
	w.errors = errs
	if !errs.Empty() {
		return false
	}
	if w.draft.CurrentStep < StepReview {
		w.draft.CurrentStep++
	}
	return true
}

// Retreat moves back one step and clears errors. Draft values are kept.
func (w *Wizard) Retreat() {
	if w.draft.CurrentStep > StepRole {
		w.draft.CurrentStep--
	}
	w.errors = FieldErrors{}
}

// BackTo jumps back to an earlier step. Forward jumps are refused.
func (w *Wizard) BackTo(step int) bool {
	if step < StepRole || step >= w.draft.CurrentStep {
		return false
	}
	w.draft.CurrentStep = step
	w.errors = FieldErrors{}
	return true
}

// Submit re-validates the role fields and consent, then calls the registrar.
// On success the wizard resets and switches to sign-in mode; on failure the
// draft is kept and the reason is attached under SubmitErrorKey.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.draft.CurrentStep != StepReview {
		return ErrNotOnReview
	}

	if errs := ValidateStep(w.draft, StepRoleFields); !errs.Empty() {
		w.errors = errs
		w.draft.CurrentStep = StepRoleFields
		return ErrValidation
	}
	if errs := ValidateStep(w.draft, StepReview); !errs.Empty() {
		w.errors = errs
		return ErrValidation
	}

	d := w.draft
	req := RegistrationRequest{
		Role:            d.Role,
		Name:            strings.TrimSpace(d.Name),
		Email:           strings.ToLower(strings.TrimSpace(d.Email)),
		Password:        d.Password,
		ConfirmPassword: d.ConfirmPassword,
		RoleDetails:     d.rawFields(),
		AcceptedTerms:   d.AcceptedTerms,
	}
	if err := w.registrar.Register(ctx, req); err != nil {
		w.errors = FieldErrors{SubmitErrorKey: err.Error()}
		return err
	}

	w.Reset()
	w.mode = ModeSignIn
	return nil
}

// Reset discards the draft and returns to step 1.
func (w *Wizard) Reset() {
	w.draft = newDraft()
	w.errors = FieldErrors{}
}
