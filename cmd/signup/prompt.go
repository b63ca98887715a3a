package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/wizard"
)

// errAborted is returned when the user quits or input ends.
var errAborted = errors.New("registration cancelled")

const backCommand = "b"

type prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	s, err := p.in.ReadString('\n')
	if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
		return "", errAborted
	}
	s = strings.TrimSpace(s)
	if s == "q" {
		return "", errAborted
	}
	return s, nil
}

func (p *prompter) password(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	pwd, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", errAborted
	}
	return string(pwd), nil
}

// choose prints numbered options and returns the picked one. Free text that
// is not a number is returned as typed.
func (p *prompter) choose(label string, options []string) (string, error) {
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}
	s, err := p.line(label)
	if err != nil {
		return "", err
	}
	if n, convErr := strconv.Atoi(s); convErr == nil && n >= 1 && n <= len(options) {
		return options[n-1], nil
	}
	return s, nil
}

func (p *prompter) showErrors(errs wizard.FieldErrors) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.out, "  ! %s: %s\n", k, errs[k])
	}
}

// run drives w until a successful submit. Typing "b" at the start of a step
// goes back one step; "q" quits.
func run(ctx context.Context, w *wizard.Wizard, roles []rolefields.RoleSpec, p *prompter) error {
	fmt.Fprintln(p.out, "Create your student portal account. Type b to go back, q to quit.")
	for {
		if err := ctx.Err(); err != nil {
			return errAborted
		}
		fmt.Fprintf(p.out, "\nStep %d of %d\n", w.Step(), wizard.StepReview)

		back, err := collect(w, roles, p)
		if err != nil {
			return err
		}
		if back {
			w.Retreat()
			continue
		}

		if w.Step() < wizard.StepReview {
			if !w.Advance() {
				p.showErrors(w.Errors())
			}
			continue
		}

		err = w.Submit(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(p.out, "Account created. Check your inbox for a verification link, then sign in.")
			return nil
		case errors.Is(err, wizard.ErrValidation):
			p.showErrors(w.Errors())
		default:
			fmt.Fprintf(p.out, "  ! %s\n", err)
		}
	}
}

// collect asks for the values of the current step and reports whether the
// user asked to go back instead.
func collect(w *wizard.Wizard, roles []rolefields.RoleSpec, p *prompter) (bool, error) {
	switch w.Step() {
	case wizard.StepRole:
		labels := make([]string, len(roles))
		for i, r := range roles {
			labels[i] = r.RoleLabel
		}
		picked, err := p.choose("I am a", labels)
		if err != nil {
			return false, err
		}
		role := picked
		for _, r := range roles {
			if r.RoleLabel == picked {
				role = r.Role
			}
		}
		w.Update(func(d *wizard.Draft) { d.Role = role })

	case wizard.StepIdentity:
		name, err := p.line("Full name")
		if err != nil || name == backCommand {
			return name == backCommand, err
		}
		email, err := p.line("Email")
		if err != nil {
			return false, err
		}
		pwd, err := p.password("Password")
		if err != nil {
			return false, err
		}
		confirm, err := p.password("Confirm password")
		if err != nil {
			return false, err
		}
		w.Update(func(d *wizard.Draft) {
			d.Name, d.Email, d.Password, d.ConfirmPassword = name, email, pwd, confirm
		})

	case wizard.StepRoleFields:
		spec, ok := rolefields.Lookup(w.Draft().Role)
		if !ok {
			return true, nil
		}
		var values [3]string
		var others [2]string
		for i, f := range spec.Fields {
			label := f.Label
			if f.Optional {
				label += " (optional)"
			}
			var v string
			var err error
			if len(f.Options) > 0 {
				v, err = p.choose(label, f.Options)
			} else {
				v, err = p.line(label)
			}
			if err != nil {
				return false, err
			}
			if i == 0 && v == backCommand {
				return true, nil
			}
			values[i] = v
			if i < 2 && f.HasOther() && v == f.OtherSentinel {
				if others[i], err = p.line("Please specify"); err != nil {
					return false, err
				}
			}
		}
		w.Update(func(d *wizard.Draft) {
			d.Field1Value, d.Field2Value, d.Field3Value = values[0], values[1], values[2]
			d.Field1OtherValue, d.Field2OtherValue = others[0], others[1]
		})

	case wizard.StepReview:
		d := w.Draft()
		fmt.Fprintf(p.out, "  Role: %s\n  Name: %s\n  Email: %s\n", d.Role, d.Name, d.Email)
		answer, err := p.line("Accept the terms of service? [y/N]")
		if err != nil || answer == backCommand {
			return answer == backCommand, err
		}
		accepted := strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
		w.Update(func(d *wizard.Draft) { d.AcceptedTerms = accepted })
	}
	return false, nil
}
