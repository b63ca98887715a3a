package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistrar struct {
	failures []error
	got      []wizard.RegistrationRequest
}

func (r *recordingRegistrar) Register(_ context.Context, req wizard.RegistrationRequest) error {
	r.got = append(r.got, req)
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return err
	}
	return nil
}

func scripted(lines []string, passwords []string) (*prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &prompter{
		in:  bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n")),
		out: out,
		readPassword: func() ([]byte, error) {
			if len(passwords) == 0 {
				return nil, errors.New("no input")
			}
			p := passwords[0]
			passwords = passwords[1:]
			return []byte(p), nil
		},
	}, out
}

func TestRun_CompletesRegistration(t *testing.T) {
	reg := &recordingRegistrar{}
	p, out := scripted([]string{
		"Student",
		"Ada Lovelace", "ada@example.com",
		"Ada Lovelace", "ada@example.com",
		"6", "Acme College", "Computer Science", "",
		"y",
	}, []string{"secret1", "mismatch", "secret1", "secret1"})

	w := wizard.New(reg)
	require.NoError(t, run(context.Background(), w, rolefields.All(), p))

	require.Len(t, reg.got, 1)
	req := reg.got[0]
	assert.Equal(t, rolefields.RoleStudent, req.Role)
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, rolefields.UniversityOther, req.RoleDetails.Field1)
	assert.Equal(t, "Acme College", req.RoleDetails.Field1Other)
	assert.Equal(t, "Computer Science", req.RoleDetails.Field2)
	assert.True(t, req.AcceptedTerms)

	assert.Contains(t, out.String(), "Passwords do not match.")
	assert.Contains(t, out.String(), "Account created.")
	assert.Equal(t, wizard.ModeSignIn, w.Mode())
}

func TestRun_SubmitFailureKeepsDraftAndRetries(t *testing.T) {
	reg := &recordingRegistrar{failures: []error{errors.New("An account with this email already exists.")}}
	p, out := scripted([]string{
		"Student",
		"Ada Lovelace", "ada@example.com",
		"1", "Computer Science", "",
		"y",
		"y",
	}, []string{"secret1", "secret1"})

	require.NoError(t, run(context.Background(), wizard.New(reg), rolefields.All(), p))

	require.Len(t, reg.got, 2)
	assert.Equal(t, reg.got[0], reg.got[1])
	assert.Contains(t, out.String(), "already exists")
}

func TestRun_GoBackFromReview(t *testing.T) {
	reg := &recordingRegistrar{}
	p, _ := scripted([]string{
		"Student",
		"Ada Lovelace", "ada@example.com",
		"1", "Computer Science", "",
		"b",
		"1", "Nursing", "",
		"y",
	}, []string{"secret1", "secret1"})

	require.NoError(t, run(context.Background(), wizard.New(reg), rolefields.All(), p))
	require.Len(t, reg.got, 1)
	assert.Equal(t, "Nursing", reg.got[0].RoleDetails.Field2)
}

func TestRun_EndOfInputAborts(t *testing.T) {
	reg := &recordingRegistrar{}
	p, _ := scripted([]string{"Student", "Ada Lovelace"}, nil)

	err := run(context.Background(), wizard.New(reg), rolefields.All(), p)
	assert.ErrorIs(t, err, errAborted)
	assert.Empty(t, reg.got)
}
