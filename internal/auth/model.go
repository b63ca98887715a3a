// File: internal/auth/model.go
package auth

import (
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/user"
)

// SignInRequest defines the structure for password sign-in requests.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// FederatedSignInRequest carries the ID token the client obtained from a
// federated provider.
type FederatedSignInRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// SessionRequest is the body of POST /auth/session.
type SessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// PreflightRequest is the body of POST /auth/preflight.
type PreflightRequest struct {
	Email string `json:"email"`
}

// PasswordResetRequest is the body of POST /auth/password-reset.
type PasswordResetRequest struct {
	Email       string `json:"email"`
	ContinueURL string `json:"continueUrl,omitempty" binding:"omitempty,url"`
}

// VerificationRequest is the body of POST /auth/verification. Token is the
// caller's current bearer token; it is not needed when already verified.
type VerificationRequest struct {
	ContinueURL string `json:"continueUrl,omitempty" binding:"omitempty,url"`
	Token       string `json:"token,omitempty"`
}

// ConfirmPasswordResetRequest is the body of POST /auth/action.
type ConfirmPasswordResetRequest struct {
	OOBCode     string `json:"oobCode" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// Session is what a successful sign-in path reports to the caller.
type Session struct {
	UID                    string `json:"uid"`
	Email                  string `json:"email"`
	EmailVerified          bool   `json:"emailVerified"`
	Role                   string `json:"role,omitempty"`
	NeedsProfileCompletion bool   `json:"needsProfileCompletion"`
	// VerificationPending marks a password session whose email is not
	// confirmed yet. It may only check itself and ask for a new email.
	VerificationPending    bool   `json:"verificationPending,omitempty"`
	Demo                   bool   `json:"demo,omitempty"`
}

func newSession(uid, email string, verified bool, u *user.User) *Session {
	s := &Session{UID: uid, Email: email, EmailVerified: verified, NeedsProfileCompletion: true}
	if u != nil {
		s.Email = u.Email
		s.Role = u.Role
		s.NeedsProfileCompletion = u.NeedsProfileCompletion
	}
	return s
}

func sessionFromClaims(claims *identity.Claims, u *user.User) *Session {
	s := newSession(claims.UID, claims.Email, claims.EmailVerified, u)
	s.VerificationPending = identity.UnverifiedPassword(claims.SignInProvider, claims.EmailVerified)
	return s
}

func demoSession() *Session {
	u := DemoUser()
	s := newSession(u.ID, u.Email, true, u)
	s.Demo = true
	return s
}
