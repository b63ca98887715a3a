// Package identity is the boundary to the external identity provider. Every
// error leaving this package is one of the sentinel errors in errors.go.
package identity

import (
	"context"
	"time"
)

// Credential is a signed-in identity as seen by this service. It is never persisted.
type Credential struct {
	UID            string
	Email          string
	EmailVerified  bool
	DisplayName    string
	// SignInProvider names how the identity signed in, e.g. "password" or "google.com".
	SignInProvider string
	IDToken        string
	RefreshToken   string
	ExpiresAt      time.Time
}

// Claims are what a verified session cookie tells us about its holder.
type Claims struct {
	UID            string
	Email          string
	EmailVerified  bool
	SignInProvider string
	ExpiresAt      time.Time
}

// PasswordSignIn is the sign-in provider of email and password identities.
const PasswordSignIn = "password"

// UnverifiedPassword reports whether a password identity has not confirmed
// its email yet. Federated identities are vouched for by their provider.
func UnverifiedPassword(signInProvider string, emailVerified bool) bool {
	return signInProvider == PasswordSignIn && !emailVerified
}

// Provider is the capability set required from the identity provider.
type Provider interface {
	CreateIdentity(ctx context.Context, email, password string) (*Credential, error)
	Authenticate(ctx context.Context, email, password string) (*Credential, error)
	// AuthenticateFederated accepts an ID token the client obtained from a
	// federated sign-in (Google and friends) and turns it into a credential.
	AuthenticateFederated(ctx context.Context, idToken string) (*Credential, error)
	MintBearerToken(ctx context.Context, cred *Credential, forceRefresh bool) (string, error)
	// ReloadCredential refreshes the mutable parts of cred (EmailVerified, DisplayName).
	ReloadCredential(ctx context.Context, cred *Credential) error
	SendVerificationEmail(ctx context.Context, bearerToken, continueURL string) error
	SendPasswordResetEmail(ctx context.Context, email, continueURL string) error
	DeleteIdentity(ctx context.Context, uid string) error
	RevokeSession(ctx context.Context, uid string) error

	CreateSessionCookie(ctx context.Context, bearerToken string, maxAge time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string) (*Claims, error)
	// VerifyBearerToken checks a short-lived bearer token.
	VerifyBearerToken(ctx context.Context, token string) (*Claims, error)
}
