package identity

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"student_portal_backend/internal/config"
	"student_portal_backend/internal/platform/mailer"
)

// tokenRefreshSkew renews bearer tokens slightly before they expire.
const tokenRefreshSkew = time.Minute

// FirebaseProvider backs Provider with Firebase Authentication.
type FirebaseProvider struct {
	authClient *auth.Client
	rest       *restClient
	mailer     mailer.Mailer
	logger     *zap.Logger
}

// NewFirebaseProvider initializes the Firebase Admin SDK from the service account key.
func NewFirebaseProvider(cfg *config.Config, m mailer.Mailer, logger *zap.Logger) (*FirebaseProvider, error) {
	if cfg.FirebaseServiceAccountKeyPath == "" {
		return nil, fmt.Errorf("firebase service account key path is required")
	}
	if cfg.FirebaseWebAPIKey == "" {
		return nil, fmt.Errorf("firebase web API key is required for password sign-in")
	}

	keyPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(keyPath)

	var fbConf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(context.Background(), fbConf, opt)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", keyPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return &FirebaseProvider{
		authClient: authClient,
		rest:       newRESTClient(cfg.FirebaseWebAPIKey, cfg.ServerTimeout),
		mailer:     m,
		logger:     logger.Named("FirebaseProvider"),
	}, nil
}

func (p *FirebaseProvider) CreateIdentity(ctx context.Context, email, password string) (*Credential, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password).EmailVerified(false)
	record, err := p.authClient.CreateUser(ctx, params)
	if err != nil {
		// The SDK rejects short passwords locally and only says so in the message.
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return nil, wrap(ErrWeakPassword, err)
		}
		return nil, mapAdminError(err)
	}
	p.logger.Info("Identity created", zap.String("uid", record.UID))

	// CreateUser does not hand back tokens; sign in once to obtain them.
	cred, err := p.rest.signInWithPassword(ctx, email, password)
	if err != nil {
		return &Credential{UID: record.UID, Email: record.Email, SignInProvider: PasswordSignIn}, err
	}
	return cred, nil
}

func (p *FirebaseProvider) Authenticate(ctx context.Context, email, password string) (*Credential, error) {
	cred, err := p.rest.signInWithPassword(ctx, email, password)
	if err != nil {
		p.logger.Debug("Password sign-in rejected", zap.Error(err))
		return nil, err
	}
	return cred, nil
}

func (p *FirebaseProvider) AuthenticateFederated(ctx context.Context, idToken string) (*Credential, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, wrap(ErrInvalidToken, fmt.Errorf("ID token must not be empty"))
	}
	token, err := p.authClient.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		p.logger.Warn("Federated ID token verification failed", zap.Error(err))
		return nil, mapAdminError(err)
	}
	cred := &Credential{
		UID:            token.UID,
		SignInProvider: token.Firebase.SignInProvider,
		IDToken:        idToken,
		ExpiresAt:      time.Unix(token.Expires, 0),
	}
	if err := p.ReloadCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (p *FirebaseProvider) MintBearerToken(ctx context.Context, cred *Credential, forceRefresh bool) (string, error) {
	if cred == nil {
		return "", wrap(ErrInvalidToken, fmt.Errorf("no credential"))
	}
	fresh := cred.IDToken != "" && time.Now().Add(tokenRefreshSkew).Before(cred.ExpiresAt)
	if fresh && !forceRefresh {
		return cred.IDToken, nil
	}
	if cred.RefreshToken == "" {
		// Federated credentials come without a refresh token.
		if fresh {
			return cred.IDToken, nil
		}
		return "", wrap(ErrInvalidToken, fmt.Errorf("credential expired and cannot be refreshed"))
	}

	out, err := p.rest.refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}
	cred.IDToken = out.IDToken
	cred.RefreshToken = out.RefreshToken
	cred.ExpiresAt = expiry(out.ExpiresIn)
	return cred.IDToken, nil
}

func (p *FirebaseProvider) ReloadCredential(ctx context.Context, cred *Credential) error {
	record, err := p.authClient.GetUser(ctx, cred.UID)
	if err != nil {
		return mapAdminError(err)
	}
	if record.Disabled {
		return wrap(ErrUserDisabled, nil)
	}
	cred.Email = record.Email
	cred.EmailVerified = record.EmailVerified
	cred.DisplayName = record.DisplayName
	return nil
}

func (p *FirebaseProvider) SendVerificationEmail(ctx context.Context, bearerToken, continueURL string) error {
	claims, err := p.VerifyBearerToken(ctx, bearerToken)
	if err != nil {
		return err
	}
	var link string
	if continueURL != "" {
		link, err = p.authClient.EmailVerificationLinkWithSettings(ctx, claims.Email, &auth.ActionCodeSettings{URL: continueURL})
	} else {
		link, err = p.authClient.EmailVerificationLink(ctx, claims.Email)
	}
	if err != nil {
		return mapAdminError(err)
	}
	return p.deliver(ctx, claims.Email, verificationMessage(claims.Email, link))
}

func (p *FirebaseProvider) SendPasswordResetEmail(ctx context.Context, email, continueURL string) error {
	var (
		link string
		err  error
	)
	if continueURL != "" {
		link, err = p.authClient.PasswordResetLinkWithSettings(ctx, email, &auth.ActionCodeSettings{URL: continueURL})
	} else {
		link, err = p.authClient.PasswordResetLink(ctx, email)
	}
	if err != nil {
		return mapAdminError(err)
	}
	return p.deliver(ctx, email, passwordResetMessage(email, link))
}

func (p *FirebaseProvider) DeleteIdentity(ctx context.Context, uid string) error {
	if err := p.authClient.DeleteUser(ctx, uid); err != nil {
		return mapAdminError(err)
	}
	p.logger.Info("Identity deleted", zap.String("uid", uid))
	return nil
}

func (p *FirebaseProvider) RevokeSession(ctx context.Context, uid string) error {
	if err := p.authClient.RevokeRefreshTokens(ctx, uid); err != nil {
		p.logger.Error("Failed to revoke refresh tokens", zap.Error(err), zap.String("uid", uid))
		return mapAdminError(err)
	}
	p.logger.Info("Successfully revoked refresh tokens for user", zap.String("uid", uid))
	return nil
}

func (p *FirebaseProvider) CreateSessionCookie(ctx context.Context, bearerToken string, maxAge time.Duration) (string, error) {
	cookie, err := p.authClient.SessionCookie(ctx, bearerToken, maxAge)
	if err != nil {
		return "", mapAdminError(err)
	}
	return cookie, nil
}

func (p *FirebaseProvider) VerifySessionCookie(ctx context.Context, cookie string) (*Claims, error) {
	token, err := p.authClient.VerifySessionCookieAndCheckRevoked(ctx, cookie)
	if err != nil {
		return nil, mapAdminError(err)
	}
	return claimsFromToken(token), nil
}

func (p *FirebaseProvider) VerifyBearerToken(ctx context.Context, bearerToken string) (*Claims, error) {
	if bearerToken == "" {
		return nil, wrap(ErrInvalidToken, fmt.Errorf("ID token must not be empty"))
	}
	token, err := p.authClient.VerifyIDToken(ctx, bearerToken)
	if err != nil {
		return nil, mapAdminError(err)
	}
	return claimsFromToken(token), nil
}

func (p *FirebaseProvider) deliver(ctx context.Context, to string, msg mailer.Message) error {
	msg.To = to
	if err := p.mailer.Send(ctx, msg); err != nil {
		return wrap(ErrUnavailable, err)
	}
	return nil
}

func claimsFromToken(token *auth.Token) *Claims {
	c := &Claims{
		UID:            token.UID,
		SignInProvider: token.Firebase.SignInProvider,
		ExpiresAt:      time.Unix(token.Expires, 0),
	}
	if email, ok := token.Claims["email"].(string); ok {
		c.Email = email
	}
	if verified, ok := token.Claims["email_verified"].(bool); ok {
		c.EmailVerified = verified
	}
	return c
}

func mapAdminError(err error) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return wrap(ErrEmailAlreadyExists, err)
	case auth.IsUserNotFound(err), auth.IsEmailNotFound(err):
		return wrap(ErrUserNotFound, err)
	case auth.IsInvalidEmail(err):
		return wrap(ErrInvalidEmail, err)
	case auth.IsUserDisabled(err):
		return wrap(ErrUserDisabled, err)
	case auth.IsIDTokenExpired(err), auth.IsIDTokenInvalid(err), auth.IsIDTokenRevoked(err),
		auth.IsSessionCookieExpired(err), auth.IsSessionCookieInvalid(err), auth.IsSessionCookieRevoked(err):
		return wrap(ErrInvalidToken, err)
	}
	return wrap(ErrUnavailable, err)
}
