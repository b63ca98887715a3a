package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"student_portal_backend/internal/config"
	"student_portal_backend/internal/platform/crypto"
	"student_portal_backend/internal/platform/mailer"
)

const (
	localIssuer         = "student_portal_local_identity"
	localIDTokenTTL     = time.Hour
	localRefreshTTL     = 30 * 24 * time.Hour
	localActionCodeTTL  = 24 * time.Hour
	localMinPasswordLen = 6

	// Throttle password attempts the way hosted providers do.
	localMaxFailedAttempts = 5
	localLockout           = 5 * time.Minute
)

// Token uses, stored in the "use" claim.
const (
	useID          = "id"
	useRefresh     = "refresh"
	useSession     = "session"
	useVerifyEmail = "verifyEmail"
	useResetPass   = "resetPassword"
)

// Action modes carried in emailed links.
const (
	ActionVerifyEmail   = "verifyEmail"
	ActionResetPassword = "resetPassword"
)

type localClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Use           string `json:"use"`
	jwt.RegisteredClaims
}

type localIdentity struct {
	uid           string
	email         string
	passwordHash  []byte
	emailVerified bool
	displayName   string
	disabled      bool
	validAfter    time.Time
	failed        int
	lockedUntil   time.Time
}

// LocalProvider is an in-process identity provider for development and tests.
// Identities live in memory and are lost on restart.
type LocalProvider struct {
	mu         sync.RWMutex
	byUID      map[string]*localIdentity
	byEmail    map[string]string
	secret     []byte
	actionBase string
	mailer     mailer.Mailer
	logger     *zap.Logger
	now        func() time.Time
}

// NewLocalProvider builds a LocalProvider signing tokens with LOCAL_IDENTITY_SECRET.
// Without a secret a random one is generated, so tokens do not survive a restart.
func NewLocalProvider(cfg *config.Config, m mailer.Mailer, logger *zap.Logger) *LocalProvider {
	logger = logger.Named("LocalProvider")
	secret := cfg.LocalIdentitySecret
	if strings.TrimSpace(secret) == "" {
		generated, err := crypto.RandomToken(32)
		if err != nil {
			panic(fmt.Sprintf("identity: cannot generate signing secret: %v", err))
		}
		logger.Warn("LOCAL_IDENTITY_SECRET not set, using an ephemeral signing secret")
		secret = generated
	}
	return &LocalProvider{
		byUID:      make(map[string]*localIdentity),
		byEmail:    make(map[string]string),
		secret:     []byte(secret),
		actionBase: strings.TrimRight(cfg.AppBaseURL, "/") + "/api/v1/auth/action",
		mailer:     m,
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) CreateIdentity(ctx context.Context, email, password string) (*Credential, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, wrap(ErrInvalidEmail, nil)
	}
	if utf8.RuneCountInString(password) < localMinPasswordLen {
		return nil, wrap(ErrWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, wrap(ErrUnavailable, err)
	}

	p.mu.Lock()
	if _, taken := p.byEmail[email]; taken {
		p.mu.Unlock()
		return nil, wrap(ErrEmailAlreadyExists, nil)
	}
	id := &localIdentity{uid: uuid.NewString(), email: email, passwordHash: hash}
	p.byUID[id.uid] = id
	p.byEmail[email] = id.uid
	p.mu.Unlock()

	p.logger.Info("Identity created", zap.String("uid", id.uid))
	return p.issue(id)
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Credential, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	uid, ok := p.byEmail[email]
	if !ok {
		return nil, wrap(ErrUserNotFound, nil)
	}
	id := p.byUID[uid]
	now := p.now()
	if now.Before(id.lockedUntil) {
		return nil, wrap(ErrTooManyAttempts, nil)
	}
	if id.disabled {
		return nil, wrap(ErrUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword(id.passwordHash, []byte(password)); err != nil {
		id.failed++
		if id.failed >= localMaxFailedAttempts {
			id.failed = 0
			id.lockedUntil = now.Add(localLockout)
		}
		return nil, wrap(ErrInvalidCredentials, nil)
	}
	id.failed = 0
	return p.issue(id)
}

// AuthenticateFederated accepts ID tokens minted by this provider. There is
// no external federated provider in local mode.
func (p *LocalProvider) AuthenticateFederated(ctx context.Context, idToken string) (*Credential, error) {
	claims, err := p.parse(idToken, useID)
	if err != nil {
		return nil, err
	}
	cred := &Credential{UID: claims.Subject, SignInProvider: PasswordSignIn, IDToken: idToken, ExpiresAt: claims.ExpiresAt.Time}
	if err := p.ReloadCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (p *LocalProvider) MintBearerToken(ctx context.Context, cred *Credential, forceRefresh bool) (string, error) {
	if cred == nil {
		return "", wrap(ErrInvalidToken, fmt.Errorf("no credential"))
	}
	if !forceRefresh && cred.IDToken != "" && p.now().Before(cred.ExpiresAt) {
		return cred.IDToken, nil
	}
	claims, err := p.parse(cred.RefreshToken, useRefresh)
	if err != nil {
		return "", err
	}
	id, err := p.lookup(claims.Subject)
	if err != nil {
		return "", err
	}
	fresh, err := p.issue(id)
	if err != nil {
		return "", err
	}
	cred.IDToken = fresh.IDToken
	cred.ExpiresAt = fresh.ExpiresAt
	cred.EmailVerified = fresh.EmailVerified
	return cred.IDToken, nil
}

func (p *LocalProvider) ReloadCredential(ctx context.Context, cred *Credential) error {
	id, err := p.lookup(cred.UID)
	if err != nil {
		return err
	}
	if id.disabled {
		return wrap(ErrUserDisabled, nil)
	}
	cred.Email = id.email
	cred.EmailVerified = id.emailVerified
	cred.DisplayName = id.displayName
	return nil
}

func (p *LocalProvider) SendVerificationEmail(ctx context.Context, bearerToken, continueURL string) error {
	claims, err := p.parse(bearerToken, useID)
	if err != nil {
		return err
	}
	code, err := p.actionCode(claims.Subject, claims.Email, useVerifyEmail)
	if err != nil {
		return err
	}
	link := p.actionLink(ActionVerifyEmail, code, continueURL)
	if err := p.mailer.Send(ctx, verificationMessage(claims.Email, link)); err != nil {
		return wrap(ErrUnavailable, err)
	}
	return nil
}

func (p *LocalProvider) SendPasswordResetEmail(ctx context.Context, email, continueURL string) error {
	email = normalizeEmail(email)
	p.mu.RLock()
	uid, ok := p.byEmail[email]
	p.mu.RUnlock()
	if !ok {
		return wrap(ErrUserNotFound, nil)
	}
	code, err := p.actionCode(uid, email, useResetPass)
	if err != nil {
		return err
	}
	link := p.actionLink(ActionResetPassword, code, continueURL)
	if err := p.mailer.Send(ctx, passwordResetMessage(email, link)); err != nil {
		return wrap(ErrUnavailable, err)
	}
	return nil
}

// ApplyEmailVerification consumes a verification action code.
func (p *LocalProvider) ApplyEmailVerification(ctx context.Context, code string) error {
	claims, err := p.parse(code, useVerifyEmail)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byUID[claims.Subject]
	if !ok || id.email != claims.Email {
		return wrap(ErrInvalidToken, nil)
	}
	id.emailVerified = true
	return nil
}

// ConfirmPasswordReset consumes a reset action code and sets a new password.
// Existing sessions are revoked.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	claims, err := p.parse(code, useResetPass)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(newPassword) < localMinPasswordLen {
		return wrap(ErrWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return wrap(ErrUnavailable, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byUID[claims.Subject]
	if !ok || id.email != claims.Email {
		return wrap(ErrInvalidToken, nil)
	}
	id.passwordHash = hash
	id.validAfter = p.now().Truncate(time.Second)
	return nil
}

// SetDisabled toggles the disabled flag of an identity.
func (p *LocalProvider) SetDisabled(uid string, disabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byUID[uid]
	if !ok {
		return wrap(ErrUserNotFound, nil)
	}
	id.disabled = disabled
	return nil
}

func (p *LocalProvider) DeleteIdentity(ctx context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byUID[uid]
	if !ok {
		return wrap(ErrUserNotFound, nil)
	}
	delete(p.byUID, uid)
	delete(p.byEmail, id.email)
	p.logger.Info("Identity deleted", zap.String("uid", uid))
	return nil
}

func (p *LocalProvider) RevokeSession(ctx context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byUID[uid]
	if !ok {
		return wrap(ErrUserNotFound, nil)
	}
	// Tokens carry second precision; anything issued in an earlier second is revoked.
	id.validAfter = p.now().Truncate(time.Second)
	return nil
}

func (p *LocalProvider) CreateSessionCookie(ctx context.Context, bearerToken string, maxAge time.Duration) (string, error) {
	claims, err := p.parse(bearerToken, useID)
	if err != nil {
		return "", err
	}
	now := p.now()
	return p.sign(localClaims{
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Use:           useSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
			ID:        uuid.NewString(),
		},
	})
}

func (p *LocalProvider) VerifySessionCookie(ctx context.Context, cookie string) (*Claims, error) {
	claims, err := p.parse(cookie, useSession)
	if err != nil {
		return nil, err
	}
	return toClaims(claims), nil
}

func (p *LocalProvider) VerifyBearerToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := p.parse(token, useID)
	if err != nil {
		return nil, err
	}
	return toClaims(claims), nil
}

func toClaims(c *localClaims) *Claims {
	// Every local identity signs in with a password.
	return &Claims{
		UID:            c.Subject,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		SignInProvider: PasswordSignIn,
		ExpiresAt:      c.ExpiresAt.Time,
	}
}

func (p *LocalProvider) lookup(uid string) (*localIdentity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byUID[uid]
	if !ok {
		return nil, wrap(ErrUserNotFound, nil)
	}
	cp := *id
	return &cp, nil
}

// issue mints a fresh ID and refresh token pair for id.
func (p *LocalProvider) issue(id *localIdentity) (*Credential, error) {
	now := p.now()
	idExp := now.Add(localIDTokenTTL)
	idToken, err := p.sign(localClaims{
		Email:         id.email,
		EmailVerified: id.emailVerified,
		Use:           useID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   id.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(idExp),
		},
	})
	if err != nil {
		return nil, err
	}
	refreshToken, err := p.sign(localClaims{
		Email: id.email,
		Use:   useRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   id.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(localRefreshTTL)),
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return nil, err
	}
	return &Credential{
		UID:            id.uid,
		Email:          id.email,
		EmailVerified:  id.emailVerified,
		DisplayName:    id.displayName,
		SignInProvider: PasswordSignIn,
		IDToken:        idToken,
		RefreshToken:   refreshToken,
		ExpiresAt:      idExp,
	}, nil
}

func (p *LocalProvider) actionCode(uid, email, use string) (string, error) {
	now := p.now()
	return p.sign(localClaims{
		Email: email,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(localActionCodeTTL)),
			ID:        uuid.NewString(),
		},
	})
}

func (p *LocalProvider) actionLink(mode, code, continueURL string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("oobCode", code)
	if continueURL != "" {
		q.Set("continueUrl", continueURL)
	}
	return p.actionBase + "?" + q.Encode()
}

func (p *LocalProvider) sign(claims localClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		p.logger.Error("Failed to sign token", zap.Error(err), zap.String("use", claims.Use))
		return "", wrap(ErrUnavailable, fmt.Errorf("could not sign token: %w", err))
	}
	return signed, nil
}

// parse validates signature, expiry, intended use and revocation of raw.
func (p *LocalProvider) parse(raw, use string) (*localClaims, error) {
	if raw == "" {
		return nil, wrap(ErrInvalidToken, fmt.Errorf("empty token"))
	}
	claims := &localClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrap(ErrInvalidToken, fmt.Errorf("token expired"))
		}
		return nil, wrap(ErrInvalidToken, err)
	}
	if claims.Use != use {
		return nil, wrap(ErrInvalidToken, fmt.Errorf("token is for %q, want %q", claims.Use, use))
	}

	id, err := p.lookup(claims.Subject)
	if err != nil {
		return nil, wrap(ErrInvalidToken, err)
	}
	if id.disabled {
		return nil, wrap(ErrUserDisabled, nil)
	}
	// Revocation covers refresh tokens and sessions; ID tokens and action codes live out their TTL.
	if (use == useRefresh || use == useSession) && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(id.validAfter) {
		return nil, wrap(ErrInvalidToken, fmt.Errorf("token revoked"))
	}
	return claims, nil
}
