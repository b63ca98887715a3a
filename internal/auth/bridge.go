// Package auth turns identity provider credentials into application sessions.
// Every sign-in path ends in the status gate; registration is a saga whose
// compensations delete the new identity and clear the session on failure.
package auth

import (
	"context"
	"errors"
	"strings"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"
	"student_portal_backend/internal/wizard"

	"go.uber.org/zap"
)

// Bridge is the identity session bridge. All public methods check the mode
// first; in ModeDemo the provider is never called and no session is issued.
type Bridge struct {
	mode        Mode
	provider    identity.Provider
	users       UserStore
	preflight   *Preflight
	gate        *StatusGate
	blocklist   session.Blocklist
	pending     PendingDeletionStore
	continueURL string
	logger      *zap.Logger
}

// NewBridge creates the bridge. provider may be nil in ModeDemo.
func NewBridge(
	cfg *config.Config,
	mode Mode,
	provider identity.Provider,
	users UserStore,
	preflight *Preflight,
	gate *StatusGate,
	blocklist session.Blocklist,
	pending PendingDeletionStore,
	logger *zap.Logger,
) *Bridge {
	return &Bridge{
		mode:        mode,
		provider:    provider,
		users:       users,
		preflight:   preflight,
		gate:        gate,
		blocklist:   blocklist,
		pending:     pending,
		continueURL: strings.TrimRight(cfg.AppBaseURL, "/") + "/login",
		logger:      logger.Named("AuthBridge"),
	}
}

// Mode reports the mode the bridge was started in.
func (b *Bridge) Mode() Mode { return b.mode }

// SignIn runs preflight, authenticates the password, requires a verified
// email, then establishes the session and syncs the user record.
func (b *Bridge) SignIn(ctx context.Context, jar session.Jar, email, password string) (*Session, error) {
	if b.mode == ModeDemo {
		return demoSession(), nil
	}

	pf, err := b.preflight.Check(ctx, email)
	if err != nil {
		return nil, err
	}
	if !pf.Allowed {
		b.logger.Info("Sign-in rejected by preflight", zap.String("code", string(pf.Code)))
		return nil, NewError(pf.Code, nil)
	}

	cred, err := b.provider.Authenticate(ctx, user.NormalizeEmail(email), password)
	if err != nil {
		return nil, fromIdentity(err, CodeNetworkError)
	}
	if err := b.provider.ReloadCredential(ctx, cred); err != nil {
		return nil, fromIdentity(err, CodeNetworkError)
	}
	if !cred.EmailVerified {
		return nil, b.rejectUnverified(ctx, cred.UID)
	}

	return b.establish(ctx, jar, cred, user.SyncInput{
		UID:       cred.UID,
		Email:     cred.Email,
		Name:      cred.DisplayName,
		MarkLogin: true,
	})
}

// SignInFederated skips preflight and password verification. A first-time
// user gets a record with NeedsProfileCompletion set. An ID token of an
// unverified password identity is refused like SignIn refuses it.
func (b *Bridge) SignInFederated(ctx context.Context, jar session.Jar, idToken string) (*Session, error) {
	if b.mode == ModeDemo {
		return demoSession(), nil
	}

	cred, err := b.provider.AuthenticateFederated(ctx, idToken)
	if err != nil {
		return nil, fromIdentity(err, CodeNetworkError)
	}
	if identity.UnverifiedPassword(cred.SignInProvider, cred.EmailVerified) {
		return nil, b.rejectUnverified(ctx, cred.UID)
	}
	return b.establish(ctx, jar, cred, user.SyncInput{
		UID:       cred.UID,
		Email:     cred.Email,
		Name:      cred.DisplayName,
		MarkLogin: true,
	})
}

// rejectUnverified signs the identity out everywhere and reports EMAIL_NOT_VERIFIED.
func (b *Bridge) rejectUnverified(ctx context.Context, uid string) error {
	if err := b.provider.RevokeSession(context.WithoutCancel(ctx), uid); err != nil {
		b.logger.Warn("Failed to sign out unverified identity", zap.String("uid", uid), zap.Error(err))
	}
	b.logger.Info("Sign-in refused until email is verified", zap.String("uid", uid))
	return NewError(CodeEmailNotVerified, nil)
}

// establish is the shared tail of the sign-in paths: mint, install, sync, gate.
func (b *Bridge) establish(ctx context.Context, jar session.Jar, cred *identity.Credential, in user.SyncInput) (*Session, error) {
	token, err := b.provider.MintBearerToken(ctx, cred, false)
	if err != nil {
		return nil, fromIdentity(err, CodeSessionFailed)
	}
	cookie, err := b.provider.CreateSessionCookie(ctx, token, session.MaxAge)
	if err != nil {
		return nil, fromIdentity(err, CodeSessionFailed)
	}
	jar.Install(cookie)

	u, _, err := b.users.Sync(ctx, in)
	if err != nil {
		b.logger.Error("User record sync failed", zap.String("uid", cred.UID), zap.Error(err))
		teardown(ctx, b.provider, b.blocklist, b.logger, jar, cred.UID, false)
		return nil, NewError(CodeSyncFailed, err)
	}
	if err := b.gate.Check(ctx, u, cred.UID, jar); err != nil {
		return nil, err
	}

	b.logger.Info("Session established", zap.String("uid", cred.UID), zap.Bool("needsProfileCompletion", u.NeedsProfileCompletion))
	return newSession(cred.UID, cred.Email, cred.EmailVerified, u), nil
}

// Register refuses emails whose record is deleted or blocked, then creates
// the identity, installs a session, syncs the record and sends the
// verification email, then signs out. A failure after the identity
// exists rolls back: the session is cleared and the identity deleted.
func (b *Bridge) Register(ctx context.Context, jar session.Jar, req wizard.RegistrationRequest) error {
	if b.mode == ModeDemo {
		return nil
	}

	if errs := wizard.ValidateAll(req.Draft()); !errs.Empty() {
		return validationError(errs)
	}
	resolved, errs := rolefields.ValidateRoleFields(req.Role, req.RoleDetails)
	if !errs.Empty() {
		return validationError(errs)
	}
	email := user.NormalizeEmail(req.Email)

	// A deleted or blocked record would be rebound to the new identity and
	// then refused at the first sign-in. Refuse it up front instead.
	pf, err := b.preflight.Check(ctx, email)
	if err != nil {
		return err
	}
	if pf.Code == CodeAccountDeleted || pf.Code == CodeAccountBlocked {
		b.logger.Info("Registration rejected by preflight", zap.String("code", string(pf.Code)))
		return NewError(pf.Code, nil)
	}

	sg := newSaga(b.logger)

	cred, err := b.provider.CreateIdentity(ctx, email, req.Password)
	if cred != nil {
		sg.onFailure("delete identity", func(ctx context.Context) error {
			return b.deleteIdentity(ctx, cred, "registration rolled back")
		})
	}
	if err != nil {
		b.logger.Info("Identity creation failed", zap.Error(err))
		return sg.rollback(ctx, fromIdentity(err, CodeNetworkError))
	}
	b.logger.Info("Identity created", zap.String("uid", cred.UID), zap.String("role", req.Role))

	token, err := b.provider.MintBearerToken(ctx, cred, false)
	if err != nil {
		return sg.rollback(ctx, fromIdentity(err, CodeSessionFailed))
	}
	cookie, err := b.provider.CreateSessionCookie(ctx, token, session.MaxAge)
	if err != nil {
		return sg.rollback(ctx, fromIdentity(err, CodeSessionFailed))
	}
	jar.Install(cookie)
	sg.onFailure("clear session", func(ctx context.Context) error {
		teardown(ctx, b.provider, b.blocklist, b.logger, jar, cred.UID, false)
		return nil
	})

	if _, _, err := b.users.Sync(ctx, user.SyncInput{
		UID:         cred.UID,
		Email:       email,
		Name:        req.Name,
		Role:        req.Role,
		RoleDetails: &resolved,
	}); err != nil {
		b.logger.Error("User record sync failed during registration", zap.String("uid", cred.UID), zap.Error(err))
		return sg.rollback(ctx, NewError(CodeSyncFailed, err))
	}

	if err := b.provider.SendVerificationEmail(ctx, token, b.continueURL); err != nil {
		b.logger.Error("Verification email failed during registration", zap.String("uid", cred.UID), zap.Error(err))
		return sg.rollback(ctx, fromIdentity(err, CodeNetworkError))
	}

	// The account is real; the user signs in again once verified.
	teardown(ctx, b.provider, b.blocklist, b.logger, jar, cred.UID, true)
	b.logger.Info("Registration completed", zap.String("uid", cred.UID))
	return nil
}

// deleteIdentity is the identity compensation. When the provider refuses,
// the identity is recorded for the orphan sweeper.
func (b *Bridge) deleteIdentity(ctx context.Context, cred *identity.Credential, reason string) error {
	err := b.provider.DeleteIdentity(ctx, cred.UID)
	if err == nil || errors.Is(err, identity.ErrUserNotFound) {
		return nil
	}
	if recErr := b.pending.Record(ctx, cred.UID, cred.Email, reason); recErr != nil {
		b.logger.Error("Failed to record pending identity deletion",
			zap.String("uid", cred.UID),
			zap.Error(recErr))
	}
	return err
}

// RequestPasswordReset never reveals whether the email has an account. Only
// a transport failure is reported.
func (b *Bridge) RequestPasswordReset(ctx context.Context, email, continueURL string) error {
	if b.mode == ModeDemo {
		return nil
	}
	email = user.NormalizeEmail(email)
	if email == "" {
		return NewError(CodeEmailRequired, nil)
	}
	if continueURL == "" {
		continueURL = b.continueURL
	}

	err := b.provider.SendPasswordResetEmail(ctx, email, continueURL)
	if err == nil {
		return nil
	}
	if errors.Is(err, identity.ErrUnavailable) {
		b.logger.Error("Password reset email failed", zap.Error(err))
		return NewError(CodeNetworkError, err)
	}
	b.logger.Debug("Password reset request swallowed", zap.Error(err))
	return nil
}

// SignOut revokes the provider session and clears the cookie. It is
// idempotent: without a session it only makes sure no cookie is left.
func (b *Bridge) SignOut(ctx context.Context, jar session.Jar) error {
	if b.mode == ModeDemo {
		jar.Clear()
		return nil
	}
	cookie, ok := jar.Current()
	if !ok {
		jar.Clear()
		return nil
	}

	uid := ""
	if claims, err := b.provider.VerifySessionCookie(ctx, cookie); err == nil {
		uid = claims.UID
	}
	teardown(ctx, b.provider, b.blocklist, b.logger, jar, uid, true)
	b.logger.Info("Signed out", zap.String("uid", uid))
	return nil
}

// EstablishSession exchanges a bearer token for a session cookie and runs the
// status gate on the existing record, if any. An unverified password identity
// gets a session marked VerificationPending, which is enough to ask for a new
// verification email and nothing else.
func (b *Bridge) EstablishSession(ctx context.Context, jar session.Jar, bearerToken string) (*Session, error) {
	if b.mode == ModeDemo {
		return demoSession(), nil
	}

	claims, err := b.provider.VerifyBearerToken(ctx, bearerToken)
	if err != nil {
		return nil, fromIdentity(err, CodeInvalidToken)
	}
	cookie, err := b.provider.CreateSessionCookie(ctx, bearerToken, session.MaxAge)
	if err != nil {
		return nil, fromIdentity(err, CodeSessionFailed)
	}
	jar.Install(cookie)

	u, err := b.lookup(ctx, claims.UID)
	if err != nil {
		teardown(ctx, b.provider, b.blocklist, b.logger, jar, claims.UID, false)
		return nil, err
	}
	if err := b.gate.Check(ctx, u, claims.UID, jar); err != nil {
		return nil, err
	}
	return sessionFromClaims(claims, u), nil
}

// ClearSession ends the cookie session without revoking the identity.
func (b *Bridge) ClearSession(ctx context.Context, jar session.Jar) {
	if b.mode == ModeDemo {
		jar.Clear()
		return
	}
	teardown(ctx, b.provider, b.blocklist, b.logger, jar, "", false)
}

// CurrentSession reports the session held in jar. Sessions of denied
// accounts are torn down on the way.
func (b *Bridge) CurrentSession(ctx context.Context, jar session.Jar) (*Session, error) {
	if b.mode == ModeDemo {
		return demoSession(), nil
	}

	claims, err := b.verify(ctx, jar)
	if err != nil {
		return nil, err
	}
	u, err := b.lookup(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if err := b.gate.Check(ctx, u, claims.UID, jar); err != nil {
		return nil, err
	}
	return sessionFromClaims(claims, u), nil
}

// ResendVerification sends a new verification email for the session holder.
// It reports true without sending when the email is already verified.
func (b *Bridge) ResendVerification(ctx context.Context, jar session.Jar, bearerToken, continueURL string) (bool, error) {
	if b.mode == ModeDemo {
		return true, nil
	}

	claims, err := b.verify(ctx, jar)
	if err != nil {
		return false, err
	}
	cred := &identity.Credential{UID: claims.UID, Email: claims.Email}
	if err := b.provider.ReloadCredential(ctx, cred); err != nil {
		return false, fromIdentity(err, CodeNetworkError)
	}
	if cred.EmailVerified {
		return true, nil
	}

	tokenClaims, err := b.provider.VerifyBearerToken(ctx, bearerToken)
	if err != nil {
		return false, fromIdentity(err, CodeInvalidToken)
	}
	if tokenClaims.UID != claims.UID {
		return false, NewError(CodeInvalidToken, errors.New("bearer token belongs to another identity"))
	}
	if continueURL == "" {
		continueURL = b.continueURL
	}
	if err := b.provider.SendVerificationEmail(ctx, bearerToken, continueURL); err != nil {
		return false, fromIdentity(err, CodeNetworkError)
	}
	return false, nil
}

// verify checks the cookie in jar. Invalid and blocklisted cookies are cleared.
func (b *Bridge) verify(ctx context.Context, jar session.Jar) (*identity.Claims, error) {
	cookie, ok := jar.Current()
	if !ok {
		return nil, NewError(CodeInvalidToken, nil)
	}
	blocked, err := b.blocklist.Contains(ctx, cookie)
	if err != nil {
		return nil, NewError(CodeSessionFailed, err)
	}
	if blocked {
		jar.Clear()
		return nil, NewError(CodeInvalidToken, nil)
	}
	claims, err := b.provider.VerifySessionCookie(ctx, cookie)
	if err != nil {
		authErr := fromIdentity(err, CodeNetworkError)
		if authErr.Kind == KindCredential || authErr.Kind == KindPolicy {
			jar.Clear()
		}
		return nil, authErr
	}
	return claims, nil
}

// lookup returns nil for a missing record.
func (b *Bridge) lookup(ctx context.Context, uid string) (*user.User, error) {
	u, err := b.users.FindByID(ctx, uid)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewError(CodeDBConnectionFailed, err)
	}
	return u, nil
}

// Preflight exposes the preflight check with the mode applied.
func (b *Bridge) Preflight(ctx context.Context, email string) (PreflightResult, error) {
	if b.mode == ModeDemo {
		return PreflightResult{Allowed: true, Code: CodeOK, Role: DemoUser().Role}, nil
	}
	return b.preflight.Check(ctx, email)
}
