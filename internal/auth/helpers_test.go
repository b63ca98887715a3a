package auth

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/platform/database"
	"student_portal_backend/internal/platform/mailer"
	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"
	"student_portal_backend/internal/wizard"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- mock provider ---

type mockProvider struct {
	mock.Mock
}

var _ identity.Provider = (*mockProvider)(nil)

func (m *mockProvider) cred(args mock.Arguments) *identity.Credential {
	if c, ok := args.Get(0).(*identity.Credential); ok {
		return c
	}
	return nil
}

func (m *mockProvider) claims(args mock.Arguments) *identity.Claims {
	if c, ok := args.Get(0).(*identity.Claims); ok {
		return c
	}
	return nil
}

func (m *mockProvider) CreateIdentity(ctx context.Context, email, password string) (*identity.Credential, error) {
	args := m.Called(ctx, email, password)
	return m.cred(args), args.Error(1)
}

func (m *mockProvider) Authenticate(ctx context.Context, email, password string) (*identity.Credential, error) {
	args := m.Called(ctx, email, password)
	return m.cred(args), args.Error(1)
}

func (m *mockProvider) AuthenticateFederated(ctx context.Context, idToken string) (*identity.Credential, error) {
	args := m.Called(ctx, idToken)
	return m.cred(args), args.Error(1)
}

func (m *mockProvider) MintBearerToken(ctx context.Context, cred *identity.Credential, forceRefresh bool) (string, error) {
	args := m.Called(ctx, cred, forceRefresh)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) ReloadCredential(ctx context.Context, cred *identity.Credential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *mockProvider) SendVerificationEmail(ctx context.Context, bearerToken, continueURL string) error {
	return m.Called(ctx, bearerToken, continueURL).Error(0)
}

func (m *mockProvider) SendPasswordResetEmail(ctx context.Context, email, continueURL string) error {
	return m.Called(ctx, email, continueURL).Error(0)
}

func (m *mockProvider) DeleteIdentity(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *mockProvider) RevokeSession(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *mockProvider) CreateSessionCookie(ctx context.Context, bearerToken string, maxAge time.Duration) (string, error) {
	args := m.Called(ctx, bearerToken, maxAge)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) VerifySessionCookie(ctx context.Context, cookie string) (*identity.Claims, error) {
	args := m.Called(ctx, cookie)
	return m.claims(args), args.Error(1)
}

func (m *mockProvider) VerifyBearerToken(ctx context.Context, token string) (*identity.Claims, error) {
	args := m.Called(ctx, token)
	return m.claims(args), args.Error(1)
}

// --- mail capture ---

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// lastLink returns the action link of the most recent message.
func (o *outbox) lastLink(t *testing.T) *url.URL {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	raw := linkPattern.FindString(o.sent[len(o.sent)-1].Body)
	require.NotEmpty(t, raw)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// --- user store doubles ---

// failingSync fails every Sync call and delegates the rest.
type failingSync struct {
	UserStore
	err error
}

func (f failingSync) Sync(ctx context.Context, in user.SyncInput) (*user.User, bool, error) {
	return nil, false, f.err
}

type brokenStore struct{}

var errStoreDown = errors.New("connection refused")

func (brokenStore) Sync(context.Context, user.SyncInput) (*user.User, bool, error) {
	return nil, false, errStoreDown
}
func (brokenStore) FindByID(context.Context, string) (*user.User, error)    { return nil, errStoreDown }
func (brokenStore) FindByEmail(context.Context, string) (*user.User, error) { return nil, errStoreDown }

// --- environment ---

type testEnv struct {
	cfg       *config.Config
	db        *gorm.DB
	users     *user.ServiceImplementation
	repo      user.Repository
	local     *identity.LocalProvider
	mail      *outbox
	blocklist *session.InMemoryBlocklist
	pending   PendingDeletionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLiteInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &user.User{}, &PendingIdentityDeletion{}))

	cfg := &config.Config{
		AppBaseURL:          "http://localhost:3000",
		IdentityProvider:    config.IdentityProviderLocal,
		LocalIdentitySecret: "test-secret",
	}
	box := &outbox{}
	repo := user.NewGORMRepository(db)
	return &testEnv{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		users:     user.NewService(repo, zap.NewNop()),
		local:     identity.NewLocalProvider(cfg, box, zap.NewNop()),
		mail:      box,
		blocklist: session.NewInMemoryBlocklist(session.BlocklistConfig{}),
		pending:   NewGORMPendingDeletionStore(db),
	}
}

func (e *testEnv) bridge(provider identity.Provider, users UserStore) *Bridge {
	logger := zap.NewNop()
	return NewBridge(e.cfg, ModeLive, provider, users,
		NewPreflight(users, logger),
		NewStatusGate(provider, e.blocklist, logger),
		e.blocklist, e.pending, logger)
}

func (e *testEnv) localBridge() *Bridge {
	return e.bridge(e.local, e.users)
}

// verifyLastEmail applies the verification link most recently mailed.
func (e *testEnv) verifyLastEmail(t *testing.T) {
	t.Helper()
	link := e.mail.lastLink(t)
	require.Equal(t, identity.ActionVerifyEmail, link.Query().Get("mode"))
	require.NoError(t, e.local.ApplyEmailVerification(context.Background(), link.Query().Get("oobCode")))
}

// setStatus changes a record's status the way an administrative flow would.
func (e *testEnv) setStatus(t *testing.T, email, status string) {
	t.Helper()
	u, err := e.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	u.Status = status
	require.NoError(t, e.repo.Save(context.Background(), u))
}

func studentRegistration(email string) wizard.RegistrationRequest {
	return wizard.RegistrationRequest{
		Role:            rolefields.RoleStudent,
		Name:            "Ada Lovelace",
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		RoleDetails: rolefields.RawFields{
			Field1:      rolefields.UniversityOther,
			Field1Other: "Acme College",
			Field2:      rolefields.LiteralOther,
			Field2Other: "Custom Degree",
		},
		AcceptedTerms: true,
	}
}
