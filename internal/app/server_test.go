package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/platform/database"
	"student_portal_backend/internal/platform/mailer"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer assembles the server the same way the injector does, on an
// in-memory database.
func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, _ := newTestServerWithBackend(t, cfg)
	return srv
}

func newTestServerWithBackend(t *testing.T, cfg *config.Config) (*Server, *IdentityBackend) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewSQLiteInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &user.User{}, &auth.PendingIdentityDeletion{}))

	mode := ProvideMode(cfg, logger)
	backend, err := ProvideIdentityBackend(cfg, mode, mailer.NewLogMailer(logger), logger)
	require.NoError(t, err)

	provider := ProvideProvider(backend)
	users := user.NewService(user.NewGORMRepository(db), logger)
	blocklist := ProvideBlocklist()
	pending := auth.NewGORMPendingDeletionStore(db)
	bridge := auth.NewBridge(cfg, mode, provider, users,
		auth.NewPreflight(users, logger),
		auth.NewStatusGate(provider, blocklist, logger),
		blocklist, pending, logger)

	srv, err := NewServer(cfg, logger, bridge,
		ProvideAuthHandler(bridge, cfg, backend, logger),
		user.NewHandler(users, logger),
		users,
		ProvideOrphanSweepJob(pending, backend, logger, cfg))
	require.NoError(t, err)
	return srv, backend
}

func baseConfig(provider string) *config.Config {
	return &config.Config{
		GinMode:             "test",
		AppBaseURL:          "http://localhost:3000",
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
		IdentityProvider:    provider,
		LocalIdentitySecret: "test-secret",
	}
}

func serve(srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, baseConfig(config.IdentityProviderLocal))

	w := serve(srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"live"`)
}

func TestServer_DemoModeWithoutProvider(t *testing.T) {
	srv := newTestServer(t, baseConfig(config.IdentityProviderNone))

	w := serve(srv, http.MethodGet, "/health", nil)
	assert.Contains(t, w.Body.String(), `"mode":"demo"`)

	w = serve(srv, http.MethodGet, "/api/v1/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), auth.DemoEmail)

	w = serve(srv, http.MethodPost, "/api/v1/auth/signin", auth.SignInRequest{Email: "anyone@example.com", Password: "whatever"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"demo":true`)

	w = serve(srv, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), auth.DemoEmail)

	// Action endpoints exist only for the built-in provider.
	w = serve(srv, http.MethodGet, "/api/v1/auth/action?mode=verifyEmail&oobCode=x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ProtectedRoutesNeedSession(t *testing.T) {
	srv := newTestServer(t, baseConfig(config.IdentityProviderLocal))

	w := serve(srv, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	w = serve(srv, http.MethodGet, "/api/v1/users/roles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, baseConfig(config.IdentityProviderLocal))

	w := serve(srv, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestServer_UnverifiedSessionIsKeptOffUserRoutes(t *testing.T) {
	srv, backend := newTestServerWithBackend(t, baseConfig(config.IdentityProviderLocal))
	cred, err := backend.Provider.CreateIdentity(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	w := serve(srv, http.MethodPost, "/api/v1/auth/session", auth.SessionRequest{Token: cred.IDToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"verificationPending":true`)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_NOT_VERIFIED")
}
