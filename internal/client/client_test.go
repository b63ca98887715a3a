package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/platform/database"
	"student_portal_backend/internal/platform/mailer"
	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"
	"student_portal_backend/internal/wizard"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.NewSQLiteInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &user.User{}, &auth.PendingIdentityDeletion{}))

	cfg := &config.Config{
		AppBaseURL:          "http://localhost:3000",
		IdentityProvider:    config.IdentityProviderLocal,
		LocalIdentitySecret: "test-secret",
	}
	provider := identity.NewLocalProvider(cfg, mailer.NewLogMailer(logger), logger)
	users := user.NewService(user.NewGORMRepository(db), logger)
	blocklist := session.NewInMemoryBlocklist(session.BlocklistConfig{})
	bridge := auth.NewBridge(cfg, auth.ModeLive, provider, users,
		auth.NewPreflight(users, logger),
		auth.NewStatusGate(provider, blocklist, logger),
		blocklist, auth.NewGORMPendingDeletionStore(db), logger)

	r := gin.New()
	v1 := r.Group("/api/v1")
	auth.NewHandler(bridge, cfg, logger).WithActionCodes(provider).RegisterRoutes(v1)
	user.NewHandler(users, logger).RegisterRoutes(v1, func(c *gin.Context) { c.Next() })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func fillStudent(t *testing.T, w *wizard.Wizard, email string) {
	t.Helper()
	w.Update(func(d *wizard.Draft) { d.Role = rolefields.RoleStudent })
	require.True(t, w.Advance(), w.Errors())
	w.Update(func(d *wizard.Draft) {
		d.Name = "Ada Lovelace"
		d.Email = email
		d.Password = "secret1"
		d.ConfirmPassword = "secret1"
	})
	require.True(t, w.Advance(), w.Errors())
	w.Update(func(d *wizard.Draft) {
		d.Field1Value = "University of Washington"
		d.Field2Value = "Computer Science"
	})
	require.True(t, w.Advance(), w.Errors())
	w.Update(func(d *wizard.Draft) { d.AcceptedTerms = true })
	require.Equal(t, wizard.StepReview, w.Step())
}

func TestClient_WizardRegistersThroughAPI(t *testing.T) {
	srv := newPortal(t)
	c, err := New(srv.URL, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	roles, err := c.Roles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(rolefields.Roles()))

	w := wizard.New(c)
	fillStudent(t, w, "ada@example.com")
	require.NoError(t, w.Submit(ctx))
	assert.Equal(t, wizard.ModeSignIn, w.Mode())
	assert.Equal(t, wizard.StepRole, w.Step())

	pf, err := c.Preflight(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, pf.Allowed)
	assert.Equal(t, rolefields.RoleStudent, pf.Role)

	_, err = c.SignIn(ctx, "ada@example.com", "secret1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, string(auth.CodeEmailNotVerified), apiErr.Code)

	_, err = c.Session(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, string(auth.CodeInvalidToken), apiErr.Code)
}

func TestClient_DuplicateRegistrationKeepsDraft(t *testing.T) {
	srv := newPortal(t)
	c, err := New(srv.URL, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	first := wizard.New(c)
	fillStudent(t, first, "ada@example.com")
	require.NoError(t, first.Submit(ctx))

	second := wizard.New(c)
	fillStudent(t, second, "ada@example.com")
	err = second.Submit(ctx)
	require.Error(t, err)

	assert.Equal(t, wizard.StepReview, second.Step())
	assert.Equal(t, "ada@example.com", second.Draft().Email)
	assert.Equal(t, "An account with this email already exists.", second.Errors()[wizard.SubmitErrorKey])
}

func TestClient_ServerValidationDetails(t *testing.T) {
	srv := newPortal(t)
	c, err := New(srv.URL, zap.NewNop())
	require.NoError(t, err)

	err = c.Register(context.Background(), wizard.RegistrationRequest{
		Role:          rolefields.RoleStudent,
		Name:          "Ada",
		Email:         "ada@example.com",
		Password:      "secret1",
		AcceptedTerms: true,
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, string(auth.CodeValidationFailed), apiErr.Code)
	assert.Contains(t, apiErr.Details, "confirmPassword")
}

func TestClient_WithHTTPClientGetsCookieJar(t *testing.T) {
	srv := newPortal(t)
	hc := srv.Client()
	require.Nil(t, hc.Jar)

	c, err := New(srv.URL, zap.NewNop(), WithHTTPClient(hc))
	require.NoError(t, err)
	assert.Same(t, hc, c.http)
	assert.NotNil(t, hc.Jar)

	roles, err := c.Roles(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, roles)
}

func TestClient_NetworkError(t *testing.T) {
	srv := newPortal(t)
	c, err := New(srv.URL, zap.NewNop())
	require.NoError(t, err)
	srv.Close()

	err = c.SignOut(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, string(auth.CodeNetworkError), apiErr.Code)
}
