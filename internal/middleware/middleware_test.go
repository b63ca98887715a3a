package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/common"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	session *auth.Session
	err     error
	clear   bool
}

func (s stubResolver) CurrentSession(_ context.Context, jar session.Jar) (*auth.Session, error) {
	if s.clear {
		jar.Clear()
	}
	return s.session, s.err
}

func newRouter(resolver SessionResolver, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(ZapLogger(zap.NewNop(), &config.Config{GinMode: "test"}), ErrorHandler(zap.NewNop()))

	chain := append([]gin.HandlerFunc{SessionAuth(resolver, session.CookieOptions{}, zap.NewNop())}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uid":      common.GetIdentityUIDFromContext(c),
			"email":    common.GetIdentityEmailFromContext(c),
			"verified": common.GetEmailVerifiedFromContext(c),
			"cookie":   c.GetString(common.SessionCookieKey),
		})
	})
	r.GET("/protected", chain...)
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("database exploded"))
	})
	r.GET("/blocked", func(c *gin.Context) {
		_ = c.Error(auth.NewError(auth.CodeAccountBlocked, nil))
	})
	return r
}

func get(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAuth_SetsIdentity(t *testing.T) {
	r := newRouter(stubResolver{session: &auth.Session{UID: "u1", Email: "ada@example.com", EmailVerified: true}})

	w := get(r, "/protected", &http.Cookie{Name: session.DefaultCookieName, Value: "raw-cookie"})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "raw-cookie", body["cookie"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestSessionAuth_RejectsWithReasonCode(t *testing.T) {
	r := newRouter(stubResolver{err: auth.NewError(auth.CodeAccountBlocked, nil), clear: true})

	w := get(r, "/protected", &http.Cookie{Name: session.DefaultCookieName, Value: "raw-cookie"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var apiErr common.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, "ACCOUNT_BLOCKED", apiErr.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestRequireVerifiedEmail(t *testing.T) {
	pending := newRouter(stubResolver{session: &auth.Session{UID: "u1", Email: "ada@example.com", VerificationPending: true}}, RequireVerifiedEmail())
	w := get(pending, "/protected", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "EMAIL_NOT_VERIFIED")

	// A federated identity without a verified email is vouched for by its provider.
	federated := newRouter(stubResolver{session: &auth.Session{UID: "u2", Email: "bob@example.com"}}, RequireVerifiedEmail())
	w = get(federated, "/protected", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestZapLogger_KeepsIncomingRequestID(t *testing.T) {
	r := newRouter(stubResolver{session: &auth.Session{UID: "u1"}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestErrorHandler(t *testing.T) {
	r := newRouter(stubResolver{})

	w := get(r, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database exploded")

	w = get(r, "/blocked", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_BLOCKED")

	w = get(r, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	req := httptest.NewRequest(http.MethodPost, "/boom", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "METHOD_NOT_ALLOWED")
}
