package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/platform/database"
	"student_portal_backend/internal/rolefields"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession stands in for the session middleware.
func fakeSession(uid, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(common.IdentityUIDKey, uid)
		c.Set(common.IdentityEmailKey, email)
		c.Next()
	}
}

func newTestRouter(t *testing.T, uid, email string) (*gin.Engine, *ServiceImplementation) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.NewSQLiteInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &User{}))
	svc := NewService(NewGORMRepository(db), zap.NewNop())

	r := gin.New()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"), fakeSession(uid, email))
	return r, svc
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ListRoles(t *testing.T) {
	r, _ := newTestRouter(t, "uid-1", "ada@example.com")

	w := doJSON(r, http.MethodGet, "/api/v1/users/roles", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Roles []rolefields.RoleSpec `json:"roles"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Roles, len(rolefields.Roles()))
}

func TestHandler_SyncThenMe(t *testing.T) {
	r, _ := newTestRouter(t, "uid-1", "ada@example.com")

	w := doJSON(r, http.MethodPost, "/api/v1/users/sync", SyncRequest{
		Email: "ada@example.com",
		Name:  "Ada",
		Role:  rolefields.RoleStudent,
		RoleDetails: &rolefields.RawFields{
			Field1: rolefields.UniversityOther, Field1Other: "Acme College",
			Field2: "Other", Field2Other: "Custom Degree",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data UserResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "uid-1", body.Data.ID)
	assert.Equal(t, "Acme College", body.Data.RoleDetails.Field1)
	assert.False(t, body.Data.NeedsProfileCompletion)
}

func TestHandler_SyncRejectsForeignIdentity(t *testing.T) {
	r, _ := newTestRouter(t, "uid-1", "ada@example.com")

	w := doJSON(r, http.MethodPost, "/api/v1/users/sync", SyncRequest{FirebaseUID: "someone-else", Email: "ada@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/users/sync", SyncRequest{Email: "mallory@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_SyncValidatesRoleDetails(t *testing.T) {
	r, _ := newTestRouter(t, "uid-1", "ada@example.com")

	w := doJSON(r, http.MethodPost, "/api/v1/users/sync", SyncRequest{
		Email:       "ada@example.com",
		Role:        rolefields.RoleRecruiter,
		RoleDetails: &rolefields.RawFields{Field1: "Acme"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var apiErr common.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestHandler_CompleteProfile(t *testing.T) {
	r, svc := newTestRouter(t, "fed-1", "fed@example.com")
	_, _, err := svc.Sync(context.Background(), SyncInput{UID: "fed-1", Email: "fed@example.com"})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, "/api/v1/users/me/complete-profile", CompleteProfileRequest{
		Role:        rolefields.RoleMentor,
		RoleDetails: rolefields.RawFields{Field1: "Acme", Field2: "Software"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	u, err := svc.FindByID(context.Background(), "fed-1")
	require.NoError(t, err)
	assert.False(t, u.NeedsProfileCompletion)
	assert.Equal(t, rolefields.RoleMentor, u.Role)
}

func TestHandler_MeNotFound(t *testing.T) {
	r, _ := newTestRouter(t, "nobody", "nobody@example.com")
	w := doJSON(r, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
