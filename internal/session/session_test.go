package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student_portal_backend/internal/config"
)

func newGinContext(t *testing.T, cookie *http.Cookie) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	c.Request = req
	return c, w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{SessionCookieSameSite: "None"})
	assert.Equal(t, DefaultCookieName, opts.Name)
	assert.Equal(t, "/", opts.Path)
	assert.Equal(t, http.SameSiteNoneMode, opts.SameSite)
	assert.True(t, opts.Secure)
}

func TestCookieJar_InstallSetsFixedMaxAge(t *testing.T) {
	c, w := newGinContext(t, nil)
	jar := NewCookieJar(c, CookieOptions{Name: "portal_session", Secure: true})

	_, ok := jar.Current()
	assert.False(t, ok)

	jar.Install("cookie-value")

	got, ok := jar.Current()
	assert.True(t, ok)
	assert.Equal(t, "cookie-value", got)

	ck := findCookie(w, "portal_session")
	require.NotNil(t, ck)
	assert.Equal(t, 86400, ck.MaxAge)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, "/", ck.Path)
}

func TestCookieJar_ReadsRequestAndClears(t *testing.T) {
	c, w := newGinContext(t, &http.Cookie{Name: "portal_session", Value: "from-browser"})
	jar := NewCookieJar(c, CookieOptions{Name: "portal_session"})

	got, ok := jar.Current()
	require.True(t, ok)
	assert.Equal(t, "from-browser", got)

	jar.Clear()

	_, ok = jar.Current()
	assert.False(t, ok)
	ck := findCookie(w, "portal_session")
	require.NotNil(t, ck)
	assert.Equal(t, "", ck.Value)
	assert.True(t, ck.MaxAge < 0)
}

func TestMemoryJar(t *testing.T) {
	jar := NewMemoryJar()
	jar.Clear()
	_, ok := jar.Current()
	assert.False(t, ok)

	jar.Install("a")
	v, ok := jar.Current()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, jar.Installs)
}

func TestInMemoryBlocklist(t *testing.T) {
	b := NewInMemoryBlocklist(BlocklistConfig{})
	ctx := context.Background()

	found, err := b.Contains(ctx, "cookie")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Add(ctx, "cookie", time.Now().Add(time.Hour)))
	found, _ = b.Contains(ctx, "cookie")
	assert.True(t, found)

	require.NoError(t, b.Add(ctx, "stale", time.Now().Add(-time.Minute)))
	found, _ = b.Contains(ctx, "stale")
	assert.False(t, found)
}

func TestInMemoryBlocklist_ConcurrentUse(t *testing.T) {
	b := NewInMemoryBlocklist(BlocklistConfig{})
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cookie := fmt.Sprintf("cookie-%d", i)
			_ = b.Add(ctx, cookie, expires)
			_, _ = b.Contains(ctx, cookie)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		found, err := b.Contains(ctx, fmt.Sprintf("cookie-%d", i))
		require.NoError(t, err)
		assert.True(t, found)
	}
}
