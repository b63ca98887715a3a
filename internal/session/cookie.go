// Package session owns the application session cookie.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"student_portal_backend/internal/config"
)

// MaxAge is the fixed lifetime of the session cookie, independent of the
// lifetime of the bearer token it was minted from.
const MaxAge = 24 * time.Hour

// DefaultCookieName is used when SESSION_COOKIE_NAME is empty.
const DefaultCookieName = "portal_session"

// Jar holds the session cookie for one client.
type Jar interface {
	// Current returns the installed cookie value, if any.
	Current() (string, bool)
	Install(value string)
	Clear()
}

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// OptionsFromConfig reads the SESSION_COOKIE_* settings.
func OptionsFromConfig(cfg *config.Config) CookieOptions {
	return CookieOptions{
		Name:     cfg.SessionCookieName,
		Domain:   cfg.SessionCookieDomain,
		Secure:   cfg.SessionCookieSecure,
		SameSite: ParseSameSite(cfg.SessionCookieSameSite),
	}.normalize()
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if o.SameSite == http.SameSiteNoneMode {
		o.Secure = true
	}
	return o
}

// ParseSameSite maps a config string to http.SameSite, defaulting to Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CookieJar reads and writes the session cookie on a gin request.
type CookieJar struct {
	c       *gin.Context
	opts    CookieOptions
	value   string
	set     bool
	cleared bool
}

func NewCookieJar(c *gin.Context, opts CookieOptions) *CookieJar {
	return &CookieJar{c: c, opts: opts.normalize()}
}

func (j *CookieJar) Current() (string, bool) {
	if j.cleared {
		return "", false
	}
	if j.set {
		return j.value, true
	}
	v, err := j.c.Cookie(j.opts.Name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Install sets an httpOnly cookie with MaxAge.
func (j *CookieJar) Install(value string) {
	http.SetCookie(j.c.Writer, &http.Cookie{
		Name:     j.opts.Name,
		Value:    value,
		Path:     j.opts.Path,
		Domain:   j.opts.Domain,
		MaxAge:   int(MaxAge / time.Second),
		Expires:  time.Now().Add(MaxAge),
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: j.opts.SameSite,
	})
	j.value, j.set, j.cleared = value, true, false
}

// Clear expires the cookie on the client.
func (j *CookieJar) Clear() {
	http.SetCookie(j.c.Writer, &http.Cookie{
		Name:     j.opts.Name,
		Value:    "",
		Path:     j.opts.Path,
		Domain:   j.opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: j.opts.SameSite,
	})
	j.value, j.set, j.cleared = "", false, true
}

// MemoryJar keeps the cookie in memory. Used by tests and non-HTTP callers.
type MemoryJar struct {
	value     string
	installed bool
	// Installs counts Install calls.
	Installs int
}

func NewMemoryJar() *MemoryJar { return &MemoryJar{} }

func (j *MemoryJar) Current() (string, bool) { return j.value, j.installed }

func (j *MemoryJar) Install(value string) {
	j.value, j.installed = value, true
	j.Installs++
}

func (j *MemoryJar) Clear() { j.value, j.installed = "", false }
