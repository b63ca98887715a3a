// Package client is a small HTTP client for the portal API. It keeps the
// session cookie in a cookie jar, so a single Client behaves like one browser.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/wizard"

	"go.uber.org/zap"
)

// APIError is a non-2xx response decoded from the API error shape.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error returns the user-facing message only.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the portal API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ wizard.Registrar = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// added when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("PortalClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Roles fetches the role field catalog.
func (c *Client) Roles(ctx context.Context) ([]rolefields.RoleSpec, error) {
	var out struct {
		Roles []rolefields.RoleSpec `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/roles", nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// Register submits a completed registration. On success the server has sent a
// verification email and left the client signed out.
func (c *Client) Register(ctx context.Context, req wizard.RegistrationRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", req, nil)
}

func (c *Client) Preflight(ctx context.Context, email string) (*auth.PreflightResult, error) {
	var out auth.PreflightResult
	if err := c.do(ctx, http.MethodPost, "/auth/preflight", auth.PreflightRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var out struct {
		User auth.Session `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", auth.SignInRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Session returns the session held by the cookie jar.
func (c *Client) Session(ctx context.Context) (*auth.Session, error) {
	var out struct {
		User auth.Session `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", auth.PasswordResetRequest{Email: email}, nil)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &APIError{Code: string(auth.CodeNetworkError), Message: "Network error. Please try again."}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			c.logger.Debug("Undecodable error body", zap.Int("status", resp.StatusCode), zap.Error(err))
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
