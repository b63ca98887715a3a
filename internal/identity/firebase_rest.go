package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// restClient covers the two Identity Toolkit calls the Admin SDK does not
// offer: password sign-in and refresh token exchange.
type restClient struct {
	httpClient   *http.Client
	apiKey       string
	identityBase string
	tokenBase    string
}

func newRESTClient(apiKey string, timeout time.Duration) *restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restClient{
		httpClient:   &http.Client{Timeout: timeout},
		apiKey:       apiKey,
		identityBase: defaultIdentityToolkitURL,
		tokenBase:    defaultSecureTokenURL,
	}
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type restErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *restClient) signInWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, wrap(ErrUnavailable, err)
	}
	endpoint := fmt.Sprintf("%s/accounts:signInWithPassword?key=%s", c.identityBase, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrap(ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out signInResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &Credential{
		UID:            out.LocalID,
		Email:          out.Email,
		DisplayName:    out.DisplayName,
		SignInProvider: PasswordSignIn,
		IDToken:        out.IDToken,
		RefreshToken:   out.RefreshToken,
		ExpiresAt:      expiry(out.ExpiresIn),
	}, nil
}

func (c *restClient) refresh(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := fmt.Sprintf("%s/token?key=%s", c.tokenBase, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, wrap(ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrap(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb restErrorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&eb); decodeErr != nil || eb.Error.Message == "" {
			return wrap(ErrUnavailable, fmt.Errorf("identity toolkit returned status %d", resp.StatusCode))
		}
		return mapRESTError(eb.Error.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return wrap(ErrUnavailable, fmt.Errorf("decoding identity toolkit response: %w", err))
	}
	return nil
}

// mapRESTError translates Identity Toolkit error codes. Some codes carry a
// suffix ("WEAK_PASSWORD : Password should be at least 6 characters").
func mapRESTError(message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	cause := errors.New(message)
	switch code {
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "MISSING_PASSWORD":
		return wrap(ErrInvalidCredentials, cause)
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return wrap(ErrUserNotFound, cause)
	case "USER_DISABLED":
		return wrap(ErrUserDisabled, cause)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return wrap(ErrTooManyAttempts, cause)
	case "EMAIL_EXISTS":
		return wrap(ErrEmailAlreadyExists, cause)
	case "WEAK_PASSWORD":
		return wrap(ErrWeakPassword, cause)
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return wrap(ErrInvalidEmail, cause)
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_ID_TOKEN", "USER_MISMATCH", "INVALID_GRANT_TYPE", "MISSING_REFRESH_TOKEN":
		return wrap(ErrInvalidToken, cause)
	}
	return wrap(ErrUnavailable, cause)
}

func expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return time.Now().Add(time.Duration(secs) * time.Second)
}
