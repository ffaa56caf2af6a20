// Package provider is the HTTP client for the hosted
// authentication-as-a-service backend. Credentials, sessions and
// one-time codes are owned entirely by the provider; the client shapes
// requests, decodes the few recognized result shapes once at the
// boundary and reports rejections as typed *Error values.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiPrefix = "/auth/v1"

// OTP types accepted by VerifyOTP and Resend.
const (
	OTPTypeSignup   = "signup"
	OTPTypeRecovery = "recovery"
	OTPTypeEmail    = "email"
)

type Config struct {
	// BaseURL is the provider project URL, without trailing slash.
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// AnonKey is the public (non-secret) API key sent with every
	// request.
	AnonKey string `yaml:"anon_key" validate:"required"`
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient builds a provider client from configuration. It keeps no
// state beyond the configured endpoint and key; every operation is an
// independent request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("provider anon key is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SignInWithPassword exchanges email/password credentials for a
// session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	session := new(Session)
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, body, "", session)
	if err != nil {
		return nil, err
	}
	session.User.hydrate()
	return session, nil
}

// SignUp registers a new user. The optional name is stored as the
// user's full_name metadata. Depending on the provider's confirmation
// settings the result may carry an immediate session.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if name != "" {
		body["data"] = map[string]string{"full_name": name}
	}

	// the response is either a bare user object (confirmation
	// pending) or a full session with the user embedded
	var raw struct {
		Session
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	}
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, "", &raw); err != nil {
		return nil, err
	}

	result := new(SignUpResult)
	if raw.AccessToken != "" {
		session := raw.Session
		session.User.hydrate()
		result.Session = &session
		result.User = session.User
	} else if raw.ID != "" {
		result.User = &Principal{
			ID:       raw.ID,
			Email:    raw.Email,
			Metadata: raw.UserMetadata,
		}
		result.User.hydrate()
	}
	return result, nil
}

// Recover asks the provider to send a password-recovery code to the
// given email address.
func (c *Client) Recover(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/recover", nil, map[string]string{"email": email}, "", nil)
}

// VerifyOTP redeems a one-time code. otpType distinguishes signup
// confirmation from password recovery.
func (c *Client) VerifyOTP(ctx context.Context, email, token, otpType string) (*Session, error) {
	body := map[string]string{
		"email": email,
		"token": token,
		"type":  otpType,
	}
	session := new(Session)
	if err := c.do(ctx, http.MethodPost, "/verify", nil, body, "", session); err != nil {
		return nil, err
	}
	session.User.hydrate()
	return session, nil
}

// Resend asks the provider to send a fresh one-time code of the given
// type.
func (c *Client) Resend(ctx context.Context, email, otpType string) error {
	body := map[string]string{"email": email, "type": otpType}
	return c.do(ctx, http.MethodPost, "/resend", nil, body, "", nil)
}

// ExchangeCode completes the PKCE handshake after an OAuth redirect,
// trading the one-time code and its verifier for a session.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	body := map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	}
	session := new(Session)
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"pkce"}}, body, "", session)
	if err != nil {
		return nil, err
	}
	session.User.hydrate()
	return session, nil
}

// RefreshSession trades a refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	session := new(Session)
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, body, "", session)
	if err != nil {
		return nil, err
	}
	session.User.hydrate()
	return session, nil
}

// User fetches the authenticated user from the provider. This is the
// authoritative identity lookup: it never trusts claims embedded in a
// locally stored session.
func (c *Client) User(ctx context.Context, accessToken string) (*Principal, error) {
	principal := new(Principal)
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, principal); err != nil {
		return nil, err
	}
	principal.hydrate()
	return principal, nil
}

// UpdatePassword sets a new password for the user owning the access
// token.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	body := map[string]string{"password": newPassword}
	return c.do(ctx, http.MethodPut, "/user", nil, body, accessToken, nil)
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, accessToken, nil)
}

// AuthorizeURL builds the URL starting the provider's external OAuth
// step. redirectTo is where the provider sends the browser afterwards;
// codeChallenge is the S256 challenge of the PKCE verifier kept on our
// side.
func (c *Client) AuthorizeURL(oauthProvider, redirectTo, codeChallenge string) string {
	query := url.Values{}
	query.Set("provider", oauthProvider)
	query.Set("redirect_to", redirectTo)
	if codeChallenge != "" {
		query.Set("code_challenge", codeChallenge)
		query.Set("code_challenge_method", "s256")
	}
	return fmt.Sprintf("%s%s/authorize?%s", c.baseURL, apiPrefix, query.Encode())
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		perr := parseError(resp.StatusCode, respBody)
		slog.Debug("provider rejected operation", "path", path, "status", perr.Status, "code", perr.Code)
		return perr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}
