// Package api contains the thin request-forwarding surface of the
// auth front: credential/OTP endpoints delegating to the provider and
// the OAuth handoff/callback pair. Handlers hold no state between
// requests; everything lives in the browser's cookies or at the
// provider.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nubauth/authfront/cookiebridge"
	"github.com/nubauth/authfront/provider"
	"github.com/nubauth/authfront/session"
)

type Config struct {
	// BaseURL is the public origin of this service, used to build the
	// OAuth callback URL handed to the provider.
	BaseURL string
	// LoginPath is where failed flows land.
	LoginPath string
	// DefaultRedirect is the post-login destination when the flow
	// carries none.
	DefaultRedirect string
}

func (c *Config) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.DefaultRedirect == "" {
		c.DefaultRedirect = "/private"
	}
}

type AuthAPI struct {
	provider *provider.Client
	oracle   *session.Oracle
	cookies  provider.CookieSettings
	cfg      Config
}

func New(client *provider.Client, oracle *session.Oracle, cookies provider.CookieSettings, cfg Config) *AuthAPI {
	cfg.applyDefaults()
	return &AuthAPI{
		provider: client,
		oracle:   oracle,
		cookies:  cookies,
		cfg:      cfg,
	}
}

func (a *AuthAPI) MountRoutes(g *echo.Group) {
	g.POST("/api/auth/login", a.login)
	g.POST("/api/auth/signup", a.signup)
	g.POST("/api/auth/forgot-password", a.forgotPassword)
	g.POST("/api/auth/resend", a.resend)
	g.POST("/api/auth/verify", a.verify)
	g.POST("/api/auth/reset-password", a.resetPassword)
	g.POST("/api/auth/logout", a.logout)
	g.GET("/api/auth/me", a.me)
	g.GET("/auth/authorize", a.authorize)
	g.GET("/auth/callback", a.callback)
}

func (a *AuthAPI) jar(c echo.Context) cookiebridge.Jar {
	return cookiebridge.NewRequestResponseJar(c.Request(), c.Response())
}

type okResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type errResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

func respondOK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, okResponse{OK: true, Data: data})
}

// respondValidation is a locally recovered input problem: specific
// message, 400, provider never consulted.
func respondValidation(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errResponse{Error: message})
}

// respondFailure normalizes an operation failure. Provider rejections
// keep the provider's status and message; anything unexpected is
// logged and collapsed to a generic 500 leaking no internals.
func respondFailure(c echo.Context, op string, err error) error {
	var perr *provider.Error
	if errors.As(err, &perr) {
		status := perr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		slog.Error(op+" rejected by provider", "status", status, "code", perr.Code, "message", perr.Message)
		return c.JSON(status, errResponse{Error: perr.Message, Status: status})
	}
	slog.Error(op+" failed", "error", err)
	return c.JSON(http.StatusInternalServerError, errResponse{Error: "internal"})
}

func asProviderError(err error) *provider.Error {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr
	}
	return nil
}

// maskToken shortens an OTP token for logs: first and last two
// characters only, nothing at all for very short values.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + "..." + token[len(token)-2:]
}
