// Package gate is the pre-render request interceptor. It runs before
// any page is served and decides, from path and session presence
// alone, whether a request passes, detours to login, or bounces back
// into the private area.
package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nubauth/authfront/cookiebridge"
	"github.com/nubauth/authfront/session"
)

// RedirectedFromParam carries the original destination across the
// login detour, without any server-side state.
const RedirectedFromParam = "redirectedFrom"

type Config struct {
	// PrivatePrefix is the path subtree requiring a session.
	PrivatePrefix string `yaml:"private_prefix"`
	// LoginPath is the exact login page path.
	LoginPath string `yaml:"login_path"`
}

func (c *Config) ApplyDefaults() {
	if c.PrivatePrefix == "" {
		c.PrivatePrefix = "/private"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
}

// Middleware evaluates the gate once per request. Paths outside the
// matched set (private subtree, login page) bypass it entirely and
// rely on their own checks.
//
// Transition table, session x path:
//
//	absent  x private → 302 login?redirectedFrom=<path>
//	present x login   → 302 private
//	anything else     → pass through unchanged
func Middleware(oracle *session.Oracle, cfg Config) echo.MiddlewareFunc {
	cfg.ApplyDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			isPrivate := strings.HasPrefix(path, cfg.PrivatePrefix)
			isLogin := path == cfg.LoginPath
			if !isPrivate && !isLogin {
				return next(c)
			}

			// mutable jar: gate evaluation is one of the two places
			// a near-expiry session may be silently rotated
			jar := cookiebridge.NewRequestResponseJar(c.Request(), c.Response())
			sess := oracle.Current(c.Request().Context(), jar)

			if sess == nil && isPrivate {
				query := url.Values{}
				query.Set(RedirectedFromParam, path)
				return c.Redirect(http.StatusFound, cfg.LoginPath+"?"+query.Encode())
			}
			if sess != nil && isLogin {
				return c.Redirect(http.StatusFound, cfg.PrivatePrefix)
			}
			return next(c)
		}
	}
}
