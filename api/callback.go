package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nubauth/authfront/cookiebridge"
	"github.com/nubauth/authfront/gate"
	"github.com/segmentio/ksuid"
	"golang.org/x/oauth2"
)

// verifierCookie holds the PKCE verifier between the authorize
// redirect and the provider's callback.
const verifierCookie = "af-code-verifier"

// authorize starts the provider's external OAuth step for the named
// social provider (github, google, ...). The PKCE verifier stays on
// our side in a short-lived cookie; only its S256 challenge travels.
func (a *AuthAPI) authorize(c echo.Context) error {
	oauthProvider := c.QueryParam("provider")
	if oauthProvider == "" {
		return respondValidation(c, "provider required")
	}
	redirectedFrom := c.QueryParam(gate.RedirectedFromParam)

	verifier := oauth2.GenerateVerifier()
	a.jar(c).Set(&http.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	callbackURL, err := url.Parse(a.cfg.BaseURL + "/auth/callback")
	if err != nil {
		return respondFailure(c, "authorize", err)
	}
	if redirectedFrom != "" {
		query := callbackURL.Query()
		query.Set(gate.RedirectedFromParam, redirectedFrom)
		callbackURL.RawQuery = query.Encode()
	}

	flowID := ksuid.New().String()
	authURL := a.provider.AuthorizeURL(oauthProvider, callbackURL.String(), oauth2.S256ChallengeFromVerifier(verifier))
	slog.Info("starting oauth handoff", "provider", oauthProvider, "flow", flowID)
	return c.Redirect(http.StatusFound, authURL)
}

// callback completes the provider's redirect back to us: either an
// error to forward to the login page, or a one-time code to exchange
// for a session.
func (a *AuthAPI) callback(c echo.Context) error {
	errorParam := c.QueryParam("error")
	redirectedFrom := c.QueryParam(gate.RedirectedFromParam)
	code := c.QueryParam("code")

	// provider-reported failure: forward verbatim, never attempt an
	// exchange
	if errorParam != "" {
		return a.redirectToLogin(c, errorParam, redirectedFrom)
	}

	jar := a.jar(c)
	destination := a.resolveDestination(redirectedFrom)

	if code != "" {
		verifier := ""
		if cookie, ok := jar.Get(verifierCookie); ok {
			verifier = cookie.Value
		}
		sess, err := a.provider.ExchangeCode(c.Request().Context(), code, verifier)
		if err != nil {
			slog.Error("oauth exchange failed", "error", err)
			message := "internal"
			if perr := asProviderError(err); perr != nil {
				message = perr.Message
			}
			return a.redirectToLogin(c, message, redirectedFrom)
		}
		if err := a.cookies.WriteSession(jar, sess); err != nil {
			slog.Error("failed to write session after exchange", "error", err)
			return a.redirectToLogin(c, "internal", redirectedFrom)
		}
		a.clearVerifier(jar)
	}

	// with neither code nor error this is a defensive pass-through:
	// no session mutation, straight to the destination
	return c.Redirect(http.StatusFound, destination)
}

// resolveDestination picks the post-login target and appends the
// login=success marker the client uses for toast feedback. Only
// path-absolute targets are honored, so the parameter cannot redirect
// off-site.
func (a *AuthAPI) resolveDestination(redirectedFrom string) string {
	target := a.cfg.DefaultRedirect
	if strings.HasPrefix(redirectedFrom, "/") && !strings.HasPrefix(redirectedFrom, "//") {
		target = redirectedFrom
	}
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: a.cfg.DefaultRedirect}
	}
	query := u.Query()
	query.Set("login", "success")
	u.RawQuery = query.Encode()
	return u.String()
}

func (a *AuthAPI) redirectToLogin(c echo.Context, message, redirectedFrom string) error {
	query := url.Values{}
	query.Set("error", message)
	if redirectedFrom != "" {
		query.Set(gate.RedirectedFromParam, redirectedFrom)
	}
	return c.Redirect(http.StatusFound, a.cfg.LoginPath+"?"+query.Encode())
}

func (a *AuthAPI) clearVerifier(jar cookiebridge.Jar) {
	jar.Set(&http.Cookie{
		Name:   verifierCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
