// Package session answers the two questions the rest of the service
// asks about a request: "is there a session?" and "who is this?". The
// first is local and cheap, the second is always a provider
// round-trip.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nubauth/authfront/cookiebridge"
	"github.com/nubauth/authfront/provider"
)

// Oracle resolves sessions and principals from request cookies. It is
// a plain value; construct one per server, not per request.
type Oracle struct {
	Provider *provider.Client
	Cookies  provider.CookieSettings
}

func NewOracle(client *provider.Client, cookies provider.CookieSettings) *Oracle {
	return &Oracle{Provider: client, Cookies: cookies}
}

// Session decodes the session from the jar without any network call.
// It trusts the locally stored expiry only as a freshness hint; nil
// means absent or undecodable. An expired session is still returned
// so callers holding a mutable jar can refresh it.
func (o *Oracle) Session(jar cookiebridge.Jar) *provider.Session {
	return o.Cookies.ReadSession(jar)
}

// Current returns a usable session for the request, refreshing an
// expired one through the provider when a refresh token is available.
// The refreshed cookies are written through the jar; with a
// DeferredJar the write is dropped, so passive read-only contexts see
// the refreshed session for this request but cannot rotate the cookie
// (only the gate and the OAuth callback do).
func (o *Oracle) Current(ctx context.Context, jar cookiebridge.Jar) *provider.Session {
	sess := o.Cookies.ReadSession(jar)
	if sess == nil {
		return nil
	}
	if !sess.Expired(time.Now()) {
		return sess
	}
	if sess.RefreshToken == "" {
		return nil
	}

	refreshed, err := o.Provider.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		slog.Debug("session refresh failed", "error", err)
		return nil
	}
	if err := o.Cookies.WriteSession(jar, refreshed); err != nil {
		slog.Error("failed to write refreshed session cookie", "error", err)
	}
	return refreshed
}

// Principal is the authoritative identity lookup: a provider
// round-trip on every call. Use it whenever the identity is shown to
// the user or feeds a security decision; never trust the email or
// name embedded in a locally stored session.
func (o *Oracle) Principal(ctx context.Context, jar cookiebridge.Jar) (*provider.Principal, error) {
	sess := o.Current(ctx, jar)
	if sess == nil {
		return nil, fmt.Errorf("no session")
	}
	principal, err := o.Provider.User(ctx, sess.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve principal: %w", err)
	}
	return principal, nil
}
