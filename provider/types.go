package provider

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Session is the provider-issued proof of authentication. It is
// created, refreshed and destroyed by the provider; this codebase only
// carries it between cookie and wire.
type Session struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	ExpiresAt    int64      `json:"expires_at,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	User         *Principal `json:"user,omitempty"`
}

// Expiry returns the absolute expiry of the access token. When the
// provider omitted expires_at the token's own exp claim is used,
// parsed without signature verification; the claim is only ever a
// local fast-path hint, never a security decision (see Principal).
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	token, err := jwt.ParseInsecure([]byte(s.AccessToken))
	if err != nil {
		return time.Time{}
	}
	return token.Expiration()
}

// Expired reports whether the access token is past its expiry. A
// session with no discoverable expiry counts as expired.
func (s *Session) Expired(now time.Time) bool {
	expiry := s.Expiry()
	return expiry.IsZero() || !now.Before(expiry)
}

// Principal is the authenticated user's identity as reported by the
// provider. Read-only; Name and AvatarURL are lifted out of the
// metadata for convenience.
type Principal struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
}

func (p *Principal) hydrate() {
	if p == nil {
		return
	}
	if p.Name == "" {
		p.Name = metadataString(p.Metadata, "full_name")
	}
	if p.AvatarURL == "" {
		p.AvatarURL = metadataString(p.Metadata, "avatar_url")
	}
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// SignUpResult is what a signup attempt yields. Depending on the
// provider's confirmation settings it may carry an immediate session;
// callers are expected to sign that session out again so that email
// confirmation alone never leaves a user logged in.
type SignUpResult struct {
	User    *Principal
	Session *Session
}
