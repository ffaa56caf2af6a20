package provider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nubauth/authfront/cookiebridge"
)

// Browsers start dropping cookies around 4KB; chunk below that so the
// serialized session survives with headroom for attributes.
const maxCookieChunk = 3180

// CookieSettings describes how sessions are materialized as cookies.
// The values are opaque to everything but this codec; the bridge
// round-trips them byte for byte.
type CookieSettings struct {
	// Name of the session cookie. Oversized sessions are split into
	// Name.0, Name.1, ... chunks.
	Name string `yaml:"name"`
	// Domain limits the cookie to a domain; empty means host-only.
	Domain string `yaml:"domain"`
	// Production switches to a __Host- prefixed, Secure cookie.
	Production bool `yaml:"production"`
	// MaxAge in seconds; defaults to the provider refresh window.
	MaxAge int `yaml:"max_age"`
}

func (s CookieSettings) applyDefaults() CookieSettings {
	if s.Name == "" {
		s.Name = "af-auth-token"
	}
	if s.MaxAge == 0 {
		s.MaxAge = int((30 * 24 * time.Hour).Seconds())
	}
	return s
}

// template returns the base cookie all session writes derive from.
// Production deployments get the __Host- prefix; local development
// keeps a plain cookie so plain-http testing works.
func (s CookieSettings) template() *http.Cookie {
	s = s.applyDefaults()
	if s.Production {
		return &http.Cookie{
			Name:     fmt.Sprintf("__Host-%s", s.Name),
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   s.MaxAge,
		}
	}
	return &http.Cookie{
		Name:     s.Name,
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   s.MaxAge,
	}
}

// WriteSession serializes the session into the jar, chunking when the
// value exceeds a single cookie's safe size. Stale chunks from a
// previously larger session are expired so reads never join mixed
// generations.
func (s CookieSettings) WriteSession(jar cookiebridge.Jar, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(payload)
	template := s.template()

	if len(value) <= maxCookieChunk {
		cookie := *template
		cookie.Value = value
		jar.Set(&cookie)
		s.expireChunks(jar, template, 0)
		return nil
	}

	var n int
	for offset := 0; offset < len(value); offset += maxCookieChunk {
		end := offset + maxCookieChunk
		if end > len(value) {
			end = len(value)
		}
		cookie := *template
		cookie.Name = fmt.Sprintf("%s.%d", template.Name, n)
		cookie.Value = value[offset:end]
		jar.Set(&cookie)
		n++
	}
	// the unsuffixed cookie must not shadow the chunks
	expired := *template
	expired.Value = ""
	expired.MaxAge = -1
	jar.Set(&expired)
	s.expireChunks(jar, template, n)
	return nil
}

// ReadSession decodes the session from the jar, joining chunks when
// present. A missing or undecodable cookie yields nil, never an
// error; the caller treats that as "no session".
func (s CookieSettings) ReadSession(jar cookiebridge.Jar) *Session {
	template := s.template()

	value := ""
	if c, ok := jar.Get(template.Name); ok && c.Value != "" {
		value = c.Value
	} else {
		for i := 0; ; i++ {
			c, ok := jar.Get(fmt.Sprintf("%s.%d", template.Name, i))
			if !ok {
				break
			}
			value += c.Value
		}
	}
	if value == "" {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		slog.Debug("session cookie is not valid base64", "name", template.Name)
		return nil
	}
	session := new(Session)
	if err := json.Unmarshal(payload, session); err != nil {
		slog.Debug("session cookie payload is not a session", "name", template.Name)
		return nil
	}
	if session.AccessToken == "" {
		return nil
	}
	return session
}

// ClearSession expires the session cookie and any chunks of it.
func (s CookieSettings) ClearSession(jar cookiebridge.Jar) {
	template := s.template()
	expired := *template
	expired.Value = ""
	expired.MaxAge = -1
	jar.Set(&expired)
	s.expireChunks(jar, template, 0)
}

// expireChunks expires every inbound chunk cookie at index >= from.
func (s CookieSettings) expireChunks(jar cookiebridge.Jar, template *http.Cookie, from int) {
	for i := from; ; i++ {
		name := fmt.Sprintf("%s.%d", template.Name, i)
		if _, ok := jar.Get(name); !ok {
			return
		}
		expired := *template
		expired.Name = name
		expired.Value = ""
		expired.MaxAge = -1
		jar.Set(&expired)
	}
}
