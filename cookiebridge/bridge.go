// Package cookiebridge adapts the auth provider's cookie-list protocol
// to the transport primitives of the host runtime. The provider only
// ever asks for two capabilities: "give me all cookies on the inbound
// request" and "set cookie X=Y with options O on the outbound
// response". A Jar bundles both.
//
// Two concrete jars exist. RequestResponseJar writes straight onto a
// live http.ResponseWriter and is used wherever a mutable response
// exists (gate, OAuth callback, API handlers). DeferredJar accepts
// writes but drops them; it is meant for passive read-only contexts
// which must never rotate session cookies. This asymmetry is
// deliberate: only the gate and the callback refresh cookies.
package cookiebridge

import (
	"log/slog"
	"net/http"
	"strings"
)

// Jar is the cookie capability handed to the provider plumbing.
type Jar interface {
	// GetAll returns every cookie of the inbound request.
	GetAll() []*http.Cookie
	// Get returns the named inbound cookie, if present.
	Get(name string) (*http.Cookie, bool)
	// Set places a cookie on the outbound response.
	Set(cookie *http.Cookie)
}

// RequestResponseJar reads from a request and writes immediately to a
// response. Writes apply as soon as Set is called.
type RequestResponseJar struct {
	cookies []*http.Cookie
	writer  http.ResponseWriter
}

func NewRequestResponseJar(r *http.Request, w http.ResponseWriter) *RequestResponseJar {
	return &RequestResponseJar{
		cookies: readRequestCookies(r),
		writer:  w,
	}
}

func (j *RequestResponseJar) GetAll() []*http.Cookie {
	return j.cookies
}

func (j *RequestResponseJar) Get(name string) (*http.Cookie, bool) {
	return findCookie(j.cookies, name)
}

func (j *RequestResponseJar) Set(cookie *http.Cookie) {
	http.SetCookie(j.writer, cookie)
}

// DeferredJar reads from a request but has no response to write to.
// Set is accepted and dropped, so a session nearing expiry cannot be
// refreshed through this jar.
type DeferredJar struct {
	cookies []*http.Cookie
}

func NewDeferredJar(r *http.Request) *DeferredJar {
	return &DeferredJar{cookies: readRequestCookies(r)}
}

func (j *DeferredJar) GetAll() []*http.Cookie {
	return j.cookies
}

func (j *DeferredJar) Get(name string) (*http.Cookie, bool) {
	return findCookie(j.cookies, name)
}

func (j *DeferredJar) Set(cookie *http.Cookie) {
	slog.Debug("dropping deferred cookie write", "name", cookie.Name)
}

// readRequestCookies prefers the parsed cookie surface of the request.
// The parser silently drops cookies with names it considers invalid,
// so when it comes back empty while a raw Cookie header is present we
// fall back to parsing the header ourselves. Reads never fail; at
// worst the cookie set is empty and callers treat that as "no
// session".
func readRequestCookies(r *http.Request) []*http.Cookie {
	if r == nil {
		return nil
	}
	cookies := r.Cookies()
	if len(cookies) > 0 {
		return cookies
	}
	if header := r.Header.Get("Cookie"); header != "" {
		return ParseCookieHeader(header)
	}
	return nil
}

// ParseCookieHeader splits a raw Cookie header into name/value pairs:
// segments are separated by ';', the name ends at the first '='.
// Segments without a name are dropped.
func ParseCookieHeader(header string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:  name,
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

func findCookie(cookies []*http.Cookie, name string) (*http.Cookie, bool) {
	for _, c := range cookies {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
