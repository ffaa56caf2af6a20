package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nubauth/authfront/provider"
)

func newTestClient(t *testing.T, handler http.Handler) (*provider.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := provider.NewClient(provider.Config{
		BaseURL: server.URL,
		AnonKey: "anon-key",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, server
}

func TestSignInWithPassword(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected grant_type %q", r.URL.Query().Get("grant_type"))
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing apikey header")
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "jo@example.com" || body["password"] != "secret" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_at":    4102444800,
			"user": map[string]any{
				"id":    "u-1",
				"email": "jo@example.com",
				"user_metadata": map[string]any{
					"full_name":  "Jo Example",
					"avatar_url": "https://example.com/a.png",
				},
			},
		})
	}))

	session, err := client.SignInWithPassword(context.Background(), "jo@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "at-1" || session.RefreshToken != "rt-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.User == nil || session.User.Name != "Jo Example" {
		t.Fatalf("expected hydrated user, got %+v", session.User)
	}
}

func TestSignInWithPasswordRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	}))

	_, err := client.SignInWithPassword(context.Background(), "jo@example.com", "wrong")
	var perr *provider.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *provider.Error, got %v", err)
	}
	if perr.Status != http.StatusBadRequest || perr.Message != "Invalid login credentials" {
		t.Fatalf("unexpected error: %+v", perr)
	}
	if perr.Code != "invalid_credentials" {
		t.Fatalf("unexpected code: %q", perr.Code)
	}
}

func TestSignUpConfirmationPending(t *testing.T) {
	// confirmation pending: the provider answers with a bare user
	// object and no session
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "u-2",
			"email": "new@example.com",
		})
	}))

	result, err := client.SignUp(context.Background(), "new@example.com", "longenough", "New User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Session != nil {
		t.Fatalf("expected no session, got %+v", result.Session)
	}
	if result.User == nil || result.User.ID != "u-2" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
}

func TestSignUpWithImmediateSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-3",
			"refresh_token": "rt-3",
			"expires_at":    4102444800,
			"user":          map[string]any{"id": "u-3", "email": "auto@example.com"},
		})
	}))

	result, err := client.SignUp(context.Background(), "auto@example.com", "longenough", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Session == nil || result.Session.AccessToken != "at-3" {
		t.Fatalf("expected immediate session, got %+v", result.Session)
	}
}

func TestVerifyOTP(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != provider.OTPTypeRecovery {
			t.Errorf("unexpected type %q", body["type"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-4",
			"refresh_token": "rt-4",
			"user":          map[string]any{"id": "u-4", "email": "jo@example.com"},
		})
	}))

	session, err := client.VerifyOTP(context.Background(), "jo@example.com", "123456", provider.OTPTypeRecovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "at-4" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestUserSendsBearer(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-5" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "u-5",
			"email":         "jo@example.com",
			"user_metadata": map[string]any{"full_name": "Jo"},
		})
	}))

	principal, err := client.User(context.Background(), "at-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal.Name != "Jo" {
		t.Fatalf("expected hydrated name, got %+v", principal)
	}
}

func TestAuthorizeURL(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	u := client.AuthorizeURL("github", "https://app.example.com/auth/callback", "challenge-123")
	if !strings.HasPrefix(u, server.URL+"/auth/v1/authorize?") {
		t.Fatalf("unexpected authorize URL: %s", u)
	}
	for _, want := range []string{"provider=github", "code_challenge=challenge-123", "code_challenge_method=s256"} {
		if !strings.Contains(u, want) {
			t.Errorf("authorize URL missing %q: %s", want, u)
		}
	}
}

func TestErrorShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"msg", `{"msg":"over quota"}`, "over quota"},
		{"message", `{"message":"nope"}`, "nope"},
		{"description", `{"error":"access_denied","error_description":"denied"}`, "denied"},
		{"bare error", `{"error":"access_denied"}`, "access_denied"},
		{"unparseable", `<html>teapot</html>`, http.StatusText(http.StatusTeapot)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				w.Write([]byte(tc.body))
			}))
			err := client.Recover(context.Background(), "jo@example.com")
			var perr *provider.Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *provider.Error, got %v", err)
			}
			if perr.Message != tc.want {
				t.Fatalf("expected message %q, got %q", tc.want, perr.Message)
			}
		})
	}
}
