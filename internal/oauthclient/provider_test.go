package oauthclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// fakeAuthServer serves minimal RFC 9728/8414/7591/6749 endpoints for
// exercising the full authorization-code-with-PKCE flow end to end.
func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var issued string

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 base,
			"authorization_endpoint": base + "/authorize",
			"token_endpoint":         base + "/token",
			"registration_endpoint":  base + "/register",
		})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"client_id":     "client-123",
			"client_secret": "secret-abc",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code_verifier") == "" {
				http.Error(w, "missing verifier", http.StatusBadRequest)
				return
			}
			issued = "refresh-xyz"
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"refresh_token": issued,
			})
		case "refresh_token":
			if r.Form.Get("refresh_token") != issued {
				http.Error(w, "bad refresh token", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	})
	return httptest.NewServer(mux)
}

func TestAuthorizationCodeFlowWithPKCE(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	p := New(Config{
		ServerURL:         srv.URL,
		RedirectURI:       "http://localhost:8765/callback",
		Scope:             "mcp:read mcp:write",
		ClientName:        "test-client",
		InsecureAllowHTTP: true,
	})

	authURL, err := p.StartAuthorizationFlow(context.Background())
	if err != nil {
		t.Fatalf("StartAuthorizationFlow: %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse authURL: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256, got %q", q.Get("code_challenge_method"))
	}
	if q.Get("resource") != srv.URL {
		t.Fatalf("expected resource=%s, got %q", srv.URL, q.Get("resource"))
	}
	state := q.Get("state")
	if state == "" {
		t.Fatal("expected non-empty state")
	}

	if err := p.CompleteAuthorizationFlow(context.Background(), "auth-code-xyz", state); err != nil {
		t.Fatalf("CompleteAuthorizationFlow: %v", err)
	}

	if _, ok := p.cfg.Storage.GetPKCE(srv.URL); ok {
		t.Fatal("expected PKCE entry deleted after use")
	}
	if _, ok := p.cfg.Storage.GetState(srv.URL); ok {
		t.Fatal("expected state entry deleted after use")
	}

	header, err := p.AuthorizationHeader(context.Background())
	if err != nil {
		t.Fatalf("AuthorizationHeader: %v", err)
	}
	if header != "Bearer access-1" {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestCompleteAuthorizationFlowRejectsStateMismatch(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	p := New(Config{ServerURL: srv.URL, RedirectURI: "http://localhost/cb", InsecureAllowHTTP: true})
	if _, err := p.StartAuthorizationFlow(context.Background()); err != nil {
		t.Fatalf("StartAuthorizationFlow: %v", err)
	}
	if err := p.CompleteAuthorizationFlow(context.Background(), "code", "wrong-state"); err == nil {
		t.Fatal("expected state mismatch error")
	}
}

func TestAuthorizationHeaderRefreshesSoonToExpireToken(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	p := New(Config{ServerURL: srv.URL, RedirectURI: "http://localhost/cb", InsecureAllowHTTP: true})
	authURL, err := p.StartAuthorizationFlow(context.Background())
	if err != nil {
		t.Fatalf("StartAuthorizationFlow: %v", err)
	}
	state := mustQuery(t, authURL, "state")
	if err := p.CompleteAuthorizationFlow(context.Background(), "code", state); err != nil {
		t.Fatalf("CompleteAuthorizationFlow: %v", err)
	}

	token, _ := p.cfg.Storage.GetToken(srv.URL)
	token.ExpiresAt = time.Now().Add(10 * time.Second)
	p.cfg.Storage.SetToken(srv.URL, token)

	header, err := p.AuthorizationHeader(context.Background())
	if err != nil {
		t.Fatalf("AuthorizationHeader: %v", err)
	}
	if header != "Bearer access-2" {
		t.Fatalf("expected refreshed token, got %q", header)
	}
}

func TestAuthorizationHeaderRequiresPriorFlow(t *testing.T) {
	p := New(Config{ServerURL: "https://example.test", RedirectURI: "http://localhost/cb"})
	if _, err := p.AuthorizationHeader(context.Background()); err == nil {
		t.Fatal("expected error when no token has been acquired")
	}
}

func TestRequireHTTPSRejectsPlainHTTPByDefault(t *testing.T) {
	p := New(Config{ServerURL: "http://example.test", RedirectURI: "http://localhost/cb"})
	if err := p.requireHTTPS("http://example.test/authorize"); err == nil {
		t.Fatal("expected HTTPS enforcement error")
	}
}

func mustQuery(t *testing.T, rawURL, key string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	v := u.Query().Get(key)
	if v == "" {
		t.Fatalf("missing query param %q in %s", key, rawURL)
	}
	return v
}
