package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth(t *testing.T, opts Options) *Authenticator {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestVerify(t *testing.T) {
	a := newTestAuth(t, Options{Password: "hunter2", JWTSecret: "secret"})
	if !a.Verify("hunter2") {
		t.Fatal("expected correct password to verify")
	}
	if a.Verify("wrong") {
		t.Fatal("expected wrong password to fail")
	}
	if a.Verify("") {
		t.Fatal("expected empty password to fail")
	}
}

func TestNewRequiresPassword(t *testing.T) {
	if _, err := New(Options{JWTSecret: "secret", Logger: testLogger()}); err == nil {
		t.Fatal("expected error without a password")
	}
}

func TestPasswordFileWinsOverInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.pass")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	a := newTestAuth(t, Options{Password: "inline", PasswordFile: path, JWTSecret: "secret"})
	if !a.Verify("from-file") {
		t.Fatal("expected file password to win")
	}
	if a.Verify("inline") {
		t.Fatal("inline password should be superseded")
	}
}

func TestReloadPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.pass")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}
	a := newTestAuth(t, Options{PasswordFile: path, JWTSecret: "secret"})
	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := a.reloadPassword(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !a.Verify("second") || a.Verify("first") {
		t.Fatal("expected rotated password to take effect")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t, Options{Password: "p", JWTSecret: "secret", SessionTTL: time.Hour})
	token, expires, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if until := time.Until(expires); until < 55*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry: %s", expires)
	}
	if err := a.ValidateToken(token); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	a := newTestAuth(t, Options{Password: "p", JWTSecret: "secret", SessionTTL: time.Minute})
	a.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, _, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := a.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestForeignSecretRejected(t *testing.T) {
	a := newTestAuth(t, Options{Password: "p", JWTSecret: "secret-one"})
	b := newTestAuth(t, Options{Password: "p", JWTSecret: "secret-two"})
	token, _, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := b.ValidateToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	a := newTestAuth(t, Options{Password: "p", JWTSecret: "secret", SessionTTL: time.Hour})
	var reached bool
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/api/admin/instances", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if reached {
				t.Fatal("handler should not run")
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Fatalf("error responses must be JSON, got %q", ct)
			}
		})
	}

	token, _, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/instances", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || !reached {
		t.Fatalf("valid token rejected: status=%d reached=%v", rec.Code, reached)
	}
}
