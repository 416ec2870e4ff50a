package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMergedMessagesOK(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"user_id":"99","nickname":"Ada"},{"message":[]},42]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	records, err := c.MergedMessages(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("MergedMessages: %v", err)
	}
	if gotPath != "/api/messages/merged/abc-123" {
		t.Fatalf("path = %q", gotPath)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0]["user_id"] != "99" {
		t.Errorf("records[0][user_id] = %v", records[0]["user_id"])
	}
	// non-object entries coerce to empty records
	if len(records[2]) != 0 {
		t.Errorf("records[2] = %v, want empty", records[2])
	}
}

func TestMergedMessagesEscapesIdentifier(t *testing.T) {
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRaw = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).MergedMessages(context.Background(), "a/b c"); err != nil {
		t.Fatalf("MergedMessages: %v", err)
	}
	if gotRaw != "/api/messages/merged/a%2Fb%20c" {
		t.Fatalf("escaped path = %q", gotRaw)
	}
}

func TestMergedMessagesUpstreamError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error key", 404, `{"error":"merged message not found"}`, "merged message not found"},
		{"message key", 500, `{"message":"db offline"}`, "db offline"},
		{"plain body", 502, "bad gateway", "bad gateway"},
		{"html body falls back to status", 503, "<html>oops</html>", "503"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).MergedMessages(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err, tc.want)
			}
		})
	}
}

func TestMergedMessagesBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).MergedMessages(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestServeAvatarProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/avatar/qq/10001" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Referer") != "" {
			t.Errorf("referer leaked: %q", r.Header.Get("Referer"))
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer upstream.Close()

	c := New(upstream.URL)

	rec := httptest.NewRecorder()
	c.ServeAvatar(context.Background(), rec, "10001")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content-type = %q", got)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c.ServeAvatar(context.Background(), rec, "other")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing avatar status = %d, want 404", rec.Code)
	}
}
