// Package relay is the HTTP boundary to the relay backend: one-shot
// retrieval of merged message batches and pass-through of QQ avatars.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/you/napgram-console/internal/core"
)

const (
	mergedPath = "/api/messages/merged/"
	avatarPath = "/api/avatar/qq/"

	maxBatchBytes = 32 << 20
	maxErrorBytes = 4096
)

// Client talks to one relay backend.
type Client struct {
	base string
	http *http.Client
}

// New builds a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// MergedMessages fetches the entire merged transcript for one identifier.
// The whole list comes back in one response; there is no pagination. A
// non-2xx response becomes an error carrying the upstream status and, when
// the body has one, its error message.
func (c *Client) MergedMessages(ctx context.Context, identifier string) ([]core.RawRecord, error) {
	endpoint := c.base + mergedPath + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("merged messages: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("merged messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("merged messages: status %d: %s", resp.StatusCode, upstreamError(body, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchBytes))
	if err != nil {
		return nil, fmt.Errorf("merged messages: read body: %w", err)
	}
	return decodeRecords(body)
}

// upstreamError pulls a human-readable message out of an error body; relay
// builds have used both "error" and "message" keys over time.
func upstreamError(body []byte, fallback string) string {
	for _, key := range []string{"error", "message"} {
		if v := gjson.GetBytes(body, key); v.Exists() && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && len(trimmed) <= 200 && !strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	return fallback
}

// decodeRecords decodes the batch tolerantly: the batch must be a JSON
// array, but entries that are not objects coerce to empty records rather
// than failing the whole transcript.
func decodeRecords(body []byte) ([]core.RawRecord, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("merged messages: decode: %w", err)
	}
	records := make([]core.RawRecord, len(raw))
	for i, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			records[i] = core.RawRecord(m)
			continue
		}
		records[i] = core.RawRecord{}
	}
	return records, nil
}

// ServeAvatar proxies one QQ avatar from the relay backend to w. Avatar
// failures are cosmetic: any upstream problem answers 404 and the display
// surface falls back to the gradient glyph, never to an error state.
func (c *Client) ServeAvatar(ctx context.Context, w http.ResponseWriter, senderID string) {
	endpoint := c.base + avatarPath + url.PathEscape(senderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		http.Error(w, "avatar unavailable", http.StatusNotFound)
		return
	}
	// upstream avatar hosts reject hot-link referrers
	req.Header.Set("Referer", "")

	resp, err := c.http.Do(req)
	if err != nil {
		http.Error(w, "avatar unavailable", http.StatusNotFound)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, "avatar unavailable", http.StatusNotFound)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = io.Copy(w, resp.Body)
}
