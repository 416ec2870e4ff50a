package msgview

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/you/napgram-console/internal/core"
)

func TestNormalizeFullRecord(t *testing.T) {
	rec := core.RawRecord{
		"message":  []any{map[string]any{"type": "text", "data": map[string]any{"text": "hi\nthere"}}},
		"time":     float64(1700000000),
		"user_id":  float64(123),
		"nickname": "Alice",
	}

	msg := Normalize(rec, 0)
	if msg.SenderID != "123" {
		t.Fatalf("expected senderId 123, got %q", msg.SenderID)
	}
	if msg.DisplayName != "Alice" {
		t.Fatalf("expected displayName Alice, got %q", msg.DisplayName)
	}
	if msg.AvatarURL != "/api/avatar/qq/123" {
		t.Fatalf("unexpected avatar url %q", msg.AvatarURL)
	}
	if !msg.HasTime || msg.Time != 1700000000 {
		t.Fatalf("expected time 1700000000, got %v (has=%v)", msg.Time, msg.HasTime)
	}
	if len(msg.Segments) != 1 || msg.Segments[0].Type != "text" {
		t.Fatalf("unexpected segments: %#v", msg.Segments)
	}
}

func TestNormalizeSenderFallbackOrder(t *testing.T) {
	cases := []struct {
		name string
		rec  core.RawRecord
		id   string
	}{
		{"user_id wins", core.RawRecord{"user_id": float64(1), "sender_id": float64(2)}, "1"},
		{"sender_id second", core.RawRecord{"sender_id": float64(2), "sender": map[string]any{"id": float64(3)}}, "2"},
		{"nested sender third", core.RawRecord{"sender": map[string]any{"id": float64(3)}}, "3"},
		{"string ids pass through", core.RawRecord{"user_id": "abc"}, "abc"},
		{"zero is a value", core.RawRecord{"user_id": float64(0)}, "0"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.rec, 7).SenderID; got != tc.id {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.id, got)
		}
	}
}

func TestNormalizeNameFallbackOrder(t *testing.T) {
	cases := []struct {
		name string
		rec  core.RawRecord
		want string
	}{
		{"nickname wins", core.RawRecord{"nickname": "n", "card": "c"}, "n"},
		{"empty nickname falls through", core.RawRecord{"nickname": "", "card": "c"}, "c"},
		{"nested sender name", core.RawRecord{"sender": map[string]any{"name": "s"}}, "s"},
		{"placeholder when nothing resolves", core.RawRecord{}, UnknownUserName},
	}
	for _, tc := range cases {
		if got := Normalize(tc.rec, 0).DisplayName; got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeAnonymousRecord(t *testing.T) {
	rec := core.RawRecord{
		"message": []any{map[string]any{"type": "image", "data": map[string]any{"url": "http://x/1.jpg"}}},
	}

	msg := Normalize(rec, 2)
	if msg.SenderID != "user2" {
		t.Fatalf("expected positional placeholder user2, got %q", msg.SenderID)
	}
	if msg.DisplayName != UnknownUserName {
		t.Fatalf("expected unknown-user placeholder, got %q", msg.DisplayName)
	}
	if msg.AvatarURL != "" {
		t.Fatalf("expected no avatar for placeholder sender, got %q", msg.AvatarURL)
	}
	if msg.HasTime {
		t.Fatalf("expected no timestamp")
	}
}

func TestNormalizeExplicitAvatarWins(t *testing.T) {
	rec := core.RawRecord{"user_id": float64(9), "avatar": "https://cdn/x.png"}
	if got := Normalize(rec, 0).AvatarURL; got != "https://cdn/x.png" {
		t.Fatalf("expected explicit avatar, got %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	rec := core.RawRecord{
		"user_id": "99",
		"card":    "Bob",
		"time":    float64(100),
		"message": []any{map[string]any{"type": "text", "data": map[string]any{"text": "x"}}},
	}
	a := Normalize(rec, 3)
	b := Normalize(rec, 3)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalize not idempotent:\n%#v\n%#v", a, b)
	}
}

func TestNormalizeNeverFailsOnArbitraryShapes(t *testing.T) {
	// Every JSON-decodable shape must normalize without panicking.
	payloads := []string{
		`{}`,
		`{"message": "not an array"}`,
		`{"message": 42, "time": "soon", "user_id": {"deep": true}}`,
		`{"message": [1, "two", null, []]}`,
		`{"sender": "not an object", "nickname": 0}`,
		`{"message": [{"data": "not an object"}]}`,
	}
	for _, payload := range payloads {
		var rec core.RawRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			t.Fatalf("fixture %s: %v", payload, err)
		}
		msg := Normalize(rec, 0)
		if msg.SenderID == "" || msg.DisplayName == "" {
			t.Fatalf("payload %s: identity invariant broken: %#v", payload, msg)
		}
		if msg.Segments == nil {
			t.Fatalf("payload %s: segments must never be nil", payload)
		}
		// rendering the result must be total too
		units := RenderSegments(msg.Segments)
		if len(units) != len(msg.Segments) {
			t.Fatalf("payload %s: %d segments but %d units", payload, len(msg.Segments), len(units))
		}
	}
}

func TestResolveTypeDirectBeforeNested(t *testing.T) {
	segs := coerceSegments([]any{
		map[string]any{"type": "text", "data": map[string]any{"type": "image", "text": "x"}},
		map[string]any{"data": map[string]any{"type": "image"}},
		map[string]any{"type": "", "data": map[string]any{"type": "face"}},
	})
	if segs[0].Type != "text" {
		t.Fatalf("direct type must win, got %q", segs[0].Type)
	}
	if segs[1].Type != "image" {
		t.Fatalf("nested type must apply when direct absent, got %q", segs[1].Type)
	}
	if segs[2].Type != "face" {
		t.Fatalf("empty direct type must fall through, got %q", segs[2].Type)
	}
}
