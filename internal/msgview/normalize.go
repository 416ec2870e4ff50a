// Package msgview is the pure merged-message pipeline: it normalizes the
// loosely shaped records returned by the relay backend into one canonical
// message form, assigns stable per-sender colors, and renders content
// segments into display units. Nothing in this package performs I/O and
// nothing in it fails: every extraction step has a defined fallback, so a
// transcript always renders even when one upstream adapter produced a
// shape no current adapter would.
package msgview

import (
	"fmt"
	"strconv"

	"github.com/you/napgram-console/internal/core"
)

// UnknownUserName is the display-name placeholder used when no sender
// name field resolves; it matches what the legacy web viewer showed.
const UnknownUserName = "未知用户"

const avatarPathPrefix = "/api/avatar/qq/"

// accessor reads one candidate source field from a raw record.
type accessor func(rec core.RawRecord) (any, bool)

func field(name string) accessor {
	return func(rec core.RawRecord) (any, bool) {
		v, ok := rec[name]
		return v, ok
	}
}

func nestedField(outer, inner string) accessor {
	return func(rec core.RawRecord) (any, bool) {
		m, ok := rec[outer].(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[inner]
		return v, ok
	}
}

// The fallback order per target field is data, not control flow, so it can
// be inspected and tested on its own. Order matters: earlier adapters wrote
// user_id/nickname; the forward-history importer wrote sender_id/card; the
// newest adapter nests everything under sender.
var (
	senderIDChain    = []accessor{field("user_id"), field("sender_id"), nestedField("sender", "id")}
	displayNameChain = []accessor{field("nickname"), field("card"), nestedField("sender", "name")}
)

// PlaceholderID is the positional sender id assigned to records carrying
// no sender identity at all. Distinct positions get distinct placeholders,
// which keeps anonymous senders visually distinguishable.
func PlaceholderID(idx int) string {
	return "user" + strconv.Itoa(idx)
}

// Normalize derives the canonical message from one raw record at position
// idx. It is total: any JSON-decodable input produces a valid Message, and
// normalizing the same record at the same position twice yields identical
// results.
func Normalize(rec core.RawRecord, idx int) core.Message {
	placeholder := PlaceholderID(idx)
	m := core.Message{
		SenderID:    placeholder,
		DisplayName: UnknownUserName,
	}

	if id, ok := firstID(rec, senderIDChain); ok {
		m.SenderID = id
	}
	if name, ok := firstTruthy(rec, displayNameChain); ok {
		m.DisplayName = stringify(name)
	}

	if v, ok := rec["avatar"]; ok && truthy(v) {
		m.AvatarURL = stringify(v)
	} else if m.SenderID != placeholder {
		m.AvatarURL = avatarPathPrefix + m.SenderID
	}

	if t, ok := numberOf(rec["time"]); ok {
		m.Time = t
		m.HasTime = true
	}

	m.Segments = coerceSegments(rec["message"])
	return m
}

// firstID walks the sender-id chain with nullish semantics: any present
// non-nil value wins, including numeric zero. A value that stringifies to
// "" is treated as absent so the placeholder invariant holds.
func firstID(rec core.RawRecord, chain []accessor) (string, bool) {
	for _, get := range chain {
		v, ok := get(rec)
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s, true
		}
	}
	return "", false
}

// firstTruthy walks a chain with the legacy viewer's truthiness rules:
// empty strings and numeric zero fall through to the next candidate.
func firstTruthy(rec core.RawRecord, chain []accessor) (any, bool) {
	for _, get := range chain {
		if v, ok := get(rec); ok && truthy(v) {
			return v, true
		}
	}
	return nil, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		// Objects and arrays are always truthy.
		return true
	}
}

// stringify formats a field value the way the record's producers did:
// integral floats come out without a decimal point, so user_id 123 from a
// JSON decode becomes "123".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// coerceSegments turns the raw content field into a segment slice. A
// non-array value (or a missing field) coerces to an empty slice; array
// entries that are not objects become tagless segments and render through
// the unknown arm.
func coerceSegments(v any) []core.Segment {
	arr, ok := v.([]any)
	if !ok {
		return []core.Segment{}
	}
	segs := make([]core.Segment, len(arr))
	for i, entry := range arr {
		raw, ok := entry.(map[string]any)
		if !ok {
			segs[i] = core.Segment{}
			continue
		}
		seg := core.Segment{Raw: raw}
		if data, ok := raw["data"].(map[string]any); ok {
			seg.Data = data
		}
		seg.Type = resolveType(seg)
		segs[i] = seg
	}
	return segs
}

// resolveType reads the declared segment tag: the direct type field is
// tried first, the nested data.type only when the direct one is absent or
// empty. The order is deliberate and observable when both disagree.
func resolveType(seg core.Segment) string {
	if v, ok := seg.Raw["type"]; ok && truthy(v) {
		return stringify(v)
	}
	if seg.Data != nil {
		if v, ok := seg.Data["type"]; ok && truthy(v) {
			return stringify(v)
		}
	}
	return ""
}
