package msgview

import (
	"strings"

	"github.com/you/napgram-console/internal/core"
)

// Segment tags with dedicated render rules. Any other tag (or a missing
// one) goes through the unknown arm, so new upstream segment kinds
// degrade to a visible bracketed marker instead of breaking the
// transcript.
const (
	TagText      = "text"
	TagImage     = "image"
	TagFlash     = "flash"
	TagBFace     = "bface"
	TagVideo     = "video"
	TagVideoLoop = "video-loop"
	TagRecord    = "record"
	TagFace      = "face"
	TagSFace     = "sface"
	TagAt        = "at"
)

// nbsp keeps empty text lines occupying vertical space in the transcript.
const nbsp = " "

const voiceLabel = "[语音]"

// RenderSegments produces exactly one display unit per segment, in input
// order. It never panics: every arm, including the unknown one, is total
// over malformed payloads.
func RenderSegments(segs []core.Segment) []core.Unit {
	units := make([]core.Unit, len(segs))
	for i, seg := range segs {
		units[i] = renderSegment(seg)
	}
	return units
}

func renderSegment(seg core.Segment) core.Unit {
	switch seg.Type {
	case TagText:
		return core.Unit{Kind: core.UnitLines, Lines: splitLines(textValue(seg))}
	case TagImage, TagFlash, TagBFace:
		if url := mediaURL(seg); url != "" {
			return core.Unit{Kind: core.UnitImage, URL: url}
		}
		return core.Unit{Kind: core.UnitInline, Label: "[image]"}
	case TagVideo, TagVideoLoop:
		return core.Unit{Kind: core.UnitLink, Label: "[video]", URL: mediaURL(seg)}
	case TagRecord:
		return core.Unit{Kind: core.UnitLink, Label: voiceLabel, URL: mediaURL(seg)}
	case TagFace, TagSFace, TagAt:
		return core.Unit{Kind: core.UnitInline, Label: "[" + seg.Type + ": " + idValue(seg) + "]"}
	default:
		tag := seg.Type
		if tag == "" {
			tag = "unknown"
		}
		return core.Unit{Kind: core.UnitInline, Label: "[" + tag + "]"}
	}
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = nbsp
		}
	}
	return lines
}

// textValue resolves the text payload with nullish fallback: the data
// object first, the segment itself second.
func textValue(seg core.Segment) string {
	if seg.Data != nil {
		if v, ok := seg.Data["text"]; ok && v != nil {
			return stringify(v)
		}
	}
	if v, ok := seg.Raw["text"]; ok && v != nil {
		return stringify(v)
	}
	return ""
}

// mediaURL resolves a media reference through the historical field order:
// data.url, data.file, then the same two fields on the segment itself.
// Older adapters put the cached file path where newer ones put a URL, so
// both names are live.
func mediaURL(seg core.Segment) string {
	for _, src := range []map[string]any{seg.Data, seg.Raw} {
		if src == nil {
			continue
		}
		for _, key := range []string{"url", "file"} {
			if v, ok := src[key]; ok && truthy(v) {
				return stringify(v)
			}
		}
	}
	return ""
}

// idValue resolves the face/at payload: id then text, read from the data
// object when one exists and from the segment itself otherwise.
func idValue(seg core.Segment) string {
	src := seg.Data
	if src == nil {
		src = seg.Raw
	}
	for _, key := range []string{"id", "text"} {
		if v, ok := src[key]; ok && truthy(v) {
			return stringify(v)
		}
	}
	return ""
}
