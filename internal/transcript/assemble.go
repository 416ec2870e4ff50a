// Package transcript turns raw merged-message batches into ordered,
// fully rendered transcripts and manages the fetch lifecycle for the
// viewing surface.
package transcript

import (
	"github.com/you/napgram-console/internal/core"
	"github.com/you/napgram-console/internal/msgview"
	"github.com/you/napgram-console/internal/viewtrace"
)

// Assemble runs every record through normalization, segment rendering and
// color assignment, preserving input order. It is pure and single-pass;
// the result is complete before it returns, so a caller can hand it to
// the display surface without further computation.
func Assemble(records []core.RawRecord) []core.Rendered {
	return AssembleTraced(records, nil)
}

// AssembleTraced is Assemble with pipeline counters recorded on trace.
// A nil trace disables counting.
func AssembleTraced(records []core.RawRecord, trace *viewtrace.ViewTrace) []core.Rendered {
	trace.Add(viewtrace.StageRecordsFetched, int64(len(records)))

	out := make([]core.Rendered, len(records))
	for i, rec := range records {
		msg := msgview.Normalize(rec, i)
		units := msgview.RenderSegments(msg.Segments)

		trace.Add(viewtrace.StageNormalized, 1)
		trace.Add(viewtrace.StageSegmentsRendered, int64(len(units)))
		if msg.SenderID == msgview.PlaceholderID(i) {
			trace.Add(viewtrace.StagePlaceholderSender, 1)
		}
		for j, u := range units {
			if u.Kind == core.UnitInline && msg.Segments[j].Type == "" {
				trace.Add(viewtrace.StageUnknownSegment, 1)
			}
		}

		out[i] = core.Rendered{
			Message: msg,
			Units:   units,
			Scheme:  msgview.SchemeFor(msg.SenderID),
		}
	}
	return out
}
