package viewtrace

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
)

// Stage labels one step of the transcript pipeline for counting.
type Stage string

const (
	StageRecordsFetched   Stage = "records_fetched"
	StageNormalized       Stage = "normalized"
	StageSegmentsRendered Stage = "segments_rendered"

	// Fallback stages count how often the tolerant paths fired; a spike
	// usually means a relay adapter changed its record shape.
	StagePlaceholderSender Stage = "placeholder_sender"
	StageUnknownSegment    Stage = "unknown_segment"
)

// ViewTrace captures counters for one transcript assembly pass, keyed by
// the viewing identifier.
type ViewTrace struct {
	Identifier string
	TraceID    string

	mu       sync.Mutex
	counters map[Stage]int64
}

// New constructs a trace for one viewing identifier.
func New(identifier string) *ViewTrace {
	return &ViewTrace{
		Identifier: identifier,
		TraceID:    computeTraceID(identifier),
		counters:   make(map[Stage]int64),
	}
}

// Add increments the counter for a stage by n and returns the new value.
func (t *ViewTrace) Add(stage Stage, n int64) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[stage] += n
	return t.counters[stage]
}

// LogTrace emits the trace through structured logging.
func (t *ViewTrace) LogTrace(logger *slog.Logger, msg string) {
	if t == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info(msg,
		"trace_id", t.TraceID,
		"identifier", t.Identifier,
		"counters", t.snapshotCounters(),
	)
}

func (t *ViewTrace) snapshotCounters() map[Stage]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Stage]int64, len(t.counters))
	for stage, count := range t.counters {
		out[stage] = count
	}
	return out
}

func computeTraceID(identifier string) string {
	digest := sha256.Sum256([]byte("merged\x1f" + identifier))
	return hex.EncodeToString(digest[:8])
}
