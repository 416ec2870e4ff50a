package transcript

import (
	"context"
	"log/slog"
	"sync"

	"github.com/you/napgram-console/internal/core"
	"github.com/you/napgram-console/internal/viewtrace"
)

// Fetcher retrieves the full merged record list for one identifier from
// the relay backend. A non-nil error maps to the error lifecycle state.
type Fetcher interface {
	MergedMessages(ctx context.Context, identifier string) ([]core.RawRecord, error)
}

// State is the viewing lifecycle of the current identifier.
type State int

const (
	StateLoading State = iota
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the assembler's single view slot.
type Snapshot struct {
	Identifier string
	State      State
	Err        string
	Transcript []core.Rendered
}

// Assembler holds one viewing slot: the latest requested identifier, its
// lifecycle state, and (once ready) its fully rendered transcript.
//
// Requesting a new identifier restarts the lifecycle from any state and
// logically supersedes an in-flight fetch: a response carrying a stale
// generation token is discarded instead of overwriting fresher state.
// Re-requesting the identifier already held does not refetch.
type Assembler struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu         sync.Mutex
	identifier string
	generation uint64
	state      State
	errMsg     string
	transcript []core.Rendered
	done       chan struct{} // closed when the current generation settles
}

// NewAssembler builds an assembler over the given fetcher. logger may be
// nil to use the default.
func NewAssembler(fetcher Fetcher, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{fetcher: fetcher, logger: logger}
}

// Request asks the assembler to view identifier. The returned channel is
// closed once the request's generation has settled (committed or
// superseded); for a repeated identifier it is the channel of the request
// already in progress, already closed when that request has committed.
//
// The fetch runs in its own goroutine; ctx bounds that fetch.
func (a *Assembler) Request(ctx context.Context, identifier string) <-chan struct{} {
	a.mu.Lock()
	if identifier == a.identifier && a.done != nil {
		done := a.done
		a.mu.Unlock()
		return done
	}

	a.generation++
	gen := a.generation
	a.identifier = identifier
	a.state = StateLoading
	a.errMsg = ""
	a.transcript = nil
	done := make(chan struct{})
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		records, err := a.fetcher.MergedMessages(ctx, identifier)

		var (
			rendered []core.Rendered
			trace    *viewtrace.ViewTrace
		)
		if err == nil {
			trace = viewtrace.New(identifier)
			rendered = AssembleTraced(records, trace)
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.generation {
			// A newer identifier superseded this fetch; its result must
			// not commit.
			a.logger.Debug("transcript: discarding stale response", "identifier", identifier)
			return
		}
		if err != nil {
			a.state = StateError
			a.errMsg = err.Error()
			a.logger.Warn("transcript: fetch failed", "identifier", identifier, "err", err)
			return
		}
		a.state = StateReady
		a.transcript = rendered
		trace.LogTrace(a.logger, "transcript: assembled")
	}()

	return done
}

// Snapshot returns a copy of the current slot. The transcript slice is
// shared but never mutated after commit.
func (a *Assembler) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Identifier: a.identifier,
		State:      a.state,
		Err:        a.errMsg,
		Transcript: a.transcript,
	}
}

// View requests identifier and waits for that request to settle or for
// ctx to end, then returns the current snapshot. When the identifier was
// superseded while waiting the snapshot describes the newer one; callers
// should compare Snapshot.Identifier against what they asked for.
func (a *Assembler) View(ctx context.Context, identifier string) (Snapshot, error) {
	done := a.Request(ctx, identifier)
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-done:
	}
	return a.Snapshot(), nil
}
