// Package pacer is the cooperative execution governor shared by every
// capture traversal phase. It meters progress, decides when the walk must
// yield the host goroutine, and enforces the node-count and wall-clock
// abort limits.
package pacer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// DefaultYieldEvery is the count-based yield granularity when no time
// budget is configured.
const DefaultYieldEvery = 50

// Reason is the closed set of abort causes.
type Reason int

const (
	ReasonTimeout Reason = iota
	ReasonMaxNodes
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonMaxNodes:
		return "max-nodes-exceeded"
	default:
		return "unknown"
	}
}

// Sentinels matching the two abort reasons, for errors.Is callers.
var (
	ErrTimeout  = errors.New("capture timeout exceeded")
	ErrMaxNodes = errors.New("capture node cap exceeded")
)

// AbortError is the fatal, whole-capture-unwinding outcome. It is raised
// at most meaningfully once per capture; no partial result survives it.
type AbortError struct {
	Reason Reason
	Msg    string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pacer: capture aborted (%s): %s", e.Reason, e.Msg)
}

// Unwrap maps the reason onto its sentinel.
func (e *AbortError) Unwrap() error {
	switch e.Reason {
	case ReasonTimeout:
		return ErrTimeout
	case ReasonMaxNodes:
		return ErrMaxNodes
	default:
		return nil
	}
}

// Yielder suspends the current step and resumes on a later host scheduler
// turn. Implementations must not reorder writes to the traversal Context
// (trivially satisfied: the walk is single-goroutine).
type Yielder interface {
	Yield()
}

// GoscheduleYielder defers to the Go runtime scheduler.
type GoscheduleYielder struct{}

func (GoscheduleYielder) Yield() { runtime.Gosched() }

// Context is the mutable traversal state of exactly one in-flight capture.
// It is owned by a single goroutine and must never be shared between
// concurrent captures.
type Context struct {
	Processed int       // monotonic non-decreasing node counter
	Total     int       // estimated total node count, for progress
	Start     time.Time // capture start, timeout reference
	LastYield time.Time // last suspension, time-budget reference

	// Now is the clock; nil means time.Now. Injectable for tests.
	Now func() time.Time
}

// NewContext builds a traversal context for one capture.
func NewContext(total int) *Context {
	now := time.Now()
	return &Context{Total: total, Start: now, LastYield: now}
}

func (tc *Context) now() time.Time {
	if tc.Now != nil {
		return tc.Now()
	}
	return time.Now()
}

// Limits is the immutable per-capture governor configuration.
type Limits struct {
	MaxNodes    int           // hard node cap, 0 = unlimited
	Timeout     time.Duration // wall-clock cap, 0 = unlimited
	NonBlocking bool          // enables cooperative yielding
	YieldEvery  int           // count granularity, default DefaultYieldEvery
	YieldBudget time.Duration // time granularity, overrides YieldEvery when set
	OnProgress  func(done, total int)
	Yielder     Yielder // default GoscheduleYielder
}

func (l Limits) yielder() Yielder {
	if l.Yielder != nil {
		return l.Yielder
	}
	return GoscheduleYielder{}
}

// Tick is called once per node visited, across all traversal phases.
// It increments the processed counter, reports progress, and suspends
// when the configured granularity is reached. Host-context cancellation
// is observed here too, at the same latency as the abort limits.
func Tick(ctx context.Context, tc *Context, lim Limits) error {
	tc.Processed++

	if lim.OnProgress != nil && tc.Total > 0 {
		done := tc.Processed
		if done > tc.Total {
			done = tc.Total
		}
		lim.OnProgress(done, tc.Total)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if !lim.NonBlocking {
		return nil
	}
	if lim.YieldBudget > 0 {
		if tc.now().Sub(tc.LastYield) >= lim.YieldBudget {
			tc.LastYield = tc.now()
			lim.yielder().Yield()
		}
		return nil
	}
	every := lim.YieldEvery
	if every <= 0 {
		every = DefaultYieldEvery
	}
	if tc.Processed%every == 0 {
		tc.LastYield = tc.now()
		lim.yielder().Yield()
	}
	return nil
}

// CheckLimits raises the abort outcome when a configured cap is breached.
// The node-count cap is evaluated before the timeout: when both are
// breached in the same step, MaxNodesExceeded wins.
func CheckLimits(tc *Context, lim Limits) error {
	if lim.MaxNodes > 0 && tc.Processed >= lim.MaxNodes {
		return &AbortError{
			Reason: ReasonMaxNodes,
			Msg:    fmt.Sprintf("processed %d nodes, cap %d", tc.Processed, lim.MaxNodes),
		}
	}
	if lim.Timeout > 0 && tc.now().Sub(tc.Start) >= lim.Timeout {
		return &AbortError{
			Reason: ReasonTimeout,
			Msg:    fmt.Sprintf("exceeded %s", lim.Timeout),
		}
	}
	return nil
}

// Preflight aborts before any traversal (and before any asynchronous
// resource work is scheduled) when the cheap node-count estimate already
// exceeds the cap.
func Preflight(estimate int, lim Limits) error {
	if lim.MaxNodes > 0 && estimate > lim.MaxNodes {
		return &AbortError{
			Reason: ReasonMaxNodes,
			Msg:    fmt.Sprintf("estimated %d nodes, cap %d", estimate, lim.MaxNodes),
		}
	}
	return nil
}

// YieldNow suspends unconditionally when cooperative mode is active.
// The chunked raster path uses it between strip groups.
func YieldNow(tc *Context, lim Limits) {
	if !lim.NonBlocking {
		return
	}
	tc.LastYield = tc.now()
	lim.yielder().Yield()
}
