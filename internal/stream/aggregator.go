// Package stream merges incremental recognizer updates into a stable live
// text value.
//
// Recognizers frequently emit a shorter or empty partial hypothesis before
// re-extending it. Overwriting the displayed text naively makes it flicker.
// The [Aggregator] applies the monotonic buffering rule instead: a candidate
// replaces the current text only when it is non-empty and at least as long
// (in runes) as what is already shown. This trades brief staleness for
// visual stability.
package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

// State is a snapshot of the aggregated live transcription.
type State struct {
	// ConfirmedSegments are the recognizer's committed segments, replaced
	// wholesale on every update.
	ConfirmedSegments []string

	// UnconfirmedSegments are the volatile trailing hypotheses, replaced
	// wholesale on every update.
	UnconfirmedSegments []string

	// CurrentText is the retained best hypothesis under the monotonic rule.
	CurrentText string

	// Active flips true the first time CurrentText becomes non-empty.
	Active bool

	// StartedAt is stamped when Active first flips true.
	StartedAt time.Time
}

// Aggregator folds a sequence of [recognizer.StreamUpdate] values into a
// [State]. Safe for concurrent use.
type Aggregator struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Apply folds one update into the state. Segment lists mirror the update;
// CurrentText follows the monotonic rule.
func (a *Aggregator) Apply(u recognizer.StreamUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.ConfirmedSegments = append(a.state.ConfirmedSegments[:0:0], u.ConfirmedSegments...)
	a.state.UnconfirmedSegments = append(a.state.UnconfirmedSegments[:0:0], u.UnconfirmedSegments...)

	candidate := u.Text
	if candidate == "" {
		return
	}
	if len([]rune(candidate)) < len([]rune(a.state.CurrentText)) {
		return
	}
	a.state.CurrentText = candidate
	if !a.state.Active {
		a.state.Active = true
		a.state.StartedAt = a.now()
	}
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	s.ConfirmedSegments = append([]string(nil), a.state.ConfirmedSegments...)
	s.UnconfirmedSegments = append([]string(nil), a.state.UnconfirmedSegments...)
	return s
}

// FallbackText joins confirmed segments, the current text, and unconfirmed
// segments into the best single string the live pass can offer. The session
// controller captures this before resetting, as the stand-in for an empty
// offline result.
func (a *Aggregator) FallbackText() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := make([]string, 0, len(a.state.ConfirmedSegments)+1+len(a.state.UnconfirmedSegments))
	parts = append(parts, a.state.ConfirmedSegments...)
	if a.state.CurrentText != "" {
		parts = append(parts, a.state.CurrentText)
	}
	parts = append(parts, a.state.UnconfirmedSegments...)

	joined := strings.Join(parts, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(joined), " "))
}

// Reset clears all state. Issued by the session controller at session start
// and at every chunk boundary; nothing else ever removes a segment.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{}
}
