package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LineKind discriminates the transcript line variants.
type LineKind int

const (
	// LineTranscription is a finalized chunk transcript.
	LineTranscription LineKind = iota

	// LineLive is the in-progress live transcript since the last boundary.
	LineLive

	// LineSeparator is a chunk-boundary marker, optionally carrying a
	// processing status while the chunk is still in flight.
	LineSeparator

	// LineSessionStart and LineSessionEnd bracket one dictation session.
	LineSessionStart
	LineSessionEnd
)

// Status is the in-flight state shown on a separator line.
type Status string

const (
	StatusNone         Status = ""
	StatusTranscribing Status = "transcribing"
	StatusEnhancing    Status = "enhancing"
)

// Line is one display line of the session transcript. Identity is stable:
// a line keeps its ID across in-place updates so the view layer can animate
// changes rather than rebuild.
type Line struct {
	ID          string
	Kind        LineKind
	Text        string
	Highlighted bool
	Status      Status
	At          time.Time
}

// Transcript is the ordered sequence of lines for one continuous dictation
// session. Mutations are append, in-place update, and bounded removal; lines
// are never reordered. Safe for concurrent use.
type Transcript struct {
	mu    sync.Mutex
	lines []Line
	max   int
	now   func() time.Time
}

// NewTranscript creates a transcript retaining at most max lines; older
// lines are dropped from the front as new ones are appended. max <= 0 means
// unbounded.
func NewTranscript(max int) *Transcript {
	return &Transcript{max: max, now: time.Now}
}

// Append adds a line of the given kind and returns its ID.
func (t *Transcript) Append(kind LineKind, text string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := Line{
		ID:   uuid.NewString(),
		Kind: kind,
		Text: text,
		At:   t.now(),
	}
	t.lines = append(t.lines, line)
	t.trimLocked()
	return line.ID
}

// AppendSeparator adds a separator line carrying status and returns its ID.
func (t *Transcript) AppendSeparator(status Status) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := Line{
		ID:     uuid.NewString(),
		Kind:   LineSeparator,
		Status: status,
		At:     t.now(),
	}
	t.lines = append(t.lines, line)
	t.trimLocked()
	return line.ID
}

// SetText updates the text of the line with the given ID in place.
// Unknown IDs are ignored.
func (t *Transcript) SetText(id, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.lines {
		if t.lines[i].ID == id {
			t.lines[i].Text = text
			return
		}
	}
}

// SetStatus updates the processing status of the line with the given ID.
func (t *Transcript) SetStatus(id string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.lines {
		if t.lines[i].ID == id {
			t.lines[i].Status = status
			return
		}
	}
}

// SetHighlighted marks exactly one transcription line as highlighted,
// clearing the flag on every other line.
func (t *Transcript) SetHighlighted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.lines {
		t.lines[i].Highlighted = t.lines[i].ID == id
	}
}

// Remove deletes the line with the given ID, preserving order of the rest.
func (t *Transcript) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.lines {
		if t.lines[i].ID == id {
			t.lines = append(t.lines[:i], t.lines[i+1:]...)
			return
		}
	}
}

// Lines returns a copy of the current line sequence.
func (t *Transcript) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// LastTranscription returns the text of the most recent finalized chunk,
// or the empty string if none exists.
func (t *Transcript) LastTranscription() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.lines) - 1; i >= 0; i-- {
		if t.lines[i].Kind == LineTranscription {
			return t.lines[i].Text
		}
	}
	return ""
}

// Clear drops every line.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
}

func (t *Transcript) trimLocked() {
	if t.max > 0 && len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}
