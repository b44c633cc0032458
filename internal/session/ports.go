// Package session contains the dictation orchestrator: it owns the
// recording lifecycle, wires hotkey intents and silence signals to capture
// start/stop, runs the offline transcription pass on finished chunks,
// routes results through enhancement, and delivers the final text.
package session

import (
	"context"

	"github.com/voxhold/voxhold/internal/hotkey"
)

// Pasteboard inserts text into whatever application currently has focus.
type Pasteboard interface {
	Paste(text string) error
}

// Overlay is the edit-review window shown instead of pasting directly.
// The user reviews (and possibly edits) the text there before it is
// committed; edits flow back to the correction-learning engine.
type Overlay interface {
	// Show opens the overlay with text, replacing any prior content.
	Show(text string) error

	// Append adds text to an already-open overlay.
	Append(text string) error

	// Visible reports whether the overlay is currently open.
	Visible() bool
}

// ScreenCapture grabs a screenshot of the frontmost screen for
// dictation-context analysis.
type ScreenCapture interface {
	// Authorized reports whether screen-recording permission is granted.
	// When false, Capture must not be called; context capture is skipped.
	Authorized() bool

	// Capture returns PNG or JPEG bytes of the current screen.
	Capture(ctx context.Context) ([]byte, error)
}

// KeyMonitor delivers raw key events while a session is active, used to
// watch for the manual chunk-finalize key. The channel closes when ctx is
// cancelled.
type KeyMonitor interface {
	Listen(ctx context.Context) (<-chan hotkey.Event, error)
}

// Events is the UI-facing notification sink. All callbacks are invoked
// from the controller's goroutines; implementations must be quick and must
// not call back into the controller synchronously.
type Events interface {
	// RecordingChanged fires when capture starts or stops.
	RecordingChanged(active bool)

	// LiveTextChanged fires on every accepted live-transcript update.
	LiveTextChanged(text string)

	// TranscriptChanged fires after every mutation of the chunk transcript.
	TranscriptChanged(lines []Line)

	// Delivered fires after final text has been pasted or handed to the
	// overlay.
	Delivered(text string, enhanced bool)

	// Advisory surfaces a non-fatal, user-visible notice such as the
	// long-recording/short-result warning.
	Advisory(message string)
}

// NopEvents discards every notification. Useful as a default sink.
type NopEvents struct{}

var _ Events = NopEvents{}

func (NopEvents) RecordingChanged(bool)    {}
func (NopEvents) LiveTextChanged(string)   {}
func (NopEvents) TranscriptChanged([]Line) {}
func (NopEvents) Delivered(string, bool)   {}
func (NopEvents) Advisory(string)          {}
