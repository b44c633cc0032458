// Package hotkey converts raw key-chord edges into semantic dictation
// intents.
//
// The [Processor] is a pure finite-state machine: given the configured chord
// and the current state, each [Event] maps deterministically to an [Intent]
// and a consume/pass-through decision. All side effects — actually starting
// capture after the debounce window, stopping streams — belong to the caller.
package hotkey

import (
	"strings"
	"time"
)

// Modifier is a bitmask of modifier flags held during a key event.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModCmd
	ModFn
)

// ParseModifiers converts config flag names into a Modifier mask.
// Unknown names are ignored.
func ParseModifiers(names []string) Modifier {
	var m Modifier
	for _, n := range names {
		switch strings.ToLower(n) {
		case "ctrl":
			m |= ModCtrl
		case "alt":
			m |= ModAlt
		case "shift":
			m |= ModShift
		case "cmd":
			m |= ModCmd
		case "fn":
			m |= ModFn
		}
	}
	return m
}

// Chord is the configured push-to-talk key combination.
type Chord struct {
	// Key is the literal key name, or empty for a modifier-only chord.
	Key string

	// Modifiers is the required modifier mask.
	Modifiers Modifier
}

// ModifierOnly reports whether the chord has no literal key. Modifier-only
// chords are easy to trip accidentally, so short recordings made with them
// are discarded by the session controller.
func (c Chord) ModifierOnly() bool { return c.Key == "" }

// matches reports whether ev is exactly this chord.
func (c Chord) matches(ev Event) bool {
	return strings.EqualFold(ev.Key, c.Key) && ev.Modifiers == c.Modifiers
}

// EventKind distinguishes the edges the processor reacts to.
type EventKind int

const (
	// KeyDown is a key-press edge.
	KeyDown EventKind = iota

	// KeyUp is a key-release edge.
	KeyUp

	// Timeout signals that the caller's debounce delay elapsed with the
	// chord still held, committing the armed state to a real recording.
	Timeout
)

// Event is one raw key edge (or timeout) fed to the processor.
type Event struct {
	Kind      EventKind
	Key       string
	Modifiers Modifier
	At        time.Time
}

// Intent is the semantic action derived from an event.
type Intent int

const (
	// IntentNone means the event does not concern dictation.
	IntentNone Intent = iota

	// IntentStart requests recording to begin (after the caller's debounce).
	IntentStart

	// IntentStop requests the session finalize and deliver its output.
	IntentStop

	// IntentCancel requests the session be discarded.
	IntentCancel
)

// String returns the intent name for logs.
func (i Intent) String() string {
	switch i {
	case IntentStart:
		return "start"
	case IntentStop:
		return "stop"
	case IntentCancel:
		return "cancel"
	default:
		return "none"
	}
}

// State is the processor's position in the chord lifecycle.
type State int

const (
	// StateIdle: no chord activity.
	StateIdle State = iota

	// StateArmed: chord is down, double-tap window still open.
	StateArmed

	// StateRecording: chord held past the debounce; releasing stops.
	StateRecording

	// StateHandsFree: double-tap locked; key-up is ignored until an
	// explicit stop or cancel.
	StateHandsFree
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StateHandsFree:
		return "hands-free"
	default:
		return "idle"
	}
}

const escapeKey = "escape"

// Processor is the chord finite-state machine. It is not safe for concurrent
// use; callers serialise events through a single goroutine, which is how key
// taps deliver them anyway.
type Processor struct {
	chord     Chord
	tapWindow time.Duration

	state      State
	lastDownAt time.Time
}

// New creates a Processor for chord with the given double-tap window.
func New(chord Chord, tapWindow time.Duration) *Processor {
	return &Processor{chord: chord, tapWindow: tapWindow}
}

// State returns the current FSM state.
func (p *Processor) State() State { return p.state }

// Reset forces the processor back to idle. The session controller calls this
// after a stop or cancel completes so a stale armed state cannot linger.
func (p *Processor) Reset() { p.state = StateIdle }

// Process maps one event to an intent. consume reports whether the event
// should be swallowed rather than passed on to the focused application.
//
// Rules:
//   - Chord key-down while idle arms the FSM and emits [IntentStart]; the
//     caller delays actual capture by its debounce so a second tap can still
//     lock hands-free mode.
//   - A second chord key-down within the double-tap window locks hands-free
//     mode and emits [IntentStart] again, telling the caller to commit
//     immediately instead of waiting out the debounce.
//   - Chord key-up while armed or recording emits [IntentStop]. In
//     hands-free mode key-up is swallowed without effect.
//   - [Timeout] while armed commits to recording, no intent.
//   - Escape with no modifiers emits [IntentCancel]; it is consumed only
//     while a session is in flight.
//   - A chord key-down repeating while already recording is key-repeat
//     noise: consumed, no intent. Everything else passes through untouched.
func (p *Processor) Process(ev Event) (intent Intent, consume bool) {
	switch ev.Kind {
	case KeyDown:
		return p.keyDown(ev)
	case KeyUp:
		return p.keyUp(ev)
	case Timeout:
		if p.state == StateArmed {
			p.state = StateRecording
		}
		return IntentNone, false
	}
	return IntentNone, false
}

func (p *Processor) keyDown(ev Event) (Intent, bool) {
	if strings.EqualFold(ev.Key, escapeKey) && ev.Modifiers == 0 {
		consumed := p.state != StateIdle
		p.state = StateIdle
		return IntentCancel, consumed
	}

	if !p.chord.matches(ev) {
		return IntentNone, false
	}

	switch p.state {
	case StateIdle:
		p.state = StateArmed
		p.lastDownAt = ev.At
		return IntentStart, true

	case StateArmed:
		if !p.lastDownAt.IsZero() && ev.At.Sub(p.lastDownAt) <= p.tapWindow {
			p.state = StateHandsFree
			return IntentStart, true
		}
		// Key repeat before the debounce resolved.
		return IntentNone, true

	case StateRecording, StateHandsFree:
		// OS key repeat of the held chord.
		return IntentNone, true
	}
	return IntentNone, false
}

func (p *Processor) keyUp(ev Event) (Intent, bool) {
	// Key-up comparison ignores modifiers: releasing the chord's literal key
	// usually reports a reduced modifier mask because modifiers lift in
	// arbitrary order. Modifier-only chords release via a flags-changed
	// event, which carries no key name.
	var match bool
	if p.chord.ModifierOnly() {
		match = ev.Key == ""
	} else {
		match = strings.EqualFold(ev.Key, p.chord.Key)
	}
	if !match {
		return IntentNone, false
	}

	switch p.state {
	case StateArmed, StateRecording:
		p.state = StateIdle
		return IntentStop, true
	case StateHandsFree:
		return IntentNone, true
	}
	return IntentNone, false
}
