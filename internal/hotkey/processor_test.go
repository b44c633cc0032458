package hotkey

import (
	"testing"
	"time"
)

var testChord = Chord{Key: "f5", Modifiers: ModCtrl}

func down(at time.Time) Event {
	return Event{Kind: KeyDown, Key: "f5", Modifiers: ModCtrl, At: at}
}

func up(at time.Time) Event {
	return Event{Kind: KeyUp, Key: "f5", At: at}
}

func TestPressHoldRelease(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)
	t0 := time.Now()

	intent, consume := p.Process(down(t0))
	if intent != IntentStart || !consume {
		t.Fatalf("key down: intent = %v consume = %v, want start/true", intent, consume)
	}
	if p.State() != StateArmed {
		t.Fatalf("state = %v, want armed", p.State())
	}

	intent, _ = p.Process(Event{Kind: Timeout, At: t0.Add(250 * time.Millisecond)})
	if intent != IntentNone {
		t.Fatalf("timeout intent = %v, want none", intent)
	}
	if p.State() != StateRecording {
		t.Fatalf("state = %v, want recording", p.State())
	}

	intent, consume = p.Process(up(t0.Add(2 * time.Second)))
	if intent != IntentStop || !consume {
		t.Fatalf("key up: intent = %v consume = %v, want stop/true", intent, consume)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %v, want idle", p.State())
	}
}

func TestDoubleTapLocksHandsFree(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)
	t0 := time.Now()

	p.Process(down(t0))
	intent, consume := p.Process(down(t0.Add(150 * time.Millisecond)))
	if intent != IntentStart || !consume {
		t.Fatalf("second tap: intent = %v consume = %v, want start/true", intent, consume)
	}
	if p.State() != StateHandsFree {
		t.Fatalf("state = %v, want hands-free", p.State())
	}

	// Key-up must not stop a locked session.
	intent, consume = p.Process(up(t0.Add(time.Second)))
	if intent != IntentNone || !consume {
		t.Fatalf("key up while locked: intent = %v consume = %v, want none/true", intent, consume)
	}
	if p.State() != StateHandsFree {
		t.Fatalf("state = %v, want hands-free", p.State())
	}
}

func TestSlowSecondTapIsRepeatNoise(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)
	t0 := time.Now()

	p.Process(down(t0))
	intent, consume := p.Process(down(t0.Add(time.Second)))
	if intent != IntentNone || !consume {
		t.Fatalf("late tap: intent = %v consume = %v, want none/true", intent, consume)
	}
	if p.State() != StateArmed {
		t.Fatalf("state = %v, want armed", p.State())
	}
}

func TestKeyRepeatWhileRecordingConsumed(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)
	t0 := time.Now()

	p.Process(down(t0))
	p.Process(Event{Kind: Timeout, At: t0.Add(250 * time.Millisecond)})

	for i := 0; i < 5; i++ {
		intent, consume := p.Process(down(t0.Add(time.Second + time.Duration(i)*50*time.Millisecond)))
		if intent != IntentNone || !consume {
			t.Fatalf("repeat %d: intent = %v consume = %v, want none/true", i, intent, consume)
		}
	}
	if p.State() != StateRecording {
		t.Fatalf("state = %v, want recording", p.State())
	}
}

func TestEscapeCancels(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)
	t0 := time.Now()

	p.Process(down(t0))
	p.Process(Event{Kind: Timeout, At: t0.Add(250 * time.Millisecond)})

	intent, consume := p.Process(Event{Kind: KeyDown, Key: "escape", At: t0.Add(time.Second)})
	if intent != IntentCancel || !consume {
		t.Fatalf("escape: intent = %v consume = %v, want cancel/true", intent, consume)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %v, want idle", p.State())
	}
}

func TestEscapeWhileIdlePassesThrough(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)

	intent, consume := p.Process(Event{Kind: KeyDown, Key: "escape", At: time.Now()})
	if intent != IntentCancel {
		t.Fatalf("intent = %v, want cancel", intent)
	}
	if consume {
		t.Fatal("escape while idle must pass through")
	}
}

func TestEscapeWithModifiersIgnored(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)

	intent, consume := p.Process(Event{Kind: KeyDown, Key: "escape", Modifiers: ModShift, At: time.Now()})
	if intent != IntentNone || consume {
		t.Fatalf("shift+escape: intent = %v consume = %v, want none/false", intent, consume)
	}
}

func TestUnrelatedKeysPassThrough(t *testing.T) {
	p := New(testChord, 300*time.Millisecond)

	intent, consume := p.Process(Event{Kind: KeyDown, Key: "a", At: time.Now()})
	if intent != IntentNone || consume {
		t.Fatalf("unrelated key: intent = %v consume = %v, want none/false", intent, consume)
	}
	// Same key, different modifiers is not the chord either.
	intent, consume = p.Process(Event{Kind: KeyDown, Key: "f5", Modifiers: ModShift, At: time.Now()})
	if intent != IntentNone || consume {
		t.Fatalf("wrong modifiers: intent = %v consume = %v, want none/false", intent, consume)
	}
}

func TestModifierOnlyChord(t *testing.T) {
	p := New(Chord{Modifiers: ModCtrl | ModAlt}, 300*time.Millisecond)
	t0 := time.Now()

	intent, _ := p.Process(Event{Kind: KeyDown, Modifiers: ModCtrl | ModAlt, At: t0})
	if intent != IntentStart {
		t.Fatalf("modifier chord down: intent = %v, want start", intent)
	}
	p.Process(Event{Kind: Timeout, At: t0.Add(250 * time.Millisecond)})

	intent, _ = p.Process(Event{Kind: KeyUp, At: t0.Add(time.Second)})
	if intent != IntentStop {
		t.Fatalf("modifier chord up: intent = %v, want stop", intent)
	}
}
