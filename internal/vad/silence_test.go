package vad

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxhold/voxhold/pkg/audio"
)

const testWindow = 40 * time.Millisecond

func newTestDetector(t *testing.T) (*Detector, *atomic.Int32) {
	t.Helper()
	var boundaries atomic.Int32
	d := New(Config{Threshold: 0.06, Window: testWindow}, func() {
		boundaries.Add(1)
	})
	d.Start()
	return d, &boundaries
}

func speech() audio.LevelSample  { return audio.LevelSample{AveragePower: 0.5, PeakPower: 0.6} }
func silence() audio.LevelSample { return audio.LevelSample{AveragePower: 0.02, PeakPower: 0.03} }

func waitFor(t *testing.T, boundaries *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if boundaries.Load() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("boundaries = %d, want %d", boundaries.Load(), want)
}

func TestSustainedSilenceAfterSpeechEmitsOneBoundary(t *testing.T) {
	d, boundaries := newTestDetector(t)
	defer d.Stop()

	// Speech at t=0, then continuous silence: exactly one boundary.
	d.Observe(speech())
	for i := 0; i < 4; i++ {
		d.Observe(silence())
		time.Sleep(testWindow / 3)
	}
	waitFor(t, boundaries, 1)

	// Further silence without fresh speech must not re-trigger.
	for i := 0; i < 4; i++ {
		d.Observe(silence())
		time.Sleep(testWindow / 3)
	}
	time.Sleep(2 * testWindow)
	if got := boundaries.Load(); got != 1 {
		t.Fatalf("boundaries = %d, want 1 (no boundary without fresh speech)", got)
	}
}

func TestSpeechBlipResetsWindow(t *testing.T) {
	d, boundaries := newTestDetector(t)
	defer d.Stop()

	d.Observe(speech())
	d.Observe(silence())
	time.Sleep(testWindow / 2)

	// A brief blip before the window elapses restarts silence tracking.
	d.Observe(speech())
	time.Sleep(testWindow / 2)
	if got := boundaries.Load(); got != 0 {
		t.Fatalf("boundaries = %d after blip, want 0", got)
	}

	d.Observe(silence())
	waitFor(t, boundaries, 1)
}

func TestSilenceWithoutSpeechNeverTriggers(t *testing.T) {
	d, boundaries := newTestDetector(t)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Observe(silence())
		time.Sleep(testWindow / 4)
	}
	time.Sleep(2 * testWindow)
	if got := boundaries.Load(); got != 0 {
		t.Fatalf("boundaries = %d, want 0", got)
	}
}

func TestManualTriggerBypassesTimer(t *testing.T) {
	d, boundaries := newTestDetector(t)
	defer d.Stop()

	d.Observe(speech())
	d.Observe(silence())
	d.TriggerNow()
	waitFor(t, boundaries, 1)

	// Manual trigger cleared tracking state: the armed timer must not
	// double-finalize.
	time.Sleep(2 * testWindow)
	if got := boundaries.Load(); got != 1 {
		t.Fatalf("boundaries = %d, want 1 (no double finalization)", got)
	}
}

func TestStoppedDetectorIsInert(t *testing.T) {
	d, boundaries := newTestDetector(t)
	d.Stop()

	d.Observe(speech())
	d.Observe(silence())
	d.TriggerNow()
	time.Sleep(2 * testWindow)
	if got := boundaries.Load(); got != 0 {
		t.Fatalf("boundaries = %d, want 0 while stopped", got)
	}
}
