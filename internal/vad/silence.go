// Package vad detects chunk boundaries from audio level metering.
//
// The [Detector] watches the capture level meter and raises a boundary
// signal after a sustained quiet period that follows detected speech. It is
// deliberately simple — threshold on average/peak power plus a single
// delayed check — because the level meter is already smoothed by the audio
// engine.
package vad

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voxhold/voxhold/pkg/audio"
)

// Config tunes a [Detector].
type Config struct {
	// Threshold is the normalised power level below which a sample counts
	// as silence.
	Threshold float64

	// Window is the sustained quiet period after speech that triggers a
	// boundary.
	Window time.Duration
}

// Detector raises chunk-boundary signals. All methods are safe for
// concurrent use.
//
// The boundary callback runs on a timer goroutine (or the caller of
// [Detector.TriggerNow]); it must be quick and must not call back into the
// detector.
type Detector struct {
	cfg  Config
	emit func()
	now  func() time.Time

	mu         sync.Mutex
	monitoring bool
	lastSpeech time.Time
	lastBelow  bool
	pending    *time.Timer
}

// New creates a Detector that calls emit once per detected boundary.
func New(cfg Config, emit func()) *Detector {
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Second
	}
	return &Detector{cfg: cfg, emit: emit, now: time.Now}
}

// Start begins monitoring. Samples observed while stopped are ignored.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monitoring = true
	d.lastSpeech = time.Time{}
	d.lastBelow = false
}

// Stop halts monitoring and cancels any pending silence check.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monitoring = false
	d.cancelPending()
	d.lastSpeech = time.Time{}
}

// Observe feeds one level-meter sample to the detector.
//
// A sample above the threshold records fresh speech and cancels any pending
// silence check. A sample below the threshold, after speech was seen, arms a
// delayed check; when that check fires with the level still low and the
// quiet period fully elapsed, exactly one boundary is emitted and the speech
// marker is cleared so the next boundary needs fresh speech first.
func (d *Detector) Observe(s audio.LevelSample) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.monitoring {
		return
	}

	at := s.At
	if at.IsZero() {
		at = d.now()
	}

	if s.AveragePower > d.cfg.Threshold || s.PeakPower > d.cfg.Threshold {
		d.lastSpeech = at
		d.lastBelow = false
		d.cancelPending()
		return
	}

	d.lastBelow = true
	if d.lastSpeech.IsZero() || d.pending != nil {
		return
	}
	d.pending = time.AfterFunc(d.cfg.Window, d.check)
}

// TriggerNow forces a boundary immediately, bypassing the timer. Silence
// tracking state is cleared so the timer path cannot double-finalize the
// same chunk.
func (d *Detector) TriggerNow() {
	d.mu.Lock()
	if !d.monitoring {
		d.mu.Unlock()
		return
	}
	d.cancelPending()
	d.lastSpeech = time.Time{}
	d.lastBelow = false
	d.mu.Unlock()

	slog.Debug("chunk boundary (manual)")
	d.emit()
}

// check is the delayed silence verification.
func (d *Detector) check() {
	d.mu.Lock()
	d.pending = nil
	if !d.monitoring || d.lastSpeech.IsZero() || !d.lastBelow {
		d.mu.Unlock()
		return
	}
	elapsed := d.now().Sub(d.lastSpeech)
	if elapsed < d.cfg.Window {
		// Speech happened after the timer was armed but was not loud enough
		// to cancel it; re-arm for the remainder.
		d.pending = time.AfterFunc(d.cfg.Window-elapsed, d.check)
		d.mu.Unlock()
		return
	}
	d.lastSpeech = time.Time{}
	d.mu.Unlock()

	slog.Debug("chunk boundary (silence)", "window", d.cfg.Window)
	d.emit()
}

// cancelPending must be called with d.mu held.
func (d *Detector) cancelPending() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
