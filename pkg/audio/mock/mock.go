// Package mock provides an in-memory [audio.Engine] for tests.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxhold/voxhold/pkg/audio"
)

// Engine is a scriptable in-memory capture backend. Tests push level samples
// with [Engine.EmitLevel] and preload the recording returned on stop with
// [Engine.SetSamples].
type Engine struct {
	mu        sync.Mutex
	recording bool
	startedAt time.Time
	samples   []float32
	rate      int
	levelCh   chan audio.LevelSample
	audioCh   chan []byte

	// StartErr, when non-nil, is returned by StartRecording.
	StartErr error

	// Starts counts StartRecording calls.
	Starts int

	// Splits counts SplitRecording calls.
	Splits int
}

var _ audio.Engine = (*Engine)(nil)

// New returns a mock Engine with a 16 kHz sample rate.
func New() *Engine {
	return &Engine{rate: 16000}
}

// SetSamples preloads the PCM returned by the next Stop/SplitRecording.
func (e *Engine) SetSamples(s []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = s
}

// Observing reports whether a level observer is attached.
func (e *Engine) Observing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levelCh != nil
}

// Recording reports whether a capture is active.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// EmitLevel pushes a level sample to the observer, if any.
func (e *Engine) EmitLevel(s audio.LevelSample) {
	e.mu.Lock()
	ch := e.levelCh
	e.mu.Unlock()
	if ch != nil {
		ch <- s
	}
}

// EmitAudio pushes a raw PCM frame to the audio observer, if any.
func (e *Engine) EmitAudio(pcm []byte) {
	e.mu.Lock()
	ch := e.audioCh
	e.mu.Unlock()
	if ch != nil {
		ch <- pcm
	}
}

// ObservingAudio reports whether a PCM observer is attached.
func (e *Engine) ObservingAudio() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioCh != nil
}

func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	if e.recording {
		return errors.New("mock audio: already recording")
	}
	e.recording = true
	e.startedAt = time.Now()
	e.Starts++
	return nil
}

func (e *Engine) StopRecording() (*audio.Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return nil, errors.New("mock audio: not recording")
	}
	e.recording = false
	if e.levelCh != nil {
		close(e.levelCh)
		e.levelCh = nil
	}
	if e.audioCh != nil {
		close(e.audioCh)
		e.audioCh = nil
	}
	return e.snapshot(), nil
}

func (e *Engine) SplitRecording() (*audio.Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return nil, errors.New("mock audio: not recording")
	}
	e.Splits++
	rec := e.snapshot()
	e.startedAt = time.Now()
	return rec, nil
}

func (e *Engine) ObserveLevel(ctx context.Context) (<-chan audio.LevelSample, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return nil, errors.New("mock audio: not recording")
	}
	e.levelCh = make(chan audio.LevelSample, 64)
	return e.levelCh, nil
}

func (e *Engine) ObserveAudio(ctx context.Context) (<-chan []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return nil, errors.New("mock audio: not recording")
	}
	e.audioCh = make(chan []byte, 64)
	return e.audioCh, nil
}

func (e *Engine) WarmUp(ctx context.Context) error { return nil }

// snapshot must be called with e.mu held.
func (e *Engine) snapshot() *audio.Recording {
	out := make([]float32, len(e.samples))
	copy(out, e.samples)
	return &audio.Recording{
		Samples:    out,
		SampleRate: e.rate,
		StartedAt:  e.startedAt,
		StoppedAt:  time.Now(),
	}
}
