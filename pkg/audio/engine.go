// Package audio defines the capture-side contracts for voxhold.
//
// The central abstraction is [Engine] — a local microphone capture backend.
// The dictation core never touches a sound API directly; it drives an Engine
// and receives two things back: a [Recording] when capture ends, and a stream
// of [LevelSample] values for voice-activity detection while capture runs.
//
// This package lives under pkg/ because platform-specific capture adapters
// (CoreAudio, WASAPI, PipeWire, ffmpeg subprocess) are expected to implement
// [Engine] from outside the module.
package audio

import (
	"context"
	"time"
)

// LevelSample is one reading from the capture level meter.
// Power values are normalised to [0.0, 1.0] where 0 is silence.
type LevelSample struct {
	// AveragePower is the RMS power over the metering interval.
	AveragePower float64

	// PeakPower is the highest instantaneous power over the metering interval.
	PeakPower float64

	// At is the wall-clock time the sample was taken.
	At time.Time
}

// Recording is a closed span of captured audio, ready for offline
// transcription. Samples are mono float32 PCM at SampleRate.
type Recording struct {
	Samples    []float32
	SampleRate int
	StartedAt  time.Time
	StoppedAt  time.Time
}

// Duration returns the length of the recording derived from the sample count.
func (r *Recording) Duration() time.Duration {
	if r == nil || r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(r.Samples)) / float64(r.SampleRate) * float64(time.Second))
}

// Engine is the microphone capture backend.
//
// Implementations must be safe for concurrent use. At most one capture is
// active at a time; StartRecording while a capture is already running must
// return an error.
type Engine interface {
	// StartRecording begins capturing from the default input device.
	// Capture continues until StopRecording or SplitRecording is called, or
	// ctx is cancelled.
	StartRecording(ctx context.Context) error

	// StopRecording ends the active capture and returns everything recorded
	// since it started. Returns an error if no capture is active.
	StopRecording() (*Recording, error)

	// SplitRecording returns everything captured so far and immediately
	// continues capturing into a fresh buffer. This is how a chunk boundary
	// hands its audio to the offline pass without a gap in capture.
	SplitRecording() (*Recording, error)

	// ObserveLevel returns a channel of level-meter samples for the active
	// capture. The channel is closed when capture ends or ctx is cancelled.
	ObserveLevel(ctx context.Context) (<-chan LevelSample, error)

	// ObserveAudio returns a channel of raw PCM frames (s16le mono at the
	// engine's sample rate) for the active capture. This is what feeds a
	// live streaming recognizer. The channel is closed when capture ends or
	// ctx is cancelled. Slow consumers may miss frames.
	ObserveAudio(ctx context.Context) (<-chan []byte, error)

	// WarmUp opens the input device ahead of time so the first real capture
	// starts without device-initialisation latency. Optional; implementations
	// may no-op.
	WarmUp(ctx context.Context) error
}
