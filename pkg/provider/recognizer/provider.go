// Package recognizer defines the Provider interface for speech-to-text
// backends used by voxhold.
//
// A recognizer serves two distinct roles in the dictation flow:
//
//   - Live streaming: a low-latency incremental pass that drives on-screen
//     feedback while the user is speaking. Opened with [Provider.StartStream];
//     updates arrive on the returned handle's channel.
//
//   - Offline: a slower, higher-accuracy pass over a finished [audio.Recording],
//     run once per chunk via [Provider.Transcribe]. This pass accepts a prefill
//     prompt that biases recognition toward expected vocabulary.
//
// Implementations must be safe for concurrent use, though at most one
// streaming session is ever open per engine by construction.
package recognizer

import (
	"context"

	"github.com/voxhold/voxhold/pkg/audio"
)

// StreamConfig describes the audio format and recognition hints for a new
// streaming session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual value.
	SampleRate int

	// Channels is the number of audio channels; 1 for dictation.
	Channels int

	// Language is the BCP-47 language tag, or empty for auto-detection.
	Language string

	// Context is prior transcript text used to seed the recognizer after a
	// chunk boundary, so cross-chunk phrasing stays coherent. May be empty.
	Context string

	// VoiceActivityChunking asks the backend to segment on detected pauses
	// rather than on a fixed cadence, where supported.
	VoiceActivityChunking bool
}

// TranscribeOptions carries the knobs for one offline transcription pass.
type TranscribeOptions struct {
	// Language is the BCP-47 language tag, or empty for auto-detection.
	Language string

	// Prefill is the prompt-biasing text fed to the model before decoding.
	// Empty means no biasing.
	Prefill string
}

// StreamUpdate is one incremental result from a live streaming session.
// The recognizer is the source of truth for segmentation: both segment lists
// replace their previous values wholesale on every update.
type StreamUpdate struct {
	// ConfirmedSegments are segments the recognizer has committed to.
	ConfirmedSegments []string

	// UnconfirmedSegments are the still-volatile trailing hypotheses.
	UnconfirmedSegments []string

	// Text is the recognizer's current best full hypothesis for the
	// in-progress utterance.
	Text string
}

// StreamHandle is an open live streaming session.
//
// Callers must call Close when done; failing to do so may leak goroutines and
// connections inside the provider. All methods are safe for concurrent use.
type StreamHandle interface {
	// SendAudio delivers a chunk of raw PCM bytes matching the StreamConfig
	// format. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Updates returns the channel of incremental results. The channel is
	// closed when the session ends.
	Updates() <-chan StreamUpdate

	// Close terminates the session and releases its resources. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// StartStream opens a live streaming session. The returned handle is
	// ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)

	// Transcribe runs the offline high-accuracy pass over rec.
	// An empty result with a nil error means the model heard nothing.
	Transcribe(ctx context.Context, rec *audio.Recording, opts TranscribeOptions) (string, error)

	// Prewarm loads the model so the first Transcribe call is not penalised.
	// onProgress, when non-nil, receives load progress in [0.0, 1.0].
	Prewarm(ctx context.Context, onProgress func(float64)) error

	// ModelReady reports whether the model is downloaded and loadable.
	ModelReady() bool

	// CleanTokens strips recognizer-internal markers (timestamps, special
	// tokens) from text. Text without markers is returned unchanged.
	CleanTokens(text string) string
}
