// Package whisper implements [recognizer.Provider] on the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model file is loaded lazily: construction only records the path, and
// [Provider.Prewarm] (or the first transcription) pays the load cost. One
// loaded model is shared by the offline pass and every streaming session.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// bitsPerSample is fixed at 16 for the streaming PCM input format.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit
	// PCM units) below which a streamed chunk counts as silence.
	defaultRMSThreshold = 300.0

	// defaultSilenceThresholdMs is the consecutive-silence duration that
	// flushes the streaming buffer to inference.
	defaultSilenceThresholdMs = 500

	// defaultMaxBufferDurationMs bounds the streaming buffer before a
	// forced flush.
	defaultMaxBufferDurationMs = 10_000
)

// specialToken matches whisper's internal markers: timestamp tokens like
// [_TT_150], control tokens like [_BEG_], and chat-style <|...|> tags.
var specialToken = regexp.MustCompile(`\[_[A-Z]+_?\d*\]|<\|[^|]*\|>`)

// Compile-time assertion that Provider satisfies recognizer.Provider.
var _ recognizer.Provider = (*Provider)(nil)

// Provider runs whisper.cpp in-process.
type Provider struct {
	modelPath string
	language  string

	silenceThresholdMs  int
	maxBufferDurationMs int

	mu    sync.Mutex
	model whisperlib.Model
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g., "en", "zh"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// flushes the streaming buffer to inference. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) {
		if ms > 0 {
			p.silenceThresholdMs = ms
		}
	}
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) {
		if ms > 0 {
			p.maxBufferDurationMs = ms
		}
	}
}

// New creates a Provider for the model at modelPath. The model is not
// loaded until [Provider.Prewarm] or the first transcription.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	p := &Provider{
		modelPath:           modelPath,
		language:            defaultLanguage,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the loaded model, if any.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}

// ModelReady reports whether the model is loaded or at least present on
// disk.
func (p *Provider) ModelReady() bool {
	p.mu.Lock()
	loaded := p.model != nil
	p.mu.Unlock()
	if loaded {
		return true
	}
	info, err := os.Stat(p.modelPath)
	return err == nil && !info.IsDir()
}

// Prewarm loads the model so the first transcription is not penalised.
// The bindings expose no incremental progress, so onProgress sees 0 at the
// start of the load and 1 on completion.
func (p *Provider) Prewarm(ctx context.Context, onProgress func(float64)) error {
	if onProgress != nil {
		onProgress(0)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.loadModel(); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// CleanTokens strips whisper's internal markers from text.
func (p *Provider) CleanTokens(text string) string {
	return strings.TrimSpace(specialToken.ReplaceAllString(text, ""))
}

// Transcribe runs the offline pass over rec. opts.Prefill becomes the
// model's initial prompt, biasing decoding toward the expected vocabulary.
func (p *Provider) Transcribe(ctx context.Context, rec *audio.Recording, opts recognizer.TranscribeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rec == nil || len(rec.Samples) == 0 {
		return "", nil
	}
	model, err := p.loadModel()
	if err != nil {
		return "", err
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	return infer(model, rec.Samples, lang, opts.Prefill)
}

// StartStream opens a live session. Audio sent to the handle is buffered
// with RMS silence detection; each detected utterance runs one inference
// and extends the confirmed segment list.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	model, err := p.loadModel()
	if err != nil {
		return nil, err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		model:               model,
		language:            lang,
		seed:                cfg.Context,
		sampleRate:          sr,
		channels:            ch,
		silenceThresholdMs:  p.silenceThresholdMs,
		maxBufferDurationMs: p.maxBufferDurationMs,

		audioCh: make(chan []byte, 256),
		updates: make(chan recognizer.StreamUpdate, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// loadModel loads the model on first use and returns the shared instance.
func (p *Provider) loadModel() (whisperlib.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model, nil
	}
	model, err := whisperlib.New(p.modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", p.modelPath, err)
	}
	slog.Info("whisper model loaded", "path", p.modelPath)
	p.model = model
	return model, nil
}

// infer runs one whisper.cpp inference over float32 mono samples. Each call
// uses a fresh context: contexts are not thread-safe, but the model is
// shareable.
func infer(model whisperlib.Model, samples []float32, language, prompt string) (string, error) {
	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", language, "error", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- session ---------------------------------------------------------------

// session is a live whisper streaming session. All mutable state that
// drives silence detection and buffering is confined to the processLoop
// goroutine.
type session struct {
	// immutable configuration (set once in StartStream)
	model               whisperlib.Model
	language            string
	seed                string
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int

	audioCh chan []byte
	updates chan recognizer.StreamUpdate

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ recognizer.StreamHandle = (*session)(nil)

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Updates returns the channel of incremental results.
func (s *session) Updates() <-chan recognizer.StreamUpdate { return s.updates }

// Close terminates the session, flushes any pending speech audio, and
// closes the Updates channel.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for silence detection,
// audio buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.updates)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
		confirmed []string
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		prompt := s.seed
		if len(confirmed) > 0 {
			prompt = strings.Join(confirmed, " ")
		}
		text, err := infer(s.model, pcmToFloat32Mono(pcm, s.channels), s.language, prompt)
		if err != nil {
			slog.Error("whisper streaming inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}

		confirmed = append(confirmed, text)
		select {
		case s.updates <- recognizer.StreamUpdate{
			ConfirmedSegments: append([]string(nil), confirmed...),
			Text:              strings.Join(confirmed, " "),
		}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk := <-s.audioCh:
			rms := computeRMS(chunk)
			chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)

			if rms < defaultRMSThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.silenceThresholdMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}
