package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxhold/voxhold/internal/config"
	"github.com/voxhold/voxhold/internal/dictionary"
	"github.com/voxhold/voxhold/internal/enhance"
	"github.com/voxhold/voxhold/internal/hotkey"
	"github.com/voxhold/voxhold/internal/learn"
	"github.com/voxhold/voxhold/internal/observe"
	"github.com/voxhold/voxhold/internal/stream"
	"github.com/voxhold/voxhold/internal/vad"
	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/provider/enhancer"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

// State is the controller's coarse lifecycle position.
type State int

const (
	// StateIdle: no session active.
	StateIdle State = iota

	// StateRecording: capture and live streaming are running.
	StateRecording

	// StateTranscribing: capture has stopped, the offline pass (and
	// possibly enhancement) is still in flight.
	StateTranscribing
)

const (
	// settleDelay separates cancelling a previous generation's tasks from
	// launching the new one, so late callbacks cannot race fresh state.
	settleDelay = 50 * time.Millisecond

	// retryDelay precedes the one-shot empty-result retry on long recordings.
	retryDelay = 500 * time.Millisecond

	// longRecordingFloor is the duration past which an empty first pass is
	// worth retrying and a very short result is worth an advisory.
	longRecordingFloor = 3 * time.Second

	// advisoryDuration and advisoryRunes define the output anomaly: a
	// recording at least this long yielding fewer than this many runes.
	advisoryDuration = 10 * time.Second
	advisoryRunes    = 10

	// liveFallbackMinDuration gates the live-transcript fallback: blips
	// shorter than this never substitute live text for an empty offline pass.
	liveFallbackMinDuration = time.Second

	// maxTranscriptLines bounds the karaoke transcript.
	maxTranscriptLines = 200

	// screenContextPrompt asks the vision model for a dictation-context
	// summary of the captured screenshot.
	screenContextPrompt = "Briefly describe what application and content is on screen, " +
		"including any domain-specific terms visible. One or two sentences."
)

// Controller is the dictation orchestrator. It owns the recording
// lifecycle: hotkey intents start and stop capture, the silence detector
// and finalize key trigger chunk boundaries, and finished chunks flow
// through offline transcription, enhancement, and delivery.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	cfg    config.Config
	engine audio.Engine
	recog  recognizer.Provider
	paste  Pasteboard

	pipeline *enhance.Pipeline
	filter   *enhance.Filter
	dict     *dictionary.Store
	learner  *learn.Engine
	overlay  Overlay
	screen   ScreenCapture
	keys     KeyMonitor
	events   Events
	metrics  *observe.Metrics
	logger   *slog.Logger

	agg        *stream.Aggregator
	transcript *Transcript
	tasks      *taskRegistry

	mu            sync.Mutex
	state         State
	generation    uint64
	startedAt     time.Time
	screenSummary string

	detector *vad.Detector

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// Option configures a [Controller].
type Option func(*Controller)

// WithEnhancement routes finalized text through p when the configuration
// enables it.
func WithEnhancement(p *enhance.Pipeline) Option {
	return func(c *Controller) { c.pipeline = p }
}

// WithDictionary wires the custom-word store used for prompt biasing and
// output replacement.
func WithDictionary(d *dictionary.Store) Option {
	return func(c *Controller) { c.dict = d }
}

// WithLearning wires the correction-learning engine fed by overlay edits.
func WithLearning(e *learn.Engine) Option {
	return func(c *Controller) { c.learner = e }
}

// WithOverlay enables edit-review delivery through o.
func WithOverlay(o Overlay) Option {
	return func(c *Controller) { c.overlay = o }
}

// WithScreenCapture enables screenshot-derived dictation context.
func WithScreenCapture(s ScreenCapture) Option {
	return func(c *Controller) { c.screen = s }
}

// WithKeyMonitor enables the manual finalize key while recording.
func WithKeyMonitor(k KeyMonitor) Option {
	return func(c *Controller) { c.keys = k }
}

// WithEvents sets the UI notification sink.
func WithEvents(e Events) Option {
	return func(c *Controller) { c.events = e }
}

// WithMetrics sets the telemetry instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller. engine, recog, and paste are required; every
// other collaborator is optional and its feature degrades to off when absent.
func New(cfg config.Config, engine audio.Engine, recog recognizer.Provider, paste Pasteboard, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		engine:     engine,
		recog:      recog,
		paste:      paste,
		events:     NopEvents{},
		logger:     slog.Default(),
		agg:        stream.New(),
		transcript: NewTranscript(maxTranscriptLines),
		tasks:      newTaskRegistry(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.filter = enhance.NewFilter(cfg.Hallucination)
	c.detector = vad.New(vad.Config{
		Threshold: cfg.Silence.Threshold,
		Window:    cfg.Silence.Window(),
	}, c.onSilence)
	return c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript exposes the karaoke line sequence for the view layer.
func (c *Controller) Transcript() *Transcript { return c.transcript }

// HandleIntent maps a hotkey intent onto the session lifecycle. hkState is
// the processor's state after the event, used to skip the double-tap
// debounce once the chord is locked hands-free.
func (c *Controller) HandleIntent(ctx context.Context, in hotkey.Intent, hkState hotkey.State) {
	switch in {
	case hotkey.IntentStart:
		if hkState == hotkey.StateHandsFree {
			c.tasks.Cancel(PurposeDebounce)
			if err := c.Start(ctx); err != nil {
				c.logger.Error("session start failed", "error", err)
			}
			return
		}
		c.StartDebounced(ctx)
	case hotkey.IntentStop:
		if err := c.Stop(ctx); err != nil {
			c.logger.Error("session stop failed", "error", err)
		}
	case hotkey.IntentCancel:
		c.Cancel()
	}
}

// StartDebounced schedules Start after the configured debounce delay,
// leaving the double-tap window open. A Stop or Cancel in the meantime
// aborts the pending start.
func (c *Controller) StartDebounced(ctx context.Context) {
	delay := c.cfg.Hotkey.Debounce()
	c.tasks.Spawn(ctx, PurposeDebounce, func(tctx context.Context) {
		c.sleep(tctx, delay)
		if tctx.Err() != nil {
			return
		}
		if err := c.Start(tctx); err != nil {
			c.logger.Error("session start failed", "error", err)
		}
	})
}

// Start begins a new dictation session: it cancels every task of the
// previous generation, waits a short settling delay, then launches audio
// capture, the live stream relay, level monitoring, the screenshot context
// capture, and the finalize-key listener.
//
// Ignored without error while already recording, and while a previous
// session is still transcribing unless its overlay is open for review.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRecording:
		c.mu.Unlock()
		return nil
	case StateTranscribing:
		if c.overlay == nil || !c.overlay.Visible() {
			c.mu.Unlock()
			return nil
		}
	}
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	// No overlap between generations: the old stream's late callbacks must
	// never observe the new session's state.
	c.tasks.CancelAll(PurposeEnhance, PurposeDebounce)
	c.sleep(ctx, settleDelay)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.agg.Reset()
	if err := c.engine.StartRecording(ctx); err != nil {
		c.metrics.RecordProviderError(ctx, "audio", "start")
		return err
	}

	c.mu.Lock()
	c.state = StateRecording
	c.startedAt = c.now()
	c.screenSummary = ""
	c.mu.Unlock()

	c.transcript.Append(LineSessionStart, "")
	c.notifyTranscript()
	c.events.RecordingChanged(true)
	c.metrics.RecordSessionStarted(ctx)
	c.metrics.SessionActive(ctx, 1)
	c.logger.Info("session started", "generation", gen)

	// Session tasks outlive the caller; the registry owns their lifetime.
	base := context.WithoutCancel(ctx)
	c.tasks.Spawn(base, PurposeStream, func(tctx context.Context) {
		c.runStream(tctx, gen, "")
	})
	c.tasks.Spawn(base, PurposeSilenceCheck, func(tctx context.Context) {
		c.detector.Start()
		<-tctx.Done()
		c.detector.Stop()
	})
	c.tasks.Spawn(base, PurposeLevelMonitor, func(tctx context.Context) {
		c.runLevelMonitor(tctx)
	})
	if c.screen != nil && c.cfg.Dictation.ScreenContextEnabled {
		c.tasks.Spawn(base, PurposeScreenCtx, func(tctx context.Context) {
			c.runScreenContext(tctx, gen)
		})
	}
	if c.keys != nil && c.cfg.Hotkey.FinalizeKey != "" {
		c.tasks.Spawn(base, PurposeKeyListener, func(tctx context.Context) {
			c.runKeyListener(tctx, gen)
		})
	}
	return nil
}

// Stop ends capture and runs the finalize pipeline on the recorded audio.
// Recordings released before the minimum hold time are discarded when the
// chord is modifier-only, since those are easy to trip accidentally; a
// chord with a literal key signals deliberate intent and is always kept.
func (c *Controller) Stop(ctx context.Context) error {
	c.tasks.Cancel(PurposeDebounce)

	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	held := c.now().Sub(c.startedAt)
	chord := hotkey.Chord{
		Key:       c.cfg.Hotkey.Key,
		Modifiers: hotkey.ParseModifiers(c.cfg.Hotkey.Modifiers),
	}
	if held < c.cfg.Hotkey.MinHold() && chord.ModifierOnly() {
		c.state = StateIdle
		c.mu.Unlock()
		c.discard(ctx, held)
		return nil
	}
	c.state = StateTranscribing
	c.mu.Unlock()

	// Live stream first, and await its stop: running the streaming and
	// offline passes concurrently makes the recognizer cancel one of them.
	c.tasks.Cancel(PurposeStream)
	c.tasks.Cancel(PurposeKeyListener)
	c.tasks.Cancel(PurposeLevelMonitor)
	c.tasks.Cancel(PurposeSilenceCheck)

	fallback := c.agg.FallbackText()
	c.agg.Reset()

	rec, err := c.engine.StopRecording()
	c.events.RecordingChanged(false)
	c.metrics.SessionActive(ctx, -1)
	if err != nil {
		c.metrics.RecordProviderError(ctx, "audio", "stop")
		c.setIdle(gen)
		return err
	}

	c.logger.Info("session stopping", "generation", gen, "held", held, "fallback_runes", utf8.RuneCountInString(fallback))

	c.tasks.Spawn(context.WithoutCancel(ctx), PurposeFinalize, func(tctx context.Context) {
		tctx, span := observe.StartSpan(tctx, "chunk.finalize",
			trace.WithAttributes(attribute.String("trigger", "stop")))
		defer span.End()
		defer c.setIdle(gen)
		text := c.transcribeChunk(tctx, gen, rec, "", fallback)
		if text == "" {
			if rec.Duration() >= advisoryDuration {
				c.events.Advisory("Transcription may have failed: no text was recognized.")
			}
			c.transcript.Append(LineSessionEnd, "")
			c.notifyTranscript()
			return
		}
		if rec.Duration() >= advisoryDuration && utf8.RuneCountInString(text) < advisoryRunes {
			c.events.Advisory("Transcription may have failed: the recording was long but little text was recognized.")
		}
		c.metrics.RecordChunkFinalized(tctx, "stop")
		c.handleResult(tctx, gen, text, enhancer.Context{
			ScreenSummary:  c.currentScreenSummary(),
			LiveTranscript: fallback,
		}, func() {
			c.transcript.Append(LineSessionEnd, "")
			c.notifyTranscript()
		})
	})
	return nil
}

// FinalizeChunk closes the current speech chunk mid-session without
// stopping capture: the audio recorded so far is split off for the offline
// pass while recording continues, so chunk N+1 capture begins before chunk
// N's enhancement completes.
func (c *Controller) FinalizeChunk(ctx context.Context, trigger string) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	c.mu.Unlock()

	// Same ordering as Stop: halt the relay before touching the aggregator,
	// so a final in-flight update cannot land after the reset and leak into
	// the next chunk's live baseline.
	c.tasks.Cancel(PurposeStream)

	liveSince := c.agg.FallbackText()
	c.agg.Reset()

	rec, err := c.engine.SplitRecording()
	if err != nil {
		c.logger.Error("chunk split failed", "error", err)
		c.metrics.RecordProviderError(ctx, "audio", "split")
		return
	}
	if rec.Duration() == 0 {
		// Nothing captured since the last boundary; restart the relay.
		c.tasks.Spawn(context.WithoutCancel(ctx), PurposeStream, func(tctx context.Context) {
			c.runStream(tctx, gen, c.transcript.LastTranscription())
		})
		return
	}

	sepID := c.transcript.AppendSeparator(StatusTranscribing)
	c.notifyTranscript()
	c.metrics.RecordChunkFinalized(ctx, trigger)
	c.logger.Info("chunk boundary", "trigger", trigger, "duration", rec.Duration())

	prev := c.transcript.LastTranscription()
	base := context.WithoutCancel(ctx)
	c.tasks.Spawn(base, PurposeFinalize, func(tctx context.Context) {
		tctx, span := observe.StartSpan(tctx, "chunk.finalize",
			trace.WithAttributes(attribute.String("trigger", trigger)))
		defer span.End()
		text := c.transcribeChunk(tctx, gen, rec, prev, liveSince)
		if tctx.Err() != nil {
			return
		}
		if text == "" {
			c.transcript.Remove(sepID)
			c.notifyTranscript()
		} else {
			lineID := c.transcript.Append(LineTranscription, text)
			c.transcript.SetHighlighted(lineID)
			c.transcript.SetStatus(sepID, StatusEnhancing)
			c.notifyTranscript()
		}

		// Restart the live relay seeded with the finalized transcript
		// before enhancement runs; capture never paused.
		seed := prev
		if text != "" {
			seed = text
		}
		c.tasks.Spawn(base, PurposeStream, func(sctx context.Context) {
			c.runStream(sctx, gen, seed)
		})

		if text != "" {
			c.handleResult(tctx, gen, text, enhancer.Context{
				ScreenSummary:  c.currentScreenSummary(),
				PreviousChunk:  prev,
				LiveTranscript: liveSince,
			}, func() {
				c.transcript.SetStatus(sepID, StatusNone)
				c.notifyTranscript()
			})
		}
	})
}

// Cancel discards the session unconditionally: every task is cancelled and
// all per-session state returns to idle. Enhancement requests deliberately
// keep running so the external service never sees a half-cancelled
// exchange; their late results are dropped by the generation check.
// Redundant calls are harmless.
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasRecording := c.state == StateRecording
	c.state = StateIdle
	c.generation++
	c.mu.Unlock()

	c.tasks.CancelAll(PurposeEnhance)
	c.agg.Reset()
	c.transcript.Clear()
	c.notifyTranscript()

	if wasRecording {
		if _, err := c.engine.StopRecording(); err != nil {
			c.logger.Debug("stop on cancel", "error", err)
		}
		c.events.RecordingChanged(false)
		c.metrics.SessionActive(context.Background(), -1)
	}
	c.logger.Info("session cancelled")
}

// RecordEdit feeds a user's overlay edit to the correction-learning engine.
func (c *Controller) RecordEdit(ctx context.Context, original, edited string) {
	if c.learner == nil {
		return
	}
	if err := c.learner.RecordCorrection(ctx, original, edited); err != nil {
		c.logger.Warn("correction learning failed", "error", err)
	}
}

// --- internal ---

func (c *Controller) discard(ctx context.Context, held time.Duration) {
	c.tasks.CancelAll(PurposeEnhance)
	c.agg.Reset()
	if _, err := c.engine.StopRecording(); err != nil {
		c.logger.Debug("stop on discard", "error", err)
	}
	c.events.RecordingChanged(false)
	c.metrics.SessionActive(ctx, -1)
	c.metrics.RecordRecordingDiscarded(ctx)
	c.logger.Info("recording discarded below minimum hold", "held", held)
}

// runStream opens a live streaming session and relays its updates into the
// aggregator until the context is cancelled or the stream ends.
func (c *Controller) runStream(ctx context.Context, gen uint64, seed string) {
	handle, err := c.recog.StartStream(ctx, recognizer.StreamConfig{
		SampleRate:            16000,
		Channels:              1,
		Language:              c.cfg.Dictation.Language,
		Context:               seed,
		VoiceActivityChunking: true,
	})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("live stream failed to start", "error", err)
			c.metrics.RecordProviderError(ctx, c.cfg.Providers.Recognizer.Name, "stream")
		}
		return
	}
	defer handle.Close()

	// Pump captured PCM into the stream; without this feed the recognizer
	// has nothing to decode. The pump ends with the stream: SendAudio
	// errors after Close.
	if frames, aerr := c.engine.ObserveAudio(ctx); aerr != nil {
		if ctx.Err() == nil {
			c.logger.Error("audio tap for live stream failed", "error", aerr)
		}
	} else {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case pcm, ok := <-frames:
					if !ok {
						return
					}
					if err := handle.SendAudio(pcm); err != nil {
						return
					}
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-handle.Updates():
			if !ok {
				return
			}
			if !c.isCurrent(gen) {
				return
			}
			c.agg.Apply(u)
			c.events.LiveTextChanged(c.agg.Snapshot().CurrentText)
		}
	}
}

// runLevelMonitor relays meter samples into the silence detector.
func (c *Controller) runLevelMonitor(ctx context.Context) {
	levels, err := c.engine.ObserveLevel(ctx)
	if err != nil {
		c.logger.Error("audio level observation failed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-levels:
			if !ok {
				return
			}
			c.detector.Observe(s)
		}
	}
}

// runScreenContext captures a screenshot and summarises it for prompt
// biasing and enhancement context. Missing permission or any failure
// silently degrades to no context.
func (c *Controller) runScreenContext(ctx context.Context, gen uint64) {
	if !c.screen.Authorized() {
		c.logger.Debug("screen capture not authorized, skipping context")
		return
	}
	img, err := c.screen.Capture(ctx)
	if err != nil {
		c.logger.Debug("screen capture failed", "error", err)
		return
	}
	if c.pipeline == nil {
		return
	}
	summary, err := c.pipeline.AnalyzeImage(ctx, img, screenContextPrompt)
	if err != nil || summary == "" {
		return
	}
	c.mu.Lock()
	if c.generation == gen {
		c.screenSummary = summary
	}
	c.mu.Unlock()
}

// runKeyListener watches for the manual finalize key while recording.
func (c *Controller) runKeyListener(ctx context.Context, gen uint64) {
	events, err := c.keys.Listen(ctx)
	if err != nil {
		c.logger.Error("key monitor failed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != hotkey.KeyDown || !strings.EqualFold(ev.Key, c.cfg.Hotkey.FinalizeKey) {
				continue
			}
			if !c.isCurrent(gen) {
				return
			}
			c.detector.TriggerNow()
		}
	}
}

// onSilence is the detector's boundary callback; it runs on a timer
// goroutine, so the actual finalize is handed off immediately.
func (c *Controller) onSilence() {
	go c.FinalizeChunk(context.Background(), "silence")
}

// transcribeChunk runs the offline pass with the prefill/no-prefill/retry
// ladder and returns the selected, cleaned, replacement-applied text.
// Empty means nothing usable was recognized.
func (c *Controller) transcribeChunk(ctx context.Context, gen uint64, rec *audio.Recording, prevChunk, fallback string) string {
	ctx, span := observe.StartSpan(ctx, "chunk.transcribe",
		trace.WithAttributes(attribute.Float64("audio.seconds", rec.Duration().Seconds())))
	defer span.End()
	logger := observe.Logger(ctx)

	opts := recognizer.TranscribeOptions{
		Language: c.cfg.Dictation.Language,
		Prefill:  c.buildPrefill(prevChunk),
	}

	start := c.now()
	text, err := c.recog.Transcribe(ctx, rec, opts)
	c.metrics.RecordTranscribe(ctx, c.now().Sub(start))
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		logger.Warn("prefill transcription failed", "error", err)
		c.metrics.RecordProviderError(ctx, c.cfg.Providers.Recognizer.Name, "transcribe")
		text = ""
	}

	if strings.TrimSpace(text) == "" && opts.Prefill != "" {
		text, err = c.recog.Transcribe(ctx, rec, recognizer.TranscribeOptions{Language: opts.Language})
		if err != nil && ctx.Err() == nil {
			logger.Warn("no-prefill transcription failed", "error", err)
			c.metrics.RecordProviderError(ctx, c.cfg.Providers.Recognizer.Name, "transcribe")
			text = ""
		}
	}

	if strings.TrimSpace(text) == "" && rec.Duration() > longRecordingFloor {
		c.sleep(ctx, retryDelay)
		if ctx.Err() != nil {
			return ""
		}
		text, err = c.recog.Transcribe(ctx, rec, recognizer.TranscribeOptions{Language: opts.Language})
		if err != nil && ctx.Err() == nil {
			logger.Warn("retry transcription failed", "error", err)
			text = ""
		}
	}

	text = strings.TrimSpace(c.recog.CleanTokens(text))

	if text == "" {
		if !c.cfg.Dictation.UseLiveFallback {
			return ""
		}
		fb := strings.TrimSpace(fallback)
		if fb == "" || rec.Duration() < liveFallbackMinDuration || c.filter.IsHallucination(fb) {
			return ""
		}
		logger.Info("using live transcript fallback", "runes", utf8.RuneCountInString(fb))
		text = fb
	} else if !c.filter.EndsWithPhrase(fallback) {
		// Live evidence that the speaker genuinely ended on a stock phrase
		// suppresses stripping; otherwise trailing hallucinations go.
		text = c.filter.Clean(text)
	}

	if !c.isCurrent(gen) {
		return ""
	}
	return c.applyReplacements(text)
}

// handleResult routes finalized text through enhancement when enabled,
// then delivers it to the overlay or the pasteboard. Enhancement runs as
// its own task so a session cancel never interrupts an in-flight exchange
// with the external service; late results from a cancelled generation are
// dropped at delivery instead. onDone, when non-nil, runs after delivery.
func (c *Controller) handleResult(ctx context.Context, gen uint64, text string, ec enhancer.Context, onDone func()) {
	if c.pipeline == nil || !c.cfg.Dictation.EnhancementEnabled {
		if c.isCurrent(gen) {
			c.deliver(text, false)
		}
		if onDone != nil {
			onDone()
		}
		return
	}

	c.tasks.Spawn(context.WithoutCancel(ctx), PurposeEnhance, func(tctx context.Context) {
		tctx, span := observe.StartSpan(tctx, "chunk.enhance")
		defer span.End()
		start := c.now()
		res, err := c.pipeline.Enhance(tctx, enhancer.Request{
			Text:         text,
			Context:      ec,
			SystemPrompt: c.cfg.Dictation.UserPrompt,
		})
		c.metrics.RecordEnhance(tctx, c.now().Sub(start))
		if err != nil {
			c.events.Advisory("Text enhancement is unavailable; delivering the raw transcript.")
			c.metrics.RecordProviderError(tctx, c.cfg.Providers.Enhancer.Name, "enhance")
		}
		if c.isCurrent(gen) {
			c.deliver(res.Text, res.Enhanced)
		} else {
			c.logger.Debug("dropping result from stale generation", "generation", gen)
		}
		if onDone != nil {
			onDone()
		}
	})
}

func (c *Controller) deliver(text string, enhanced bool) {
	if text == "" {
		return
	}
	if c.overlay != nil && c.cfg.Dictation.OverlayEnabled {
		var err error
		if c.overlay.Visible() {
			err = c.overlay.Append(text)
		} else {
			err = c.overlay.Show(text)
		}
		if err != nil {
			c.logger.Error("overlay delivery failed, pasting instead", "error", err)
			if err := c.paste.Paste(text); err != nil {
				c.logger.Error("paste failed", "error", err)
				return
			}
		}
	} else if err := c.paste.Paste(text); err != nil {
		c.logger.Error("paste failed", "error", err)
		return
	}
	c.events.Delivered(text, enhanced)
}

// buildPrefill assembles the prompt-biasing text: user vocabulary prompt,
// screenshot summary, previous chunk, and dictionary prompt words.
func (c *Controller) buildPrefill(prevChunk string) string {
	var parts []string
	if p := strings.TrimSpace(c.cfg.Dictation.UserPrompt); p != "" {
		parts = append(parts, p)
	}
	if s := c.currentScreenSummary(); s != "" {
		parts = append(parts, s)
	}
	if prevChunk != "" {
		parts = append(parts, prevChunk)
	}
	if c.dict != nil {
		if doc, err := c.dict.Load(); err == nil {
			if words := doc.PromptWords(); len(words) > 0 {
				parts = append(parts, strings.Join(words, " "))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func (c *Controller) applyReplacements(text string) string {
	if c.dict == nil {
		return text
	}
	doc, err := c.dict.Load()
	if err != nil {
		c.logger.Debug("dictionary load failed", "error", err)
		return text
	}
	return doc.ApplyReplacements(text)
}

func (c *Controller) currentScreenSummary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenSummary
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// setIdle returns to idle only if gen is still the live generation; a newer
// session owns the state otherwise.
func (c *Controller) setIdle(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen && c.state == StateTranscribing {
		c.state = StateIdle
	}
}

func (c *Controller) notifyTranscript() {
	c.events.TranscriptChanged(c.transcript.Lines())
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
