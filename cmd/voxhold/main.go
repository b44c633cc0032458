// Command voxhold is the push-to-talk dictation engine daemon.
//
// It loads the YAML configuration, wires the capture, recognition,
// enhancement and learning stages together, and then waits for dictation
// commands. Key chords arrive on stdin through a small line protocol (an
// empty line presses or releases the configured chord) so the daemon stays
// free of any GUI toolkit; desktop front-ends drive the same engine through
// the session controller API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxhold/voxhold/internal/config"
	"github.com/voxhold/voxhold/internal/dictionary"
	"github.com/voxhold/voxhold/internal/enhance"
	"github.com/voxhold/voxhold/internal/health"
	"github.com/voxhold/voxhold/internal/hotkey"
	"github.com/voxhold/voxhold/internal/learn"
	"github.com/voxhold/voxhold/internal/learn/history"
	"github.com/voxhold/voxhold/internal/observe"
	"github.com/voxhold/voxhold/internal/platform"
	"github.com/voxhold/voxhold/internal/session"
	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/audio/ffmpeg"
	"github.com/voxhold/voxhold/pkg/provider/enhancer"
	enhanceranyllm "github.com/voxhold/voxhold/pkg/provider/enhancer/anyllm"
	enhanceroai "github.com/voxhold/voxhold/pkg/provider/enhancer/openai"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
	"github.com/voxhold/voxhold/pkg/provider/recognizer/deepgram"
	"github.com/voxhold/voxhold/pkg/provider/recognizer/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxhold: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxhold: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxhold starting",
		"config", *configPath,
		"recognizer", cfg.Providers.Recognizer.Name,
		"enhancer", cfg.Providers.Enhancer.Name,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Recognizer ────────────────────────────────────────────────────────────
	recog, err := buildRecognizer(cfg)
	if err != nil {
		slog.Error("failed to build recognizer", "err", err)
		return 1
	}
	go prewarm(ctx, recog)

	// ── Audio capture ─────────────────────────────────────────────────────────
	engine := buildAudioEngine(cfg.Audio)
	if err := engine.WarmUp(ctx); err != nil {
		slog.Warn("audio capture not ready", "err", err)
	}

	// ── Controller options ────────────────────────────────────────────────────
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(metrics),
	}

	var enhProvider enhancer.Provider
	if cfg.Providers.Enhancer.Name != "" {
		enhProvider, err = buildEnhancer(cfg.Providers.Enhancer)
		if err != nil {
			slog.Error("failed to build enhancer", "err", err)
			return 1
		}
		opts = append(opts, session.WithEnhancement(enhance.NewPipeline(enhProvider, logger)))
	}

	var dict *dictionary.Store
	if cfg.Storage.DictionaryPath != "" {
		dict = dictionary.NewStore(cfg.Storage.DictionaryPath, cfg.Storage.CacheTTL())
		opts = append(opts, session.WithDictionary(dict))
	}

	learner, pool, err := buildLearning(ctx, cfg, dict)
	if err != nil {
		slog.Error("failed to build correction learning", "err", err)
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}
	if learner != nil {
		opts = append(opts, session.WithLearning(learner))
	}

	if cfg.Dictation.ScreenContextEnabled {
		opts = append(opts, session.WithScreenCapture(platform.NewScreenCapture()))
	}

	ctrl := session.New(*cfg, engine, recog, platform.NewPasteboard(), opts...)
	defer ctrl.Cancel()

	chord := hotkey.Chord{
		Key:       cfg.Hotkey.Key,
		Modifiers: hotkey.ParseModifiers(cfg.Hotkey.Modifiers),
	}
	proc := hotkey.New(chord, cfg.Hotkey.DoubleTapWindow())

	printStartupSummary(cfg)
	slog.Info("ready — empty line toggles dictation, 'cancel' discards, 'quit' exits")

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		srv := diagnosticsServer(cfg, recog, engine, enhProvider)
		g.Go(func() error {
			slog.Info("diagnostics listening", "addr", cfg.Server.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("diagnostics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			return srv.Shutdown(shutCtx)
		})
	}

	if learner != nil {
		g.Go(func() error {
			watchPromotions(gctx, learner, metrics)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return controlLoop(gctx, cfg, proc, ctrl)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildRecognizer(cfg *config.Config) (recognizer.Provider, error) {
	entry := cfg.Providers.Recognizer
	switch entry.Name {
	case "whisper":
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if cfg.Dictation.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Dictation.Language))
		}
		return whisper.New(modelPath, opts...)

	case "deepgram":
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if cfg.Dictation.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Dictation.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)

	case "":
		return nil, errors.New("providers.recognizer is not configured")
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", entry.Name)
	}
}

// buildEnhancer maps the enhancer provider entry to a backend. "openai" gets
// the dedicated SDK provider (it carries the vision call used for screen
// context); every other name goes through the any-llm multi-provider bridge.
func buildEnhancer(entry config.ProviderEntry) (enhancer.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []enhanceroai.Option
		if entry.BaseURL != "" {
			opts = append(opts, enhanceroai.WithBaseURL(entry.BaseURL))
		}
		return enhanceroai.New(entry.APIKey, entry.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return enhanceranyllm.New(entry.Name, entry.Model, opts...)
	}
}

func buildAudioEngine(cfg config.AudioConfig) audio.Engine {
	var opts []ffmpeg.Option
	if cfg.Command != "" {
		opts = append(opts, ffmpeg.WithCommand(cfg.Command))
	}
	if cfg.InputFormat != "" {
		opts = append(opts, ffmpeg.WithInputFormat(cfg.InputFormat))
	}
	if cfg.InputDevice != "" {
		opts = append(opts, ffmpeg.WithInputDevice(cfg.InputDevice))
	}
	if cfg.SampleRateHz > 0 {
		opts = append(opts, ffmpeg.WithSampleRate(cfg.SampleRateHz))
	}
	return ffmpeg.New(opts...)
}

// buildLearning assembles the correction-history store and learning engine.
// The store is PostgreSQL when a DSN is configured, otherwise the JSON file.
// Learning needs both a history store and a dictionary to promote into.
func buildLearning(ctx context.Context, cfg *config.Config, dict *dictionary.Store) (*learn.Engine, *pgxpool.Pool, error) {
	if dict == nil {
		return nil, nil, nil
	}

	var store history.Store
	var pool *pgxpool.Pool
	switch {
	case cfg.Storage.HistoryPostgresDSN != "":
		p, err := pgxpool.New(ctx, cfg.Storage.HistoryPostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect history database: %w", err)
		}
		pg := history.NewPostgresStore(p)
		if err := pg.Migrate(ctx); err != nil {
			p.Close()
			return nil, nil, err
		}
		store, pool = pg, p
	case cfg.Storage.HistoryPath != "":
		store = history.NewFileStore(cfg.Storage.HistoryPath)
	default:
		return nil, nil, nil
	}

	var opts []learn.Option
	if cfg.Learning.Threshold > 0 {
		opts = append(opts, learn.WithThreshold(cfg.Learning.Threshold))
	}
	if cfg.Learning.MinSimilarity > 0 {
		opts = append(opts, learn.WithMinSimilarity(cfg.Learning.MinSimilarity))
	}
	return learn.New(store, dict, opts...), pool, nil
}

func prewarm(ctx context.Context, recog recognizer.Provider) {
	err := recog.Prewarm(ctx, func(p float64) {
		slog.Debug("recognizer prewarm", "progress", p)
	})
	if err != nil {
		slog.Warn("recognizer prewarm failed; first transcription will pay the load cost", "err", err)
	}
}

// watchPromotions logs dictionary promotions as they happen.
func watchPromotions(ctx context.Context, learner *learn.Engine, metrics *observe.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-learner.Promotions():
			if !ok {
				return
			}
			metrics.RecordDictionaryPromotion(ctx)
			slog.Info("correction promoted to dictionary", "original", p.Original, "corrected", p.Corrected)
		}
	}
}

// ── Diagnostics server ────────────────────────────────────────────────────────

func diagnosticsServer(cfg *config.Config, recog recognizer.Provider, engine audio.Engine, enh enhancer.Provider) *http.Server {
	probes := []health.Probe{
		{Name: "recognizer", Check: func(_ context.Context) error {
			if !recog.ModelReady() {
				return errors.New("model not ready")
			}
			return nil
		}},
		{Name: "capture", Check: engine.WarmUp},
	}
	if enh != nil {
		probes = append(probes, health.Probe{Name: "enhancer", Check: func(ctx context.Context) error {
			if !enh.Available(ctx) {
				return errors.New("enhancement service unreachable")
			}
			return nil
		}})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(probes...).Register(mux)

	return &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Control loop ──────────────────────────────────────────────────────────────

// controlLoop reads dictation commands from stdin and drives the hotkey FSM
// with synthesized chord edges:
//
//	(empty line)        press or release the configured chord
//	cancel              press escape, discarding the session
//	finalize            force a chunk boundary mid-session
//	edit OLD => NEW     record a manual correction for learning
//	quit                exit
//
// Desktop builds replace this with a real key-event tap feeding the same
// [hotkey.Processor].
func controlLoop(ctx context.Context, cfg *config.Config, proc *hotkey.Processor, ctrl *session.Controller) error {
	chord := hotkey.Chord{
		Key:       cfg.Hotkey.Key,
		Modifiers: hotkey.ParseModifiers(cfg.Hotkey.Modifiers),
	}

	dispatch := func(ev hotkey.Event) {
		intent, _ := proc.Process(ev)
		if intent != hotkey.IntentNone {
			ctrl.HandleIntent(ctx, intent, proc.State())
		}
	}

	held := false
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit" || line == "exit":
			return nil

		case line == "":
			if !held {
				held = true
				dispatch(hotkey.Event{Kind: hotkey.KeyDown, Key: chord.Key, Modifiers: chord.Modifiers, At: time.Now()})
				continue
			}
			held = false
			// Over stdin the debounce has long passed by the time the
			// release arrives, so commit the armed state first.
			dispatch(hotkey.Event{Kind: hotkey.Timeout, At: time.Now()})
			dispatch(hotkey.Event{Kind: hotkey.KeyUp, Key: chord.Key, At: time.Now()})

		case line == "cancel":
			held = false
			dispatch(hotkey.Event{Kind: hotkey.KeyDown, Key: "escape", At: time.Now()})
			proc.Reset()

		case line == "finalize":
			ctrl.FinalizeChunk(ctx, "manual")

		case strings.HasPrefix(line, "edit "):
			original, edited, ok := strings.Cut(strings.TrimPrefix(line, "edit "), "=>")
			if !ok {
				fmt.Println("usage: edit OLD => NEW")
				continue
			}
			ctrl.RecordEdit(ctx, strings.TrimSpace(original), strings.TrimSpace(edited))

		default:
			fmt.Println("commands: (empty line) toggle, cancel, finalize, edit OLD => NEW, quit")
		}
	}
	return scanner.Err()
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxhold — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	printProvider("Enhancer", cfg.Providers.Enhancer.Name, cfg.Providers.Enhancer.Model)
	printChord(cfg.Hotkey)
	if cfg.Storage.DictionaryPath != "" {
		fmt.Printf("║  Dictionary      : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Dictionary      : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Diagnostics     : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

func printChord(h config.HotkeyConfig) {
	parts := append([]string{}, h.Modifiers...)
	if h.Key != "" {
		parts = append(parts, h.Key)
	}
	value := strings.Join(parts, "+")
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  Hotkey          : %-19s ║\n", value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map[string]any.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
