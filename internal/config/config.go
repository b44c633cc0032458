// Package config provides the configuration schema and loader for the
// voxhold dictation engine.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxhold.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Hotkey        HotkeyConfig        `yaml:"hotkey"`
	Silence       SilenceConfig       `yaml:"silence"`
	Dictation     DictationConfig     `yaml:"dictation"`
	Hallucination HallucinationConfig `yaml:"hallucination"`
	Audio         AudioConfig         `yaml:"audio"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Learning      LearningConfig      `yaml:"learning"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9102"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// HotkeyConfig describes the push-to-talk chord and its timing windows.
type HotkeyConfig struct {
	// Key is the literal key of the chord (e.g., "f5", "space"). Empty means
	// the chord is modifier-only.
	Key string `yaml:"key"`

	// Modifiers lists the modifier flags of the chord. Recognised values:
	// "ctrl", "alt", "shift", "cmd", "fn".
	Modifiers []string `yaml:"modifiers"`

	// DoubleTapWindowMs is how long after the first key-down a second tap
	// still locks hands-free mode. Default: 300.
	DoubleTapWindowMs int `yaml:"double_tap_window_ms"`

	// DebounceMs is the delay between the start intent and capture actually
	// starting, leaving room for double-tap detection. Default: 250.
	DebounceMs int `yaml:"debounce_ms"`

	// MinHoldMs is the minimum recording duration; shorter recordings are
	// discarded when the chord is modifier-only. Default: 500.
	MinHoldMs int `yaml:"min_hold_ms"`

	// FinalizeKey is the key that forces a chunk boundary mid-session
	// (e.g., "enter"). Empty disables manual finalization.
	FinalizeKey string `yaml:"finalize_key"`
}

// DoubleTapWindow returns the double-tap window as a duration.
func (h HotkeyConfig) DoubleTapWindow() time.Duration {
	return msOrDefault(h.DoubleTapWindowMs, 300)
}

// Debounce returns the start debounce as a duration.
func (h HotkeyConfig) Debounce() time.Duration {
	return msOrDefault(h.DebounceMs, 250)
}

// MinHold returns the minimum hold duration.
func (h HotkeyConfig) MinHold() time.Duration {
	return msOrDefault(h.MinHoldMs, 500)
}

// SilenceConfig tunes the voice-activity silence detector.
type SilenceConfig struct {
	// Threshold is the normalised power level below which a meter sample
	// counts as silence. Default: 0.06.
	Threshold float64 `yaml:"threshold"`

	// WindowMs is the sustained quiet period after detected speech that
	// triggers a chunk boundary. Default: 3000.
	WindowMs int `yaml:"window_ms"`
}

// Window returns the silence window as a duration.
func (s SilenceConfig) Window() time.Duration {
	return msOrDefault(s.WindowMs, 3000)
}

// DictationConfig holds the behaviour toggles of the dictation flow itself.
type DictationConfig struct {
	// Language is the BCP-47 recognition language tag; empty auto-detects.
	Language string `yaml:"language"`

	// UserPrompt is free-form vocabulary/context text prepended to the
	// recognizer prefill prompt.
	UserPrompt string `yaml:"user_prompt"`

	// EnhancementEnabled routes finalized text through the LLM enhancer.
	EnhancementEnabled bool `yaml:"enhancement_enabled"`

	// OverlayEnabled hands output to the edit-review overlay instead of
	// pasting immediately.
	OverlayEnabled bool `yaml:"overlay_enabled"`

	// UseLiveFallback allows the live transcript to stand in for an empty
	// offline result.
	UseLiveFallback bool `yaml:"use_live_fallback"`

	// ScreenContextEnabled captures a screenshot at session start and feeds
	// its summary to prompt biasing and enhancement. Silently skipped when
	// the screen-capture permission is missing.
	ScreenContextEnabled bool `yaml:"screen_context_enabled"`
}

// HallucinationConfig is the locale-tuned hallucination filter policy.
// The phrase list and thresholds are configuration, not code: the defaults
// are tuned for a Chinese/English bilingual context and other locales are
// expected to override them.
type HallucinationConfig struct {
	// Phrases lists stock phrases the recognizer emits over silence.
	Phrases []string `yaml:"phrases"`

	// ShortTextLimit is the length (in runes) under which a text containing
	// a known phrase is treated as entirely hallucinated. Default: 30.
	ShortTextLimit int `yaml:"short_text_limit"`

	// MinRepeatRun is the minimum repetition count for the degenerate
	// repeated-pattern detector. Default: 6.
	MinRepeatRun int `yaml:"min_repeat_run"`
}

// AudioConfig describes the microphone capture backend. The default backend
// shells out to ffmpeg, so capture works anywhere ffmpeg can reach the
// default input device.
type AudioConfig struct {
	// Command is the capture binary. Default: "ffmpeg".
	Command string `yaml:"command"`

	// InputFormat is the ffmpeg input demuxer ("pulse", "alsa", "avfoundation",
	// "dshow"). Empty picks a platform default.
	InputFormat string `yaml:"input_format"`

	// InputDevice is the device name passed to the demuxer. Default: "default".
	InputDevice string `yaml:"input_device"`

	// SampleRateHz is the capture sample rate. Default: 16000.
	SampleRateHz int `yaml:"sample_rate_hz"`
}

// ProvidersConfig declares which backend implements each pipeline stage.
type ProvidersConfig struct {
	Recognizer ProviderEntry `yaml:"recognizer"`
	Enhancer   ProviderEntry `yaml:"enhancer"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field selects the implementation.
type ProviderEntry struct {
	// Name selects the implementation (e.g., "whisper", "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "large-v3", "nova-3", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// StorageConfig locates the persisted documents the engine reads and writes.
type StorageConfig struct {
	// DictionaryPath is the JSON custom-word dictionary document.
	DictionaryPath string `yaml:"dictionary_path"`

	// HistoryPath is the JSON correction-history document.
	HistoryPath string `yaml:"history_path"`

	// HistoryPostgresDSN, when set, stores correction history in PostgreSQL
	// instead of the JSON file.
	HistoryPostgresDSN string `yaml:"history_postgres_dsn"`

	// CacheTTLMs is how long dictionary reads are served from cache before
	// re-reading disk. Default: 3000.
	CacheTTLMs int `yaml:"cache_ttl_ms"`
}

// CacheTTL returns the dictionary cache TTL as a duration.
func (s StorageConfig) CacheTTL() time.Duration {
	return msOrDefault(s.CacheTTLMs, 3000)
}

// LearningConfig tunes the correction-learning engine.
type LearningConfig struct {
	// Threshold is the occurrence count at which a repeated correction is
	// promoted into the dictionary. Default: 2.
	Threshold int `yaml:"threshold"`

	// MinSimilarity is the Jaro-Winkler floor below which an edit is
	// treated as a rephrase rather than a correction. Default: 0.5.
	MinSimilarity float64 `yaml:"min_similarity"`
}

func msOrDefault(ms int, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
