package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer": {"whisper", "deepgram", "mock"},
	"enhancer":   {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "mock"},
}

// validModifiers are the recognised hotkey modifier flag names.
var validModifiers = []string{"ctrl", "alt", "shift", "cmd", "fn"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// A chord with neither a literal key nor modifiers can never fire.
	if cfg.Hotkey.Key == "" && len(cfg.Hotkey.Modifiers) == 0 {
		errs = append(errs, errors.New("hotkey: key and modifiers are both empty"))
	}
	for _, m := range cfg.Hotkey.Modifiers {
		if !slices.Contains(validModifiers, m) {
			errs = append(errs, fmt.Errorf("hotkey.modifiers: unknown modifier %q; valid values: ctrl, alt, shift, cmd, fn", m))
		}
	}

	if cfg.Silence.Threshold < 0 || cfg.Silence.Threshold > 1 {
		errs = append(errs, fmt.Errorf("silence.threshold %v is outside [0, 1]", cfg.Silence.Threshold))
	}

	if cfg.Learning.MinSimilarity < 0 || cfg.Learning.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("learning.min_similarity %v is outside [0, 1]", cfg.Learning.MinSimilarity))
	}

	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("enhancer", cfg.Providers.Enhancer.Name)

	if cfg.Dictation.EnhancementEnabled && cfg.Providers.Enhancer.Name == "" {
		errs = append(errs, errors.New("dictation.enhancement_enabled is set but providers.enhancer is not configured"))
	}

	if cfg.Storage.HistoryPath == "" && cfg.Storage.HistoryPostgresDSN == "" {
		slog.Warn("no correction-history storage configured; corrections will not persist across restarts")
	}

	return errors.Join(errs...)
}

// validateProviderName warns (but does not fail) on provider names that are
// not built in, since external adapters may register additional names.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name)
	}
}
