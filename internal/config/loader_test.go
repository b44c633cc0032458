package config

import (
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  log_level: debug
  metrics_addr: ":9102"
hotkey:
  key: f5
  modifiers: [ctrl]
  double_tap_window_ms: 280
  min_hold_ms: 400
silence:
  threshold: 0.08
  window_ms: 3000
dictation:
  language: zh
  enhancement_enabled: true
  use_live_fallback: true
providers:
  recognizer:
    name: whisper
    model: large-v3
  enhancer:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
storage:
  dictionary_path: /tmp/dict.json
  history_path: /tmp/history.json
learning:
  threshold: 2
  min_similarity: 0.5
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hotkey.Key != "f5" {
		t.Fatalf("hotkey.key = %q, want f5", cfg.Hotkey.Key)
	}
	if got := cfg.Hotkey.DoubleTapWindow(); got != 280*time.Millisecond {
		t.Fatalf("double tap window = %v, want 280ms", got)
	}
	if got := cfg.Hotkey.Debounce(); got != 250*time.Millisecond {
		t.Fatalf("debounce default = %v, want 250ms", got)
	}
	if !cfg.Dictation.EnhancementEnabled {
		t.Fatal("enhancement_enabled not parsed")
	}
	if cfg.Providers.Enhancer.Model != "gpt-4o-mini" {
		t.Fatalf("enhancer model = %q", cfg.Providers.Enhancer.Model)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("hotkey:\n  keyy: f5\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateEmptyChord(t *testing.T) {
	cfg := &Config{}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty chord")
	}
	if !strings.Contains(err.Error(), "hotkey") {
		t.Fatalf("err = %v, want hotkey complaint", err)
	}
}

func TestValidateThresholdRange(t *testing.T) {
	cfg := &Config{
		Hotkey:  HotkeyConfig{Key: "f5"},
		Silence: SilenceConfig{Threshold: 1.5},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for out-of-range silence threshold")
	}
}

func TestValidateEnhancementRequiresProvider(t *testing.T) {
	cfg := &Config{
		Hotkey:    HotkeyConfig{Key: "f5"},
		Dictation: DictationConfig{EnhancementEnabled: true},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when enhancement is enabled without a provider")
	}
}
