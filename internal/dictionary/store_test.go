package dictionary

import (
	"path/filepath"
	"testing"
	"time"
)

func TestApplyReplacements(t *testing.T) {
	doc := &Document{Entries: []Entry{
		NewReplacement("他", "她"),
		NewReplacement("github", "GitHub"),
	}}
	doc.Entries[1].CaseSensitive = false

	got := doc.ApplyReplacements("他在 GITHUB 上写代码")
	if got != "她在 GitHub 上写代码" {
		t.Fatalf("result = %q", got)
	}
}

func TestApplyReplacementsSkipsDisabled(t *testing.T) {
	e := NewReplacement("foo", "bar")
	e.Enabled = false
	doc := &Document{Entries: []Entry{e}}

	if got := doc.ApplyReplacements("foo"); got != "foo" {
		t.Fatalf("result = %q, want disabled entry ignored", got)
	}
}

func TestPromptWords(t *testing.T) {
	disabled := NewPrompt("skipme")
	disabled.Enabled = false
	doc := &Document{Entries: []Entry{
		NewPrompt("Kubernetes"),
		disabled,
		NewReplacement("a", "b"),
	}}

	words := doc.PromptWords()
	if len(words) != 1 || words[0] != "Kubernetes" {
		t.Fatalf("prompt words = %v", words)
	}
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "dict.json"), time.Second)
	doc, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Entries) != 0 {
		t.Fatalf("entries = %v, want empty", doc.Entries)
	}
}

func TestStoreRoundTripAndCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.json")
	s := NewStore(path, time.Hour)

	if err := s.Add(NewPrompt("她"), NewReplacement("他", "她")); err != nil {
		t.Fatalf("add: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(doc.Entries))
	}
	if !doc.HasPrompt("她") || !doc.HasReplacement("他", "她") {
		t.Fatalf("entries not found in %+v", doc.Entries)
	}

	// Second load within TTL must return the identical cached document.
	doc2, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc2 != doc {
		t.Fatal("expected cached document within TTL")
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.json")
	s := NewStore(path, time.Hour)
	if err := s.Add(NewPrompt("x")); err != nil {
		t.Fatalf("add: %v", err)
	}

	doc, _ := s.Load()

	// Force the cache past its TTL via the injected clock.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	doc2, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc2 == doc {
		t.Fatal("expected a fresh read after TTL expiry")
	}
}

func TestStoreWriteInvalidatesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.json")
	s := NewStore(path, time.Hour)

	doc, _ := s.Load()
	if err := s.Add(NewPrompt("new")); err != nil {
		t.Fatalf("add: %v", err)
	}

	doc2, _ := s.Load()
	if doc2 == doc {
		t.Fatal("expected cache invalidation after write")
	}
	if len(doc2.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(doc2.Entries))
	}
}
