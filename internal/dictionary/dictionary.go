// Package dictionary manages the shared custom-word dictionary.
//
// The dictionary is a JSON document with two kinds of entries: prompt words
// that bias the recognizer toward expected vocabulary, and replacement pairs
// applied to finalized output text. It sits on the hot path of every
// recognizer prompt build, so reads go through a short-TTL cache; writes
// invalidate the cache immediately.
package dictionary

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryKind discriminates the two dictionary entry variants.
type EntryKind string

const (
	// KindPrompt biases the recognizer prompt toward Word.
	KindPrompt EntryKind = "prompt"

	// KindReplacement rewrites Original to Target in output text.
	KindReplacement EntryKind = "replacement"
)

// Entry is one custom-word dictionary entry.
type Entry struct {
	ID   string    `json:"id"`
	Kind EntryKind `json:"kind"`

	// Word is the prompt-bias vocabulary item. Only set for KindPrompt.
	Word string `json:"word,omitempty"`

	// Original and Target are the replacement pair. Only set for
	// KindReplacement.
	Original string `json:"original,omitempty"`
	Target   string `json:"target,omitempty"`

	Enabled       bool      `json:"enabled"`
	CaseSensitive bool      `json:"case_sensitive"`
	AddedAt       time.Time `json:"added_at"`
}

// NewPrompt creates an enabled prompt entry for word.
func NewPrompt(word string) Entry {
	return Entry{
		ID:      uuid.NewString(),
		Kind:    KindPrompt,
		Word:    word,
		Enabled: true,
		AddedAt: time.Now(),
	}
}

// NewReplacement creates an enabled case-sensitive replacement entry.
func NewReplacement(original, target string) Entry {
	return Entry{
		ID:            uuid.NewString(),
		Kind:          KindReplacement,
		Original:      original,
		Target:        target,
		Enabled:       true,
		CaseSensitive: true,
		AddedAt:       time.Now(),
	}
}

// Document is the full dictionary content.
type Document struct {
	Entries []Entry `json:"entries"`
}

// PromptWords returns the enabled prompt-bias vocabulary.
func (d *Document) PromptWords() []string {
	var out []string
	for _, e := range d.Entries {
		if e.Kind == KindPrompt && e.Enabled && e.Word != "" {
			out = append(out, e.Word)
		}
	}
	return out
}

// HasPrompt reports whether an enabled or disabled prompt entry for word
// already exists.
func (d *Document) HasPrompt(word string) bool {
	for _, e := range d.Entries {
		if e.Kind == KindPrompt && e.Word == word {
			return true
		}
	}
	return false
}

// HasReplacement reports whether a replacement entry for the pair exists.
func (d *Document) HasReplacement(original, target string) bool {
	for _, e := range d.Entries {
		if e.Kind == KindReplacement && e.Original == original && e.Target == target {
			return true
		}
	}
	return false
}

// ApplyReplacements rewrites text with every enabled replacement entry.
// Case-insensitive entries match ignoring case but substitute the target
// verbatim. Entries apply in document order.
func (d *Document) ApplyReplacements(text string) string {
	for _, e := range d.Entries {
		if e.Kind != KindReplacement || !e.Enabled || e.Original == "" {
			continue
		}
		if e.CaseSensitive {
			text = strings.ReplaceAll(text, e.Original, e.Target)
			continue
		}
		text = replaceAllFold(text, e.Original, e.Target)
	}
	return text
}

// replaceAllFold is a case-insensitive ReplaceAll. It slides a rune window
// over the text with EqualFold comparisons; adequate for the short entry
// strings a dictionary holds.
func replaceAllFold(text, original, target string) string {
	rt := []rune(text)
	olen := len([]rune(original))
	if olen == 0 || olen > len(rt) {
		return text
	}

	var b strings.Builder
	for i := 0; i < len(rt); {
		if i+olen <= len(rt) && strings.EqualFold(string(rt[i:i+olen]), original) {
			b.WriteString(target)
			i += olen
			continue
		}
		b.WriteRune(rt[i])
		i++
	}
	return b.String()
}
