// Package enhance post-processes finalized transcripts: it strips
// recognizer hallucinations and routes text through the optional
// LLM enhancement provider with graceful fallback to the raw input.
package enhance

import (
	"strings"
	"unicode/utf8"

	"github.com/voxhold/voxhold/internal/config"
)

// DefaultPhrases lists stock phrases speech models emit over silence or
// trailing room noise. Tuned for a Chinese/English bilingual setup;
// deployments targeting other locales override the list in configuration.
var DefaultPhrases = []string{
	"谢谢观看",
	"谢谢大家",
	"请不吝点赞 订阅 转发 打赏支持明镜与点点栏目",
	"字幕由Amara.org社区提供",
	"由 Amara.org 社区提供的字幕",
	"Thanks for watching",
	"Thank you for watching",
	"Subtitles by the Amara.org community",
	"Please subscribe",
}

const (
	defaultShortTextLimit = 30
	defaultMinRepeatRun   = 6
	maxRepeatPatternLen   = 4
)

// Filter detects and removes recognizer hallucinations: stock phrases the
// model produces over silence, and degenerate repeated-character output.
// The phrase list and thresholds come from configuration.
type Filter struct {
	phrases        []string
	shortTextLimit int
	minRepeatRun   int
}

// NewFilter builds a Filter from cfg, falling back to [DefaultPhrases]
// and the default thresholds for any zero-valued field.
func NewFilter(cfg config.HallucinationConfig) *Filter {
	f := &Filter{
		phrases:        cfg.Phrases,
		shortTextLimit: cfg.ShortTextLimit,
		minRepeatRun:   cfg.MinRepeatRun,
	}
	if len(f.phrases) == 0 {
		f.phrases = DefaultPhrases
	}
	if f.shortTextLimit <= 0 {
		f.shortTextLimit = defaultShortTextLimit
	}
	if f.minRepeatRun <= 0 {
		f.minRepeatRun = defaultMinRepeatRun
	}
	return f
}

// IsHallucination reports whether text as a whole is recognizer noise:
// an exact known phrase, a short text containing a known phrase, or a
// degenerate repeated pattern.
func (f *Filter) IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	short := utf8.RuneCountInString(trimmed) < f.shortTextLimit
	for _, p := range f.phrases {
		if trimmed == p {
			return true
		}
		if short && strings.Contains(trimmed, p) {
			return true
		}
	}
	return f.isDegenerateRepeat(trimmed)
}

// Clean strips hallucinated content from text. Texts judged entirely
// hallucinated collapse to the empty string; otherwise every known-phrase
// occurrence is removed. Cleaning an already-clean string is a no-op.
func (f *Filter) Clean(text string) string {
	if f.IsHallucination(text) {
		return ""
	}
	out := text
	for {
		next := out
		for _, p := range f.phrases {
			next = strings.ReplaceAll(next, p, "")
		}
		next = strings.TrimSpace(next)
		if next == out {
			break
		}
		out = next
	}
	// Stripping can expose a remainder that is itself noise, e.g. a
	// degenerate repeat that only looked like speech with the phrase
	// attached. Re-classify so Clean(Clean(x)) == Clean(x).
	if f.IsHallucination(out) {
		return ""
	}
	return out
}

// EndsWithPhrase reports whether text ends with one of the known phrases.
// Used to skip stripping when live-transcript evidence shows the speaker
// genuinely said the phrase.
func (f *Filter) EndsWithPhrase(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, p := range f.phrases {
		if strings.HasSuffix(trimmed, p) {
			return true
		}
	}
	return false
}

// isDegenerateRepeat reports whether s is a short pattern (up to
// maxRepeatPatternLen runes) repeated at least minRepeatRun times with
// nothing else around it.
func (f *Filter) isDegenerateRepeat(s string) bool {
	runes := []rune(s)
	for patLen := 1; patLen <= maxRepeatPatternLen; patLen++ {
		if len(runes) < patLen*f.minRepeatRun || len(runes)%patLen != 0 {
			continue
		}
		pat := runes[:patLen]
		whole := true
		for i := patLen; i < len(runes) && whole; i += patLen {
			for j := 0; j < patLen; j++ {
				if runes[i+j] != pat[j] {
					whole = false
					break
				}
			}
		}
		if whole {
			return true
		}
	}
	return false
}
