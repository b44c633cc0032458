package learn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/antzucaro/matchr"

	"github.com/voxhold/voxhold/internal/dictionary"
	"github.com/voxhold/voxhold/internal/learn/history"
)

const (
	// defaultThreshold is the occurrence count at which a repeated
	// correction is promoted to the dictionary.
	defaultThreshold = 2

	// defaultMinSimilarity is the Jaro-Winkler floor below which an edit is
	// treated as a rephrase, not a correction worth learning.
	defaultMinSimilarity = 0.5

	// shortRunLimit is the maximum rune count of a correction run that gets
	// expanded with surrounding context. Short runs are usually single
	// mis-heard characters; the context turns them into whole-word entries,
	// which matters for languages without whitespace word boundaries.
	shortRunLimit = 2

	// contextPad is how many runes of context expand each side of a short run.
	contextPad = 2

	// rephraseGateMin is the minimum original length (runes) before the
	// rephrase similarity gate applies.
	rephraseGateMin = 6
)

// Promotion is one dictionary promotion, published on [Engine.Promotions].
type Promotion struct {
	Original  string
	Corrected string
}

// Option configures an [Engine].
type Option func(*Engine)

// WithThreshold overrides the promotion occurrence threshold. Default: 2.
func WithThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithMinSimilarity overrides the rephrase-gate similarity floor.
// Default: 0.5.
func WithMinSimilarity(f float64) Option {
	return func(e *Engine) {
		if f >= 0 && f <= 1 {
			e.minSimilarity = f
		}
	}
}

// Engine compares user-edited final text against the engine's output and
// grows the custom dictionary from repeated corrections.
//
// All methods are safe for concurrent use.
type Engine struct {
	store         history.Store
	dict          *dictionary.Store
	threshold     int
	minSimilarity float64
	promotions    chan Promotion
}

// New creates an Engine writing observations to store and promotions to dict.
func New(store history.Store, dict *dictionary.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		dict:          dict,
		threshold:     defaultThreshold,
		minSimilarity: defaultMinSimilarity,
		promotions:    make(chan Promotion, 16),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Promotions returns the channel on which dictionary promotions are
// published. Delivery is best-effort: when no consumer keeps up, promotions
// are dropped from the channel (the dictionary write itself always happens).
func (e *Engine) Promotions() <-chan Promotion { return e.promotions }

// RecordCorrection observes one user edit: original is the text the engine
// delivered, edited is what the user turned it into.
//
// Identical strings are a no-op. Wholesale rewrites — whole-string
// Jaro-Winkler similarity below the configured floor — are treated as
// rephrasing rather than correction and skipped entirely. Everything else
// is diffed at character level; each extracted pair is deduplicated into
// the history store, and a pair reaching the occurrence threshold is
// promoted into the dictionary exactly once: a replacement entry for the
// pair plus, if absent, a prompt entry for the corrected form.
func (e *Engine) RecordCorrection(ctx context.Context, original, edited string) error {
	if original == edited || original == "" || edited == "" {
		return nil
	}

	// The rephrase gate only makes sense on text long enough to be
	// rephrased; short strings score near zero similarity even for a
	// single-character fix.
	if len([]rune(original)) > rephraseGateMin {
		if sim := matchr.JaroWinkler(original, edited, true); sim < e.minSimilarity {
			slog.Debug("edit looks like a rephrase, not learning",
				"similarity", fmt.Sprintf("%.2f", sim))
			return nil
		}
	}

	ra, rb := []rune(original), []rune(edited)
	for _, cand := range Candidates(original, edited) {
		if len([]rune(cand.Original)) <= shortRunLimit && len([]rune(cand.Corrected)) <= shortRunLimit {
			cand = cand.expand(ra, rb, contextPad)
		}
		if cand.Original == "" || cand.Corrected == "" || cand.Original == cand.Corrected {
			continue
		}
		if err := e.observe(ctx, cand.Original, cand.Corrected); err != nil {
			return err
		}
	}
	return nil
}

// observe records one pair and promotes it when it crosses the threshold.
func (e *Engine) observe(ctx context.Context, original, corrected string) error {
	rec, err := e.store.Upsert(ctx, original, corrected)
	if err != nil {
		return fmt.Errorf("learn: %w", err)
	}

	if rec.OccurrenceCount < e.threshold || rec.AddedToDictionary {
		return nil
	}

	doc, err := e.dict.Load()
	if err != nil {
		return fmt.Errorf("learn: %w", err)
	}
	entries := []dictionary.Entry{dictionary.NewReplacement(original, corrected)}
	if !doc.HasPrompt(corrected) {
		entries = append(entries, dictionary.NewPrompt(corrected))
	}
	if err := e.dict.Add(entries...); err != nil {
		return fmt.Errorf("learn: %w", err)
	}
	if err := e.store.MarkAdded(ctx, rec.ID); err != nil {
		return fmt.Errorf("learn: %w", err)
	}

	slog.Info("correction promoted to dictionary",
		"original", original, "corrected", corrected, "count", rec.OccurrenceCount)

	select {
	case e.promotions <- Promotion{Original: original, Corrected: corrected}:
	default:
	}
	return nil
}
