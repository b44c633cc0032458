package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhold/voxhold/pkg/provider/enhancer"
)

// Result is the outcome of one pipeline run.
type Result struct {
	// Text is the text to deliver. Always usable: on any failure it carries
	// the raw input, never the empty string (unless the input was empty).
	Text string

	// Enhanced reports whether Text came from the enhancement provider
	// rather than falling back to the raw input.
	Enhanced bool
}

// Pipeline routes finalized transcripts through an [enhancer.Provider],
// degrading to the raw text whenever the provider fails. An utterance is
// never dropped: the caller always gets something to deliver.
type Pipeline struct {
	provider enhancer.Provider
	logger   *slog.Logger
}

// NewPipeline wraps provider. logger may be nil.
func NewPipeline(provider enhancer.Provider, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{provider: provider, logger: logger}
}

// Enhance runs req through the provider. Three outcomes:
//
//   - success: the improved text, Enhanced=true, nil error.
//   - connectivity failure: the raw text plus an error wrapping
//     [enhancer.ErrUnavailable], after re-probing availability so the caller
//     can surface the outage. The raw text is still deliverable.
//   - any other failure: the raw text and a nil error; the failure is logged
//     and swallowed because a degraded transcript beats a lost one.
func (p *Pipeline) Enhance(ctx context.Context, req enhancer.Request) (Result, error) {
	raw := Result{Text: req.Text}
	if strings.TrimSpace(req.Text) == "" {
		return raw, nil
	}

	improved, err := p.provider.Enhance(ctx, req)
	if err != nil {
		if enhancer.IsConnectivity(err) {
			reachable := p.provider.Available(ctx)
			p.logger.WarnContext(ctx, "enhancement service unreachable, delivering raw text",
				"error", err, "reachable_now", reachable)
			return raw, fmt.Errorf("enhance: %w", enhancer.ErrUnavailable)
		}
		p.logger.WarnContext(ctx, "enhancement failed, delivering raw text", "error", err)
		return raw, nil
	}
	improved = strings.TrimSpace(improved)
	if improved == "" {
		p.logger.WarnContext(ctx, "enhancement returned empty text, delivering raw text")
		return raw, nil
	}
	return Result{Text: improved, Enhanced: true}, nil
}

// AnalyzeImage summarises a screenshot through the provider's vision call.
func (p *Pipeline) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	return p.provider.AnalyzeImage(ctx, image, prompt)
}
