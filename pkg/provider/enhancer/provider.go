// Package enhancer defines the Provider interface for LLM-backed text
// enhancement.
//
// An enhancer takes a raw dictation transcript plus whatever context the
// session has gathered (a screenshot-derived summary of the frontmost
// application, the previous chunk's transcript, the live transcript) and
// returns a cleaned-up version: punctuation restored, fillers dropped,
// obvious mis-hearings repaired. It also exposes an image-analysis call used
// to turn a screenshot into that context summary in the first place.
//
// Implementations must be safe for concurrent use.
package enhancer

import (
	"context"
	"errors"
)

// ErrUnavailable is the connectivity-class failure: the enhancement service
// could not be reached at all. Callers treat it differently from a request
// that reached the service and failed — see [IsConnectivity].
var ErrUnavailable = errors.New("enhancement service unavailable")

// Context carries the session-derived material an enhancement request may
// draw on. All fields are optional.
type Context struct {
	// ScreenSummary is a short description of what is on screen, produced by
	// [Provider.AnalyzeImage] at session start.
	ScreenSummary string

	// PreviousChunk is the finalized transcript of the preceding chunk.
	PreviousChunk string

	// LiveTranscript is the real-time transcript accumulated since the last
	// chunk boundary.
	LiveTranscript string
}

// Request is one enhancement call.
type Request struct {
	// Text is the raw transcript to improve. Must be non-empty.
	Text string

	// Context is the optional surrounding material.
	Context Context

	// SystemPrompt overrides the provider's default enhancement instruction
	// when non-empty.
	SystemPrompt string
}

// Provider is the abstraction over any text-enhancement backend.
type Provider interface {
	// Enhance returns an improved version of req.Text. A connectivity-class
	// failure is reported by wrapping [ErrUnavailable].
	Enhance(ctx context.Context, req Request) (string, error)

	// AnalyzeImage describes image (PNG or JPEG bytes) according to prompt.
	// Used to summarise a screenshot into dictation context.
	AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error)

	// Available probes whether the service is currently reachable.
	Available(ctx context.Context) bool
}

// IsConnectivity reports whether err is a connectivity-class enhancement
// failure, i.e. the service was unreachable rather than rejecting the request.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
