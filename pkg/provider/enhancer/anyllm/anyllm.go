// Package anyllm provides a text enhancer backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "llama3.2", anyllmlib.WithBaseURL("http://localhost:11434"))
//	p, err := anyllm.NewAnthropic("claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxhold/voxhold/pkg/provider/enhancer"
)

// defaultSystemPrompt mirrors the OpenAI enhancer's instruction so switching
// backends does not change the enhancement contract.
const defaultSystemPrompt = `You clean up dictated text. Fix punctuation, casing and obvious speech
recognition errors, and remove filler words. Preserve the speaker's wording
and language. Output only the corrected text with no commentary.`

// Provider implements enhancer.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ enhancer.Provider = (*Provider)(nil)

// New creates a new Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama", "deepseek",
// "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o-mini", "llama3.2").
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend falls
// back to its usual environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// NewOpenAI creates a Provider backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// NewAnthropic creates a Provider backed by Anthropic.
// Without options, it reads the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewGemini creates a Provider backed by Google Gemini.
// Without options, it reads the GEMINI_API_KEY or GOOGLE_API_KEY environment variable.
func NewGemini(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("gemini", model, opts...)
}

// NewOllama creates a Provider backed by Ollama (local inference).
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Enhance implements enhancer.Provider.
func (p *Provider) Enhance(ctx context.Context, req enhancer.Request) (string, error) {
	if req.Text == "" {
		return "", fmt.Errorf("anyllm: request text must not be empty")
	}

	system := req.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: buildUserPrompt(req)},
		},
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}

// AnalyzeImage implements enhancer.Provider. any-llm-go's unified message
// format is text-only, so image analysis is not offered through this backend;
// callers fall back to dictating without screen context.
func (p *Provider) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	return "", fmt.Errorf("anyllm: image analysis is not supported by this backend")
}

// Available implements enhancer.Provider. any-llm-go has no cheap health
// endpoint shared across backends, so the probe is a one-token completion.
func (p *Provider) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	one := 1
	_, err := p.backend.Completion(probe, anyllmlib.CompletionParams{
		Model:     p.model,
		Messages:  []anyllmlib.Message{{Role: anyllmlib.RoleUser, Content: "ping"}},
		MaxTokens: &one,
	})
	return err == nil
}

// buildUserPrompt assembles the transcript plus any session context into a
// single user message.
func buildUserPrompt(req enhancer.Request) string {
	var b strings.Builder

	if c := req.Context.ScreenSummary; c != "" {
		fmt.Fprintf(&b, "The user is currently working in: %s\n\n", c)
	}
	if c := req.Context.PreviousChunk; c != "" {
		fmt.Fprintf(&b, "Preceding dictation (already delivered, do not repeat): %s\n\n", c)
	}
	if c := req.Context.LiveTranscript; c != "" && c != req.Text {
		fmt.Fprintf(&b, "Real-time transcript of the same speech, for cross-reference: %s\n\n", c)
	}
	fmt.Fprintf(&b, "Transcript to clean up:\n%s", req.Text)
	return b.String()
}

// classify wraps transport-level failures in enhancer.ErrUnavailable so the
// session layer can fall back to the raw transcript.
func classify(err error) error {
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("anyllm: %w: %w", enhancer.ErrUnavailable, err)
	}
	return fmt.Errorf("anyllm: %w", err)
}
