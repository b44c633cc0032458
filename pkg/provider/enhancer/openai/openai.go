// Package openai provides a text enhancer backed by the OpenAI API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/voxhold/voxhold/pkg/provider/enhancer"
)

// defaultSystemPrompt is the enhancement instruction used when the request
// does not carry its own. It asks for a cleaned transcript, nothing more:
// the model must not answer questions or expand on the dictated content.
const defaultSystemPrompt = `You clean up dictated text. Fix punctuation, casing and obvious speech
recognition errors, and remove filler words. Preserve the speaker's wording
and language. Output only the corrected text with no commentary.`

// Provider implements enhancer.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

var _ enhancer.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point
// the provider at an OpenAI-compatible local server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI enhancement Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Enhance implements enhancer.Provider.
func (p *Provider) Enhance(ctx context.Context, req enhancer.Request) (string, error) {
	if req.Text == "" {
		return "", fmt.Errorf("openai: request text must not be empty")
	}

	system := req.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(buildUserPrompt(req)),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AnalyzeImage implements enhancer.Provider. The image is sent inline as a
// base64 data URL, so it never touches disk or a separate upload endpoint.
func (p *Provider) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("openai: image must not be empty")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image),
		base64.StdEncoding.EncodeToString(image))

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
				oai.TextContentPart(prompt),
				oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("image analysis: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Available implements enhancer.Provider.
func (p *Provider) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.Models.List(probe)
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

// classify wraps transport-level failures in enhancer.ErrUnavailable. An
// *oai.Error means the request reached the service and was rejected, which
// is not a connectivity failure.
func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", err)
	}
	return fmt.Errorf("openai: %w: %w", enhancer.ErrUnavailable, err)
}
