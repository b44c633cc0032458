// Package deepgram implements [recognizer.Provider] on the Deepgram API:
// the streaming WebSocket endpoint for live recognition and the
// prerecorded HTTP endpoint for the offline pass.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

const (
	streamEndpoint      = "wss://api.deepgram.com/v1/listen"
	prerecordedEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel        = "nova-3"
	defaultLanguage     = "en"
	defaultSampleRate   = 16000
	requestTimeout      = 60 * time.Second
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithLanguage sets the default BCP-47 language code.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		if language != "" {
			p.language = language
		}
	}
}

// WithHTTPClient overrides the HTTP client used for the offline pass.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithBaseURL overrides both API endpoints; scheme is adjusted per call.
// Intended for tests and self-hosted deployments.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.baseURL = base }
}

// Provider implements recognizer.Provider backed by Deepgram.
type Provider struct {
	apiKey   string
	model    string
	language string
	baseURL  string
	client   *http.Client
}

var _ recognizer.Provider = (*Provider)(nil)

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		client:   &http.Client{Timeout: requestTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ModelReady always reports true: the model is hosted.
func (p *Provider) ModelReady() bool { return true }

// Prewarm is a no-op for the hosted API.
func (p *Provider) Prewarm(ctx context.Context, onProgress func(float64)) error {
	if onProgress != nil {
		onProgress(1)
	}
	return ctx.Err()
}

// CleanTokens returns text unchanged: Deepgram output carries no internal
// markers.
func (p *Provider) CleanTokens(text string) string { return text }

// StartStream opens a streaming session over WebSocket.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	wsURL, err := p.buildStreamURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:    conn,
		updates: make(chan recognizer.StreamUpdate, 64),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// Transcribe runs the offline pass via the prerecorded endpoint. The
// prefill prompt becomes keyword boosts: Deepgram has no prompt biasing,
// but boosting the expected vocabulary serves the same purpose.
func (p *Provider) Transcribe(ctx context.Context, rec *audio.Recording, opts recognizer.TranscribeOptions) (string, error) {
	if rec == nil || len(rec.Samples) == 0 {
		return "", nil
	}

	reqURL, err := p.buildPrerecordedURL(opts)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	body := encodeWAV(rec.Samples, rec.SampleRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("deepgram: transcribe: status %d: %s", resp.StatusCode, msg)
	}

	var parsed prerecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}
	return parsed.transcript(), nil
}

func (p *Provider) buildStreamURL(cfg recognizer.StreamConfig) (string, error) {
	base := p.baseURL
	if base == "" {
		base = streamEndpoint
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = defaultSampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.VoiceActivityChunking {
		q.Set("vad_events", "true")
		q.Set("endpointing", "300")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) buildPrerecordedURL(opts recognizer.TranscribeOptions) (string, error) {
	base := p.baseURL
	if base == "" {
		base = prerecordedEndpoint
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	for _, word := range prefillKeywords(opts.Prefill) {
		q.Add("keywords", word)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// prefillKeywords extracts distinct words from a prefill prompt for
// keyword boosting, capped so oversized prompts do not blow the URL.
func prefillKeywords(prefill string) []string {
	const maxKeywords = 50
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(prefill) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || seen[strings.ToLower(w)] {
			continue
		}
		seen[strings.ToLower(w)] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// ---- session ----

// streamResponse is the JSON structure of a Deepgram Results event.
type streamResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// prerecordedResponse is the JSON shape of a prerecorded transcription.
type prerecordedResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r prerecordedResponse) transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Results.Channels[0].Alternatives[0].Transcript)
}

// session is a live Deepgram streaming session.
type session struct {
	conn    *websocket.Conn
	updates chan recognizer.StreamUpdate
	audio   chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ recognizer.StreamHandle = (*session)(nil)

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

// Updates returns the channel of incremental results.
func (s *session) Updates() <-chan recognizer.StreamUpdate { return s.updates }

// Close terminates the session cleanly, flushing pending audio first.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain buffered audio before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives Results events and folds them into StreamUpdate
// values: finals extend the confirmed segment list, interim hypotheses
// replace the unconfirmed tail wholesale.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.updates)

	var confirmed []string

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation.
			return
		}

		var resp streamResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
		if text == "" {
			continue
		}

		var u recognizer.StreamUpdate
		if resp.IsFinal {
			confirmed = append(confirmed, text)
			u = recognizer.StreamUpdate{
				ConfirmedSegments: append([]string(nil), confirmed...),
				Text:              strings.Join(confirmed, " "),
			}
		} else {
			u = recognizer.StreamUpdate{
				ConfirmedSegments:   append([]string(nil), confirmed...),
				UnconfirmedSegments: []string{text},
				Text:                strings.Join(append(append([]string(nil), confirmed...), text), " "),
			}
		}

		select {
		case s.updates <- u:
		case <-s.done:
			return
		}
	}
}

// encodeWAV wraps float32 mono samples in a 16-bit PCM WAV container.
func encodeWAV(samples []float32, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	writeU32 := func(v uint32) {
		buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
	writeU16 := func(v uint16) {
		buf.Write([]byte{byte(v), byte(v >> 8)})
	}

	buf.WriteString("RIFF")
	writeU32(uint32(36 + dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeU32(16)
	writeU16(1) // PCM
	writeU16(1) // mono
	writeU32(uint32(sampleRate))
	writeU32(uint32(sampleRate * 2))
	writeU16(2)
	writeU16(16)
	buf.WriteString("data")
	writeU32(uint32(dataLen))

	for _, f := range samples {
		v := int16(max(min(float64(f), 1), -1) * 32767)
		writeU16(uint16(v))
	}
	return buf.Bytes()
}
