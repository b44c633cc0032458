// Package mock provides a scriptable [recognizer.Provider] for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

// TranscribeCall records the arguments of one Transcribe invocation.
type TranscribeCall struct {
	Duration float64
	Opts     recognizer.TranscribeOptions
}

// Provider is an in-memory recognizer. Streaming sessions replay scripted
// updates pushed via [Session.Emit]; offline passes pop results from a queue.
type Provider struct {
	mu sync.Mutex

	// results is the FIFO of Transcribe return values. When empty,
	// Transcribe returns TranscribeDefault.
	results []string

	// TranscribeDefault is returned when no queued result remains.
	TranscribeDefault string

	// TranscribeErr, when non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// StartStreamErr, when non-nil, is returned by StartStream.
	StartStreamErr error

	// Calls records every Transcribe invocation in order.
	Calls []TranscribeCall

	// sessions holds every opened stream in order.
	sessions []*Session
}

var _ recognizer.Provider = (*Provider)(nil)

// New returns an empty mock Provider.
func New() *Provider {
	return &Provider{}
}

// QueueResult appends a Transcribe result to the FIFO.
func (p *Provider) QueueResult(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, text)
}

// Sessions returns every stream opened so far, in order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := &Session{
		Config:  cfg,
		updates: make(chan recognizer.StreamUpdate, 64),
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *Provider) Transcribe(ctx context.Context, rec *audio.Recording, opts recognizer.TranscribeOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Duration: rec.Duration().Seconds(), Opts: opts})
	if p.TranscribeErr != nil {
		return "", p.TranscribeErr
	}
	if len(p.results) > 0 {
		r := p.results[0]
		p.results = p.results[1:]
		return r, nil
	}
	return p.TranscribeDefault, nil
}

func (p *Provider) Prewarm(ctx context.Context, onProgress func(float64)) error {
	if onProgress != nil {
		onProgress(1.0)
	}
	return nil
}

func (p *Provider) ModelReady() bool { return true }

func (p *Provider) CleanTokens(text string) string { return text }

// Session is a mock stream handle.
type Session struct {
	Config recognizer.StreamConfig

	mu      sync.Mutex
	closed  bool
	updates chan recognizer.StreamUpdate

	// Sent accumulates every audio chunk passed to SendAudio.
	Sent [][]byte
}

var _ recognizer.StreamHandle = (*Session)(nil)

// Emit delivers an update to the session's consumer. Emitting on a closed
// session is a silent no-op, mirroring a late backend callback.
func (s *Session) Emit(u recognizer.StreamUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.updates <- u
}

// SentAudio returns a copy of every chunk received so far.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock recognizer: session closed")
	}
	s.Sent = append(s.Sent, chunk)
	return nil
}

func (s *Session) Updates() <-chan recognizer.StreamUpdate { return s.updates }

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.updates)
	return nil
}
