// Package mock provides a scriptable [enhancer.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxhold/voxhold/pkg/provider/enhancer"
)

// Provider is an in-memory enhancer. By default it upper-cases nothing and
// echoes the input with a marker so tests can tell enhanced output apart.
type Provider struct {
	mu sync.Mutex

	// EnhanceFn, when non-nil, replaces the default echo behaviour.
	EnhanceFn func(req enhancer.Request) (string, error)

	// AnalyzeResult is returned by AnalyzeImage.
	AnalyzeResult string

	// AvailableResult is returned by Available. Defaults to true via New.
	AvailableResult bool

	// Requests records every Enhance call in order.
	Requests []enhancer.Request

	// AvailabilityChecks counts Available calls.
	AvailabilityChecks int
}

var _ enhancer.Provider = (*Provider)(nil)

// New returns a mock Provider that reports the service as available.
func New() *Provider {
	return &Provider{AvailableResult: true}
}

func (p *Provider) Enhance(ctx context.Context, req enhancer.Request) (string, error) {
	p.mu.Lock()
	fn := p.EnhanceFn
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return "enhanced: " + req.Text, nil
}

func (p *Provider) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AnalyzeResult, nil
}

func (p *Provider) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AvailabilityChecks++
	return p.AvailableResult
}
