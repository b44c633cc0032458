package enhance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/voxhold/voxhold/pkg/provider/enhancer"
	"github.com/voxhold/voxhold/pkg/provider/enhancer/mock"
)

func TestEnhanceSuccess(t *testing.T) {
	prov := mock.New()
	p := NewPipeline(prov, nil)

	res, err := p.Enhance(context.Background(), enhancer.Request{Text: "raw words"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Enhanced || res.Text != "enhanced: raw words" {
		t.Fatalf("result = %+v", res)
	}
}

func TestEnhanceConnectivityFailureFallsBackToRaw(t *testing.T) {
	prov := mock.New()
	prov.AvailableResult = false
	prov.EnhanceFn = func(enhancer.Request) (string, error) {
		return "", fmt.Errorf("dial: %w", enhancer.ErrUnavailable)
	}
	p := NewPipeline(prov, nil)

	res, err := p.Enhance(context.Background(), enhancer.Request{Text: "raw words"})
	if !errors.Is(err, enhancer.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if res.Enhanced || res.Text != "raw words" {
		t.Fatalf("result = %+v, want raw fallback", res)
	}
	if prov.AvailabilityChecks != 1 {
		t.Fatalf("availability checks = %d, want 1", prov.AvailabilityChecks)
	}
}

func TestEnhanceGenericFailureSwallowed(t *testing.T) {
	prov := mock.New()
	prov.EnhanceFn = func(enhancer.Request) (string, error) {
		return "", errors.New("model refused")
	}
	p := NewPipeline(prov, nil)

	res, err := p.Enhance(context.Background(), enhancer.Request{Text: "raw words"})
	if err != nil {
		t.Fatalf("generic failures must not propagate, got %v", err)
	}
	if res.Enhanced || res.Text != "raw words" {
		t.Fatalf("result = %+v, want raw fallback", res)
	}
	if prov.AvailabilityChecks != 0 {
		t.Fatalf("availability checks = %d, want none", prov.AvailabilityChecks)
	}
}

func TestEnhanceEmptyProviderOutputFallsBack(t *testing.T) {
	prov := mock.New()
	prov.EnhanceFn = func(enhancer.Request) (string, error) { return "  \n", nil }
	p := NewPipeline(prov, nil)

	res, err := p.Enhance(context.Background(), enhancer.Request{Text: "raw words"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enhanced || res.Text != "raw words" {
		t.Fatalf("result = %+v, want raw fallback", res)
	}
}

func TestEnhanceSkipsEmptyInput(t *testing.T) {
	prov := mock.New()
	p := NewPipeline(prov, nil)

	res, err := p.Enhance(context.Background(), enhancer.Request{Text: "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enhanced {
		t.Fatal("empty input must not be enhanced")
	}
	if len(prov.Requests) != 0 {
		t.Fatalf("provider called %d times for empty input", len(prov.Requests))
	}
}
