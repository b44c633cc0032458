package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestCleanTokens(t *testing.T) {
	p := &Provider{}
	cases := map[string]string{
		"[_BEG_] hello world [_TT_150]":   "hello world",
		"<|startoftranscript|>plain text": "plain text",
		"no markers at all":               "no markers at all",
		"":                                "",
		"[_SOT_][_TT_42]":                 "",
	}
	for in, want := range cases {
		if got := p.CleanTokens(in); got != want {
			t.Errorf("CleanTokens(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanTokensIdempotent(t *testing.T) {
	p := &Provider{}
	once := p.CleanTokens("[_BEG_] 你好 [_TT_99] 世界")
	if twice := p.CleanTokens(once); twice != once {
		t.Fatalf("not idempotent: %q then %q", once, twice)
	}
}

func TestPCMToFloat32(t *testing.T) {
	samples := pcmToFloat32(pcm16(0, 16384, -16384, 32767))
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(samples) != len(want) {
		t.Fatalf("len = %d, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestPCMToFloat32MonoDownmix(t *testing.T) {
	// Two stereo frames: (16384, 0) and (-16384, -16384).
	mono := pcmToFloat32Mono(pcm16(16384, 0, -16384, -16384), 2)
	want := []float32{0.25, -0.5}
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, mono[i], want[i])
		}
	}
}

func TestComputeRMS(t *testing.T) {
	if got := computeRMS(nil); got != 0 {
		t.Fatalf("rms of empty = %v", got)
	}
	if got := computeRMS(pcm16(1000, -1000, 1000, -1000)); math.Abs(got-1000) > 1e-9 {
		t.Fatalf("rms = %v, want 1000", got)
	}
}

func TestChunkDurationMs(t *testing.T) {
	// 16 kHz mono 16-bit: 32 bytes per millisecond.
	if got := chunkDurationMs(make([]byte, 3200), 16000, 1); got != 100 {
		t.Fatalf("duration = %d, want 100", got)
	}
	if got := chunkDurationMs(make([]byte, 3200), 0, 1); got != 0 {
		t.Fatalf("duration with zero rate = %d, want 0", got)
	}
}

func TestModelReadyMissingFile(t *testing.T) {
	p, err := New("/nonexistent/ggml-large-v3.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelReady() {
		t.Fatal("missing model reported ready")
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("want error for empty model path")
	}
}
