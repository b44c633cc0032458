package deepgram

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/voxhold/voxhold/pkg/audio"
	"github.com/voxhold/voxhold/pkg/provider/recognizer"
)

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("want error for empty api key")
	}
}

func TestBuildStreamURL(t *testing.T) {
	p, err := New("key", WithModel("nova-3"), WithLanguage("zh"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := p.buildStreamURL(recognizer.StreamConfig{
		SampleRate:            16000,
		Channels:              1,
		VoiceActivityChunking: true,
	})
	if err != nil {
		t.Fatalf("buildStreamURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "wss" {
		t.Fatalf("scheme = %q, want wss", u.Scheme)
	}
	q := u.Query()
	for key, want := range map[string]string{
		"model":           "nova-3",
		"language":        "zh",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "true",
		"encoding":        "linear16",
		"vad_events":      "true",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestBuildStreamURLLanguageOverride(t *testing.T) {
	p, _ := New("key")
	raw, err := p.buildStreamURL(recognizer.StreamConfig{Language: "de"})
	if err != nil {
		t.Fatalf("buildStreamURL: %v", err)
	}
	if !strings.Contains(raw, "language=de") {
		t.Fatalf("url %q missing language override", raw)
	}
}

func TestPrefillKeywords(t *testing.T) {
	got := prefillKeywords("Kubernetes, ingress. kubernetes Ingress gRPC!")
	want := []string{"Kubernetes", "ingress", "gRPC"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keywords = %v, want %v", got, want)
		}
	}
}

func TestPrefillKeywordsCapped(t *testing.T) {
	var words []string
	for range 100 {
		words = append(words, "w"+strings.Repeat("x", len(words)))
	}
	got := prefillKeywords(strings.Join(words, " "))
	if len(got) != 50 {
		t.Fatalf("keywords = %d, want cap of 50", len(got))
	}
}

func TestTranscribePrerecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("content type = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-3" {
			t.Errorf("model = %q", got)
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":" hello from deepgram "}]}]}}`))
	}))
	defer srv.Close()

	p, err := New("secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := &audio.Recording{Samples: make([]float32, 1600), SampleRate: 16000}
	got, err := p.Transcribe(context.Background(), rec, recognizer.TranscribeOptions{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from deepgram" {
		t.Fatalf("transcript = %q", got)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("wrong", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	rec := &audio.Recording{Samples: make([]float32, 16), SampleRate: 16000}
	if _, err := p.Transcribe(context.Background(), rec, recognizer.TranscribeOptions{}); err == nil {
		t.Fatal("want error on 401")
	}
}

func TestTranscribeEmptyRecording(t *testing.T) {
	p, _ := New("key")
	got, err := p.Transcribe(context.Background(), &audio.Recording{}, recognizer.TranscribeOptions{})
	if err != nil || got != "" {
		t.Fatalf("Transcribe(empty) = %q, %v", got, err)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0}
	wav := encodeWAV(samples, 16000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(samples)*2)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != uint32(len(samples)*2) {
		t.Fatalf("data length = %d, want %d", dataLen, len(samples)*2)
	}
	// Full-scale positive sample clamps to 32767.
	last := int16(binary.LittleEndian.Uint16(wav[44+6 : 44+8]))
	if last != 32767 {
		t.Fatalf("last sample = %d, want 32767", last)
	}
}
