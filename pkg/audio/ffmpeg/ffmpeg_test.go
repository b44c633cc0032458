package ffmpeg

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript drops an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestStartStopCapturesSamples(t *testing.T) {
	t.Parallel()

	// Emits 3200 bytes of non-zero s16le (100ms at 16kHz mono), then idles.
	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nhead -c 3200 /dev/zero | tr '\\0' '\\100'\nsleep 5\n")
	e := New(WithCommand(script))

	if err := e.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	rec, err := e.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording() error: %v", err)
	}
	if len(rec.Samples) != 1600 {
		t.Errorf("len(Samples) = %d, want 1600", len(rec.Samples))
	}
	if rec.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", rec.SampleRate)
	}
}

func TestStartWhileCapturingFails(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nsleep 5\n")
	e := New(WithCommand(script))

	if err := e.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	defer e.StopRecording()

	if err := e.StartRecording(t.Context()); err == nil {
		t.Fatal("second StartRecording() should fail")
	}
}

func TestEarlyExitIsStartError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	e := New(WithCommand(script))

	err := e.StartRecording(t.Context())
	if err == nil {
		t.Fatal("expected start error")
	}
	if !strings.Contains(err.Error(), "no such device") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestStopWithoutStartFails(t *testing.T) {
	t.Parallel()

	e := New()
	if _, err := e.StopRecording(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := e.SplitRecording(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSplitKeepsCapturing(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nwhile :; do head -c 3200 /dev/zero | tr '\\0' '\\100'; sleep 0.05; done\n")
	e := New(WithCommand(script))

	if err := e.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	first, err := e.SplitRecording()
	if err != nil {
		t.Fatalf("SplitRecording() error: %v", err)
	}
	if len(first.Samples) == 0 {
		t.Error("first chunk should contain samples")
	}

	time.Sleep(250 * time.Millisecond)
	second, err := e.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording() error: %v", err)
	}
	if len(second.Samples) == 0 {
		t.Error("capture should continue into the second chunk after a split")
	}
	if second.StartedAt.Before(first.StoppedAt) {
		t.Error("second chunk should start where the first stopped")
	}
}

func TestObserveLevelReportsPower(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nwhile :; do head -c 3200 /dev/zero | tr '\\0' '\\100'; sleep 0.05; done\n")
	e := New(WithCommand(script))

	if err := e.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	defer e.StopRecording()

	levels, err := e.ObserveLevel(t.Context())
	if err != nil {
		t.Fatalf("ObserveLevel() error: %v", err)
	}
	select {
	case s := <-levels:
		if s.AveragePower <= 0 {
			t.Errorf("AveragePower = %v, want > 0", s.AveragePower)
		}
		if s.PeakPower < s.AveragePower {
			t.Errorf("PeakPower %v below AveragePower %v", s.PeakPower, s.AveragePower)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no level sample within 2s")
	}
}

func TestObserveAudioDeliversFrames(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nwhile :; do head -c 3200 /dev/zero | tr '\\0' '\\100'; sleep 0.05; done\n")
	e := New(WithCommand(script))

	if err := e.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	defer e.StopRecording()

	frames, err := e.ObserveAudio(t.Context())
	if err != nil {
		t.Fatalf("ObserveAudio() error: %v", err)
	}
	select {
	case pcm := <-frames:
		if len(pcm) == 0 || len(pcm)%2 != 0 {
			t.Errorf("frame length = %d, want non-empty even byte count", len(pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no PCM frame within 2s")
	}
}

func TestObserveAudioWithoutCaptureFails(t *testing.T) {
	t.Parallel()

	e := New()
	if _, err := e.ObserveAudio(t.Context()); err == nil {
		t.Fatal("ObserveAudio() without an active capture should fail")
	}
}

func TestNormalizeStopErrIgnoresExitError(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatal("expected command failure")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Errorf("normalizeStopErr() = %v, want nil for exit error", got)
	}
}

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	got := pcmToFloat32([]byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80})
	want := []float32{0, 32767.0 / 32768.0, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
