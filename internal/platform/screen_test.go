package platform

import (
	"bytes"
	"testing"
)

func TestScreenCaptureStdoutCommand(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "grab.sh", "#!/usr/bin/env bash\nprintf '\\x89PNG'\n")
	s := NewScreenCapture(WithCaptureCommand(false, script))

	if !s.Authorized() {
		t.Fatal("Authorized() should be true when the tool exists")
	}
	png, err := s.Capture(t.Context())
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("capture output %q lacks PNG magic", png)
	}
}

func TestScreenCaptureFileCommand(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "grab.sh", "#!/usr/bin/env bash\nprintf '\\x89PNGfile' > \"$1\"\n")
	s := NewScreenCapture(WithCaptureCommand(true, script))

	png, err := s.Capture(t.Context())
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if string(png) != "\x89PNGfile" {
		t.Errorf("capture output = %q, want file contents", png)
	}
}

func TestScreenCaptureMissingToolUnauthorized(t *testing.T) {
	t.Parallel()

	s := NewScreenCapture(WithCaptureCommand(false, "/nonexistent/screenshot-tool"))
	if s.Authorized() {
		t.Error("Authorized() should be false for a missing tool")
	}
}
