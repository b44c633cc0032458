package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/voxhold/voxhold/internal/session"
)

// ScreenCapture grabs a full-screen PNG through the platform screenshot
// tool: screencapture on macOS, grim on Wayland, import (ImageMagick) on
// X11. Capture is best-effort context for the enhancer; a missing tool just
// reports unauthorized and the session dictates without screen context.
type ScreenCapture struct {
	captureCmd []string
	viaFile    bool
}

var _ session.ScreenCapture = (*ScreenCapture)(nil)

// ScreenCaptureOption is a functional option for ScreenCapture.
type ScreenCaptureOption func(*ScreenCapture)

// WithCaptureCommand overrides the screenshot command. When toFile is true
// the command receives an output path as its final argument; otherwise it
// must write PNG bytes to stdout.
func WithCaptureCommand(toFile bool, argv ...string) ScreenCaptureOption {
	return func(s *ScreenCapture) {
		if len(argv) > 0 {
			s.captureCmd = argv
			s.viaFile = toFile
		}
	}
}

// NewScreenCapture constructs a ScreenCapture with platform-default tools.
func NewScreenCapture(opts ...ScreenCaptureOption) *ScreenCapture {
	s := &ScreenCapture{}
	s.captureCmd, s.viaFile = defaultCaptureCommand()
	for _, o := range opts {
		o(s)
	}
	return s
}

func defaultCaptureCommand() (argv []string, viaFile bool) {
	switch runtime.GOOS {
	case "darwin":
		// screencapture cannot write PNG to stdout.
		return []string{"screencapture", "-x", "-t", "png"}, true
	default:
		if _, err := exec.LookPath("grim"); err == nil {
			return []string{"grim", "-"}, false
		}
		return []string{"import", "-window", "root", "png:-"}, false
	}
}

// Authorized implements session.ScreenCapture. It reports whether the
// screenshot tool is present; on macOS the first real capture additionally
// triggers the system screen-recording permission prompt.
func (s *ScreenCapture) Authorized() bool {
	_, err := exec.LookPath(s.captureCmd[0])
	return err == nil
}

// Capture implements session.ScreenCapture.
func (s *ScreenCapture) Capture(ctx context.Context) ([]byte, error) {
	if s.viaFile {
		dir, err := os.MkdirTemp("", "voxhold-screen-*")
		if err != nil {
			return nil, fmt.Errorf("platform: screenshot temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "screen.png")
		argv := append(append([]string{}, s.captureCmd...), path)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("platform: screenshot: %w: %s", err, out)
		}
		png, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("platform: read screenshot: %w", err)
		}
		return png, nil
	}

	cmd := exec.CommandContext(ctx, s.captureCmd[0], s.captureCmd[1:]...)
	png, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("platform: screenshot: %w", err)
	}
	return png, nil
}
