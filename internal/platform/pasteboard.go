// Package platform holds the desktop-facing adapters: delivering text into
// the focused application and other glue the dictation core only sees
// through its ports.
//
// Delivery shells out to the platform clipboard tool and keystroke injector
// rather than binding a GUI toolkit, the same way audio capture shells out
// to ffmpeg. Which tools are used is auto-detected per platform and can be
// overridden for unusual setups (e.g. X11 inside Wayland).
package platform

import (
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/voxhold/voxhold/internal/session"
)

// Pasteboard delivers text by copying it to the system clipboard and then
// injecting the platform paste keystroke into the focused application.
type Pasteboard struct {
	copyCmd  []string
	pasteCmd []string
}

var _ session.Pasteboard = (*Pasteboard)(nil)

// PasteboardOption is a functional option for Pasteboard.
type PasteboardOption func(*Pasteboard)

// WithCopyCommand overrides the clipboard-write command. Text is piped to
// the command's stdin.
func WithCopyCommand(argv ...string) PasteboardOption {
	return func(p *Pasteboard) {
		if len(argv) > 0 {
			p.copyCmd = argv
		}
	}
}

// WithPasteCommand overrides the keystroke-injection command. An empty argv
// disables injection, leaving the text on the clipboard only.
func WithPasteCommand(argv ...string) PasteboardOption {
	return func(p *Pasteboard) {
		p.pasteCmd = argv
	}
}

// NewPasteboard constructs a Pasteboard with platform-default tools:
// pbcopy/osascript on macOS, wl-copy/wtype on Wayland, xclip/xdotool on X11.
func NewPasteboard(opts ...PasteboardOption) *Pasteboard {
	p := &Pasteboard{}
	p.copyCmd, p.pasteCmd = defaultCommands()
	for _, o := range opts {
		o(p)
	}
	return p
}

func defaultCommands() (copyCmd, pasteCmd []string) {
	switch runtime.GOOS {
	case "darwin":
		return []string{"pbcopy"},
			[]string{"osascript", "-e", `tell application "System Events" to keystroke "v" using command down`}
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return []string{"wl-copy"}, []string{"wtype", "-M", "ctrl", "v", "-m", "ctrl"}
		}
		return []string{"xclip", "-selection", "clipboard"},
			[]string{"xdotool", "key", "--clearmodifiers", "ctrl+v"}
	}
}

// Paste implements session.Pasteboard. A clipboard-write failure is an
// error; a keystroke-injection failure is not, because the text is already
// on the clipboard and the user can paste it by hand.
func (p *Pasteboard) Paste(text string) error {
	if err := runPiped(p.copyCmd, text); err != nil {
		return fmt.Errorf("platform: copy to clipboard: %w", err)
	}
	if len(p.pasteCmd) > 0 {
		_ = runPiped(p.pasteCmd, "")
	}
	return nil
}

func runPiped(argv []string, stdin string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s: %w: %s", argv[0], err, bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
