// Package ffmpeg implements [audio.Engine] by shelling out to ffmpeg.
//
// ffmpeg reads the default input device through a platform demuxer (pulse,
// alsa, avfoundation, dshow) and writes raw s16le PCM to stdout, which the
// engine converts to mono float32 and buffers until the capture is stopped
// or split. Level-meter samples are derived from the same PCM stream, so no
// second audio path is needed.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/voxhold/voxhold/pkg/audio"
)

const (
	defaultCommand    = "ffmpeg"
	defaultDevice     = "default"
	defaultSampleRate = 16000

	// meterInterval is how much audio each level sample covers.
	meterInterval = 100 * time.Millisecond
)

// Engine captures microphone audio through an ffmpeg subprocess.
type Engine struct {
	command     string
	inputFormat string
	inputDevice string
	sampleRate  int

	mu        sync.Mutex
	capturing bool
	proc      *os.Process
	stderr    *bytes.Buffer
	waitErr   <-chan error
	readDone  chan struct{}
	buf       []float32
	startedAt time.Time
	levels    map[chan audio.LevelSample]struct{}
	taps      map[chan []byte]struct{}
}

var _ audio.Engine = (*Engine)(nil)

// Option is a functional option for Engine.
type Option func(*Engine)

// WithCommand overrides the capture binary (default "ffmpeg").
func WithCommand(cmd string) Option {
	return func(e *Engine) {
		if cmd != "" {
			e.command = cmd
		}
	}
}

// WithInputFormat sets the ffmpeg input demuxer ("pulse", "alsa",
// "avfoundation", "dshow"). Default is picked per platform.
func WithInputFormat(format string) Option {
	return func(e *Engine) {
		if format != "" {
			e.inputFormat = format
		}
	}
}

// WithInputDevice sets the device name passed to the demuxer.
func WithInputDevice(device string) Option {
	return func(e *Engine) {
		if device != "" {
			e.inputDevice = device
		}
	}
}

// WithSampleRate sets the capture sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// New constructs an ffmpeg-backed capture engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		command:     defaultCommand,
		inputFormat: platformInputFormat(),
		inputDevice: defaultDevice,
		sampleRate:  defaultSampleRate,
		levels:      map[chan audio.LevelSample]struct{}{},
		taps:        map[chan []byte]struct{}{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// platformInputFormat picks the ffmpeg demuxer for the current OS.
func platformInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

// WarmUp implements audio.Engine. It only verifies the capture binary is
// reachable; ffmpeg itself opens the device fast enough that pre-opening
// buys nothing.
func (e *Engine) WarmUp(ctx context.Context) error {
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("ffmpeg: capture command not found: %w", err)
	}
	return nil
}

// StartRecording implements audio.Engine.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capturing {
		return errors.New("ffmpeg: capture already active")
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", e.inputFormat,
		"-i", e.inputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-f", "s16le",
		"-",
	}

	// The subprocess must outlive ctx: capture ends on StopRecording, not
	// when the caller that started it returns.
	cmd := exec.Command(e.command, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg: start capture: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate failures (bad device, missing demuxer) before
	// reporting the capture as started.
	select {
	case werr := <-waitErr:
		if werr != nil {
			return fmt.Errorf("ffmpeg: exited before capture started: %w: %s", werr, bytes.TrimSpace(stderr.Bytes()))
		}
		return errors.New("ffmpeg: exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	e.capturing = true
	e.proc = cmd.Process
	e.stderr = stderr
	e.waitErr = waitErr
	e.readDone = make(chan struct{})
	e.buf = nil
	e.startedAt = time.Now()

	go e.readLoop(stdout, e.readDone)
	return nil
}

// readLoop drains PCM from the subprocess until the pipe closes, buffering
// samples and fanning out one level reading per meterInterval of audio.
func (e *Engine) readLoop(r io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer r.Close()

	bytesPerInterval := e.sampleRate * 2 * int(meterInterval) / int(time.Second)
	raw := make([]byte, bytesPerInterval)

	for {
		n, err := io.ReadFull(r, raw)
		if n > 0 {
			frame := raw[:n-n%2]
			samples := pcmToFloat32(frame)
			e.mu.Lock()
			e.buf = append(e.buf, samples...)
			sample := audio.LevelSample{
				AveragePower: rms(samples),
				PeakPower:    peak(samples),
				At:           time.Now(),
			}
			for ch := range e.levels {
				select {
				case ch <- sample:
				default:
				}
			}
			if len(e.taps) > 0 {
				// Each tap gets its own copy; raw is reused next read.
				pcm := make([]byte, len(frame))
				copy(pcm, frame)
				for ch := range e.taps {
					select {
					case ch <- pcm:
					default:
					}
				}
			}
			e.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// StopRecording implements audio.Engine.
func (e *Engine) StopRecording() (*audio.Recording, error) {
	e.mu.Lock()
	if !e.capturing {
		e.mu.Unlock()
		return nil, errors.New("ffmpeg: no capture active")
	}
	e.capturing = false
	proc := e.proc
	waitErr := e.waitErr
	readDone := e.readDone
	stderr := e.stderr
	startedAt := e.startedAt
	e.proc = nil
	e.mu.Unlock()

	stopErr := stopProcess(proc, waitErr)
	<-readDone

	e.mu.Lock()
	rec := &audio.Recording{
		Samples:    e.buf,
		SampleRate: e.sampleRate,
		StartedAt:  startedAt,
		StoppedAt:  time.Now(),
	}
	e.buf = nil
	for ch := range e.levels {
		close(ch)
		delete(e.levels, ch)
	}
	for ch := range e.taps {
		close(ch)
		delete(e.taps, ch)
	}
	e.mu.Unlock()

	if stopErr != nil && stderr != nil && stderr.Len() > 0 {
		stopErr = fmt.Errorf("%w: %s", stopErr, bytes.TrimSpace(stderr.Bytes()))
	}
	return rec, stopErr
}

// SplitRecording implements audio.Engine.
func (e *Engine) SplitRecording() (*audio.Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.capturing {
		return nil, errors.New("ffmpeg: no capture active")
	}

	now := time.Now()
	rec := &audio.Recording{
		Samples:    e.buf,
		SampleRate: e.sampleRate,
		StartedAt:  e.startedAt,
		StoppedAt:  now,
	}
	e.buf = nil
	e.startedAt = now
	return rec, nil
}

// ObserveLevel implements audio.Engine.
func (e *Engine) ObserveLevel(ctx context.Context) (<-chan audio.LevelSample, error) {
	e.mu.Lock()
	if !e.capturing {
		e.mu.Unlock()
		return nil, errors.New("ffmpeg: no capture active")
	}
	ch := make(chan audio.LevelSample, 16)
	e.levels[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		if _, ok := e.levels[ch]; ok {
			close(ch)
			delete(e.levels, ch)
		}
		e.mu.Unlock()
	}()
	return ch, nil
}

// ObserveAudio implements audio.Engine. The delivered frames are the same
// s16le intervals the level meter is computed from.
func (e *Engine) ObserveAudio(ctx context.Context) (<-chan []byte, error) {
	e.mu.Lock()
	if !e.capturing {
		e.mu.Unlock()
		return nil, errors.New("ffmpeg: no capture active")
	}
	ch := make(chan []byte, 16)
	e.taps[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		if _, ok := e.taps[ch]; ok {
			close(ch)
			delete(e.taps, ch)
		}
		e.mu.Unlock()
	}()
	return ch, nil
}

// stopProcess interrupts the subprocess and waits for it, escalating to a
// kill if it ignores the signal. A non-zero exit after an interrupt is the
// expected shutdown path, not an error.
func stopProcess(proc *os.Process, waitErr <-chan error) error {
	if proc != nil {
		_ = proc.Signal(os.Interrupt)
	}
	select {
	case err, ok := <-waitErr:
		if ok {
			return normalizeStopErr(err)
		}
		return nil
	case <-time.After(1200 * time.Millisecond):
		if proc != nil {
			_ = proc.Kill()
		}
		err, ok := <-waitErr
		if ok {
			return normalizeStopErr(err)
		}
		return nil
	}
}

func normalizeStopErr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// pcmToFloat32 converts little-endian 16-bit PCM to normalised float32.
func pcmToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func peak(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > p {
			p = a
		}
	}
	return p
}
