package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultFFmpegBinary = "ffmpeg"
	defaultProbeTimeout = 400 * time.Millisecond
	defaultStopTimeout  = 5 * time.Second
	defaultChunkSize    = 4096
	stderrTailBytes     = 2048
)

// FFmpegConfig configures the ffmpeg-backed microphone.
type FFmpegConfig struct {
	// Binary is the ffmpeg executable name or path.
	Binary string
	// Format is the ffmpeg input device format (pulse, alsa, avfoundation, dshow).
	Format string
	// Input is the device name passed to -i.
	Input string
	// ProbeTimeout is how long the recorder must survive startup before the
	// microphone counts as granted.
	ProbeTimeout time.Duration
	ChunkSize    int
	Logger       *slog.Logger
}

// DefaultInput returns the input format and device for the running OS.
func DefaultInput() (format, input string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=Microphone"
	default:
		return "pulse", "default"
	}
}

// FFmpegDevice records the system microphone into WebM/Opus by running
// ffmpeg and reading its stdout.
type FFmpegDevice struct {
	cfg      FFmpegConfig
	lookPath func(string) (string, error)
}

// NewFFmpegDevice fills unset fields of cfg with defaults.
func NewFFmpegDevice(cfg FFmpegConfig) *FFmpegDevice {
	if cfg.Binary == "" {
		cfg.Binary = defaultFFmpegBinary
	}
	if cfg.Format == "" || cfg.Input == "" {
		format, input := DefaultInput()
		if cfg.Format == "" {
			cfg.Format = format
		}
		if cfg.Input == "" {
			cfg.Input = input
		}
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpegDevice{cfg: cfg, lookPath: exec.LookPath}
}

// Args returns the ffmpeg arguments used to record.
func (d *FFmpegDevice) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-f", d.cfg.Format,
		"-i", d.cfg.Input,
		"-ac", "1",
		"-c:a", "libopus",
		"-b:a", "48k",
		"-f", "webm",
		"-flush_packets", "1",
		"pipe:1",
	}
}

// RequestStream starts ffmpeg. If the recorder exits during the probe window
// the microphone is treated as denied and its stderr is reported.
func (d *FFmpegDevice) RequestStream(ctx context.Context) (Stream, error) {
	path, err := d.lookPath(d.cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrUnavailable, d.cfg.Binary, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating recorder pipe: %w", err)
	}

	cmd := exec.Command(path, d.Args()...)
	cmd.Stdout = pw
	tail := &tailWriter{limit: stderrTailBytes}
	cmd.Stderr = tail
	stdin, err := cmd.StdinPipe()
	if err != nil {
		pr.Close() //nolint:errcheck
		pw.Close() //nolint:errcheck
		return nil, fmt.Errorf("opening recorder stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pr.Close() //nolint:errcheck
		pw.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: starting %s: %v", ErrPermissionDenied, d.cfg.Binary, err)
	}
	// The child holds its own copy of the write end; EOF on pr now means
	// the recorder has exited.
	pw.Close() //nolint:errcheck

	s := &ffmpegStream{
		cmd:       cmd,
		stdin:     stdin,
		out:       pr,
		tail:      tail,
		exited:    make(chan struct{}),
		chunkSize: d.cfg.ChunkSize,
		logger:    d.cfg.Logger,
	}
	s.group.Go(func() error {
		s.waitErr = cmd.Wait()
		close(s.exited)
		return nil
	})

	select {
	case <-s.exited:
		pr.Close() //nolint:errcheck
		msg := strings.TrimSpace(tail.String())
		if msg == "" && s.waitErr != nil {
			msg = s.waitErr.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	case <-ctx.Done():
		s.Release() //nolint:errcheck
		return nil, ctx.Err()
	case <-time.After(d.cfg.ProbeTimeout):
	}

	d.cfg.Logger.Debug("microphone opened", "format", d.cfg.Format, "input", d.cfg.Input, "pid", cmd.Process.Pid)
	return s, nil
}

type ffmpegStream struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	out       *os.File
	tail      *tailWriter
	group     errgroup.Group
	exited    chan struct{}
	waitErr   error
	chunkSize int
	logger    *slog.Logger

	startOnce   sync.Once
	stopOnce    sync.Once
	releaseOnce sync.Once
	stopErr     error
}

func (s *ffmpegStream) Start(onChunk ChunkHandler) error {
	started := false
	s.startOnce.Do(func() {
		started = true
		s.group.Go(func() error {
			buf := make([]byte, s.chunkSize)
			for {
				n, err := s.out.Read(buf)
				if n > 0 {
					onChunk(buf[:n])
				}
				if err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
						return nil
					}
					return fmt.Errorf("reading recorder output: %w", err)
				}
			}
		})
	})
	if !started {
		return errors.New("stream already started")
	}
	return nil
}

// Stop asks ffmpeg to quit so it writes the WebM trailer, then waits for
// the output pump to drain.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if _, err := io.WriteString(s.stdin, "q"); err != nil {
			s.logger.Debug("recorder stdin closed early", "error", err)
		}
		s.stdin.Close() //nolint:errcheck

		select {
		case <-s.exited:
		case <-time.After(defaultStopTimeout):
			s.logger.Warn("recorder did not exit, killing it")
			s.cmd.Process.Kill() //nolint:errcheck
		}
		s.stopErr = s.group.Wait()
	})
	return s.stopErr
}

func (s *ffmpegStream) Release() error {
	s.releaseOnce.Do(func() {
		select {
		case <-s.exited:
		default:
			s.cmd.Process.Kill() //nolint:errcheck
		}
		s.out.Close() //nolint:errcheck
	})
	return nil
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
