package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

// FileDevice replays an existing recording as if it were the microphone.
// It is used for scripted practice runs and on machines without a usable
// input device.
type FileDevice struct {
	Path      string
	ChunkSize int
	// Interval paces chunk delivery. Zero delivers as fast as possible.
	Interval time.Duration
}

// RequestStream opens the file.
func (d *FileDevice) RequestStream(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Path == "" {
		return nil, fmt.Errorf("%w: no input file configured", ErrUnavailable)
	}
	f, err := os.Open(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	size := d.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &fileStream{
		f:        f,
		size:     size,
		interval: d.Interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

type fileStream struct {
	f        *os.File
	size     int
	interval time.Duration
	onChunk  ChunkHandler

	stop chan struct{}
	done chan struct{}

	startOnce   sync.Once
	stopOnce    sync.Once
	releaseOnce sync.Once
	started     bool
	readErr     error
}

func (s *fileStream) Start(onChunk ChunkHandler) error {
	err := errors.New("stream already started")
	s.startOnce.Do(func() {
		err = nil
		s.started = true
		s.onChunk = onChunk
		go s.pump()
	})
	return err
}

func (s *fileStream) pump() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}
	buf := make([]byte, s.size)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if tick != nil {
			select {
			case <-s.stop:
				return
			case <-tick:
			}
		}
		n, err := s.f.Read(buf)
		if n > 0 {
			s.onChunk(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.readErr = err
			}
			return
		}
	}
}

// Stop halts pacing and delivers whatever is left of the file.
func (s *fileStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if !s.started {
			return
		}
		close(s.stop)
		<-s.done
		if s.readErr != nil {
			err = fmt.Errorf("reading %s: %w", s.f.Name(), s.readErr)
			return
		}
		buf := make([]byte, s.size)
		for {
			n, rerr := s.f.Read(buf)
			if n > 0 {
				s.onChunk(buf[:n])
			}
			if rerr != nil {
				if !errors.Is(rerr, io.EOF) {
					err = fmt.Errorf("reading %s: %w", s.f.Name(), rerr)
				}
				return
			}
		}
	})
	return err
}

func (s *fileStream) Release() error {
	var err error
	s.releaseOnce.Do(func() {
		err = s.f.Close()
	})
	return err
}
