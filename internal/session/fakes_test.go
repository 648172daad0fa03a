package session

import (
	"context"
	"sync"
	"time"

	"github.com/rehearse-cli/rehearse/internal/capture"
)

type manualClock struct {
	tickers chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{tickers: make(chan *manualTicker, 8)}
}

func (m *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time)}
	m.tickers <- t
	return t
}

type manualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeDevice struct {
	mu       sync.Mutex
	requests int
	errs     []error
	gate     chan struct{}
	streams  []*fakeStream
}

func (d *fakeDevice) RequestStream(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	d.requests++
	var err error
	if len(d.errs) > 0 {
		err, d.errs = d.errs[0], d.errs[1:]
	}
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	s := &fakeStream{}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

func (d *fakeDevice) Stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

// fakeStream hands chunks to the controller on Emit. Tail is delivered
// during Stop, like a recorder flushing its last buffer.
type fakeStream struct {
	mu       sync.Mutex
	onChunk  capture.ChunkHandler
	tail     [][]byte
	stopGate chan struct{}
	stops    int
	releases int
}

func (s *fakeStream) Start(fn capture.ChunkHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChunk = fn
	return nil
}

func (s *fakeStream) Emit(p []byte) {
	s.mu.Lock()
	fn := s.onChunk
	s.mu.Unlock()
	fn(p)
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	gate := s.stopGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	for _, p := range s.tail {
		s.onChunk(p)
	}
	s.tail = nil
	return nil
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *fakeStream) Counts() (stops, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops, s.releases
}

func (s *fakeStream) SetTail(chunks ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tail = chunks
}

// BlockStop makes Stop wait until gate is closed.
func (s *fakeStream) BlockStop(gate chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopGate = gate
}
