package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rehearse-cli/rehearse/internal/capture"
	"github.com/rehearse-cli/rehearse/internal/inference"
	"github.com/rehearse-cli/rehearse/internal/questions"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock driving the countdown.
func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithQuestions sets the list SelectRandomQuestion draws from.
func WithQuestions(l *questions.List) Option {
	return func(c *Controller) { c.questions = l }
}

// WithRand sets the generator SelectRandomQuestion uses.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rand = r }
}

// WithRequestTimeout bounds each call to the inference service.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.requestTimeout = d }
}

// WithMaxAudioBytes caps how much audio one attempt keeps.
func WithMaxAudioBytes(n int) Option {
	return func(c *Controller) { c.maxAudioBytes = n }
}

// Controller owns a Session and drives it through
// idle, recording, uploading, analyzing and a terminal state.
// All methods are safe for concurrent use.
type Controller struct {
	device         capture.Device
	service        inference.Service
	clock          Clock
	logger         *slog.Logger
	questions      *questions.List
	rand           *rand.Rand
	requestTimeout time.Duration
	maxAudioBytes  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sess     Session
	buf      *capture.Buffer
	stream   capture.Stream
	stopTick chan struct{}
	starting bool
	epoch    uint64
	changed  chan struct{}
	closed   bool
}

// NewController returns an idle controller.
func NewController(device capture.Device, service inference.Service, opts ...Option) *Controller {
	c := &Controller{
		device:         device,
		service:        service,
		clock:          realClock{},
		logger:         slog.Default(),
		questions:      questions.Default(),
		requestTimeout: inference.DefaultTimeout,
		maxAudioBytes:  capture.DefaultMaxBytes,
		sess:           newSession(),
		changed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Session {
	s := c.sess.clone()
	if c.buf != nil {
		s.CapturedAudio = c.buf.Chunks()
	}
	return s
}

// Changed returns a channel that is closed on the next state change.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// SelectRandomQuestion picks a question from the configured list. Once the
// session has started it leaves the question alone and returns
// ErrSessionStarted with the current one.
func (c *Controller) SelectRandomQuestion() (questions.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.Started || c.starting {
		return c.sess.Question, ErrSessionStarted
	}
	c.sess.Question = c.questions.Random(c.rand)
	c.logger.Debug("selected question", "question", c.sess.Question)
	c.notifyLocked()
	return c.sess.Question, nil
}

// SetQuestion sets the question explicitly, under the same rule as
// SelectRandomQuestion.
func (c *Controller) SetQuestion(q questions.Question) error {
	if q == "" {
		return ErrNoQuestion
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.Started || c.starting {
		return ErrSessionStarted
	}
	c.sess.Question = q
	c.notifyLocked()
	return nil
}

// Start opens the microphone and begins recording with a fresh countdown.
// It is accepted from idle or after a failure; otherwise it returns ErrBusy.
// When the microphone is refused the session moves to failed and the
// returned error wraps the device error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.starting, c.sess.State != StateIdle && c.sess.State != StateFailed:
		c.mu.Unlock()
		return ErrBusy
	case c.sess.Question == "":
		c.mu.Unlock()
		return ErrNoQuestion
	}
	c.starting = true
	epoch := c.epoch
	c.mu.Unlock()

	stream, err := c.device.RequestStream(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false

	if c.closed || c.epoch != epoch {
		if stream != nil {
			c.releaseStream(stream)
		}
		if c.closed {
			return ErrClosed
		}
		return ErrReset
	}
	if err != nil {
		c.logger.Warn("microphone unavailable", "error", err)
		c.failLocked(FailurePermissionDenied, MessagePermissionDenied)
		return fmt.Errorf("requesting microphone: %w", err)
	}

	buf := capture.NewBuffer(c.maxAudioBytes)
	if err := stream.Start(func(p []byte) { buf.Append(p) }); err != nil {
		c.releaseStream(stream)
		c.logger.Warn("starting capture failed", "error", err)
		c.failLocked(FailurePermissionDenied, MessagePermissionDenied)
		return fmt.Errorf("starting capture: %w", err)
	}

	c.sess = Session{
		ID:            uuid.NewString(),
		State:         StateRecording,
		Started:       true,
		Recording:     true,
		TimeRemaining: CountdownSeconds,
		Question:      c.sess.Question,
	}
	c.buf = buf
	c.stream = stream

	stop := make(chan struct{})
	c.stopTick = stop
	ticker := c.clock.NewTicker(time.Second)
	c.wg.Add(1)
	go c.countdown(c.sess.ID, ticker, stop)

	c.logger.Info("recording started", "session", c.sess.ID, "question", c.sess.Question)
	c.notifyLocked()
	return nil
}

// Stop ends the recording and hands the audio to the inference service.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.sess.Recording {
		return ErrNotRecording
	}
	c.stopLocked()
	return nil
}

// Reset abandons the current attempt, releases the microphone and returns
// the session to its initial state. Late responses from the abandoned
// attempt are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	stream := c.abandonLocked()
	c.logger.Debug("session reset")
	c.mu.Unlock()

	c.finishStream(stream)
}

// Wait blocks until the running attempt reaches a terminal state and
// returns the final snapshot. It returns ErrIdle when nothing is running.
func (c *Controller) Wait(ctx context.Context) (Session, error) {
	for {
		c.mu.Lock()
		if c.sess.State.Terminal() {
			s := c.snapshotLocked()
			c.mu.Unlock()
			return s, nil
		}
		if c.sess.State == StateIdle && !c.starting {
			s := c.snapshotLocked()
			c.mu.Unlock()
			return s, ErrIdle
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Close releases the microphone, cancels in-flight requests and waits for
// background work to finish. An attempt that has not reached a terminal
// state is abandoned and the session returns to idle; a finished attempt
// is left for the caller to read.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var stream capture.Stream
	if !c.sess.State.Terminal() && c.sess.State != StateIdle {
		stream = c.abandonLocked()
	}
	c.mu.Unlock()

	c.finishStream(stream)
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Controller) countdown(id string, t Ticker, stop <-chan struct{}) {
	defer c.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if c.tick(id) {
				return
			}
		}
	}
}

// tick decrements the countdown and reports whether the countdown is over.
func (c *Controller) tick(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.sess.ID != id || !c.sess.Recording {
		return true
	}
	if c.sess.TimeRemaining > 0 {
		c.sess.TimeRemaining--
	}
	if c.sess.TimeRemaining == 0 {
		c.logger.Info("time is up, stopping recording", "session", id)
		c.stopLocked()
		return true
	}
	c.notifyLocked()
	return false
}

// stopLocked moves the attempt to uploading. The stream is stopped by the
// upload goroutine so a slow recorder never holds c.mu.
func (c *Controller) stopLocked() {
	c.cancelCountdownLocked()
	stream := c.stream
	c.stream = nil

	c.sess.Recording = false
	c.sess.State = StateUploading
	c.sess.Processing = true
	c.logger.Info("recording stopped", "session", c.sess.ID)
	c.notifyLocked()

	c.wg.Add(1)
	go c.process(c.sess.ID, c.sess.Question, stream, c.buf)
}

// abandonLocked drops the current attempt and returns the stream the caller
// must finish after unlocking.
func (c *Controller) abandonLocked() capture.Stream {
	c.cancelCountdownLocked()
	stream := c.stream
	c.stream = nil
	c.epoch++
	c.buf = nil
	c.sess = newSession()
	c.notifyLocked()
	return stream
}

func (c *Controller) cancelCountdownLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// finishStream stops and releases s. It must be called without c.mu held
// because a recorder may take seconds to flush.
func (c *Controller) finishStream(s capture.Stream) {
	if s == nil {
		return
	}
	if err := s.Stop(); err != nil {
		c.logger.Warn("stopping capture", "error", err)
	}
	c.releaseStream(s)
}

func (c *Controller) releaseStream(s capture.Stream) {
	if err := s.Release(); err != nil {
		c.logger.Warn("releasing microphone", "error", err)
	}
}

// currentLocked reports whether attempt id is still the live one and sits in
// state want.
func (c *Controller) currentLocked(id string, want State) bool {
	return !c.closed && c.sess.ID == id && c.sess.State == want
}

func (c *Controller) failLocked(kind FailureKind, msg string) {
	c.sess.State = StateFailed
	c.sess.Err = &Failure{Kind: kind, Message: msg}
	c.sess.Recording = false
	c.sess.Processing = false
	c.sess.Analyzing = false
	if kind == FailurePermissionDenied {
		c.sess.Started = false
	}
	c.logger.Info("session failed", "kind", kind, "message", msg)
	c.notifyLocked()
}

func (c *Controller) process(id string, question questions.Question, stream capture.Stream, buf *capture.Buffer) {
	defer c.wg.Done()

	c.finishStream(stream)
	audio := buf.Bytes()
	if n := buf.Dropped(); n > 0 {
		c.logger.Warn("audio exceeded size limit, chunks dropped", "dropped", n, "limit", c.maxAudioBytes)
	}

	c.mu.Lock()
	live := c.currentLocked(id, StateUploading)
	c.mu.Unlock()
	if !live {
		c.logger.Debug("attempt abandoned before upload", "session", id)
		return
	}
	c.logger.Debug("uploading recording", "session", id, "bytes", len(audio), "chunks", buf.Len())

	ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
	tr, err := c.service.Transcribe(ctx, inference.Recording{Audio: audio, Question: question.String()})
	cancel()

	c.mu.Lock()
	if !c.currentLocked(id, StateUploading) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale transcription", "session", id)
		return
	}
	if err != nil || tr == nil {
		if err != nil {
			c.logger.Debug("transcription failed", "error", err)
		}
		c.failLocked(FailureUpload, inference.UserMessage(err, inference.MessageUploadTransport))
		c.mu.Unlock()
		return
	}
	transcript := *tr
	c.sess.Transcript = &transcript
	c.sess.Processing = false
	c.sess.Analyzing = true
	c.sess.State = StateAnalyzing
	c.notifyLocked()
	c.mu.Unlock()

	ctx, cancel = context.WithTimeout(c.ctx, c.requestTimeout)
	fb, err := c.service.Analyze(ctx, inference.AnalysisRequest{
		Transcript: transcript.Text,
		Question:   question.String(),
		Timestamp:  transcript.Timestamp,
	})
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(id, StateAnalyzing) {
		c.logger.Debug("discarding stale analysis", "session", id)
		return
	}
	if err != nil || fb == nil {
		if err != nil {
			c.logger.Debug("analysis failed", "error", err)
		}
		c.sess.Transcript = nil
		c.failLocked(FailureAnalysis, inference.UserMessage(err, inference.MessageAnalyzeFailed))
		return
	}
	f := fb.Clone()
	c.sess.Feedback = &f
	c.sess.Analyzing = false
	c.sess.State = StateShowingFeedback
	c.logger.Info("feedback ready", "session", id, "score", f.Score)
	c.notifyLocked()
}
