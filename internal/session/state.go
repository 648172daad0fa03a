// Package session runs one interview-practice attempt: it records an answer,
// counts down the answer time, uploads the audio for transcription, asks for
// feedback on the transcript and keeps a consistent view of all of it.
package session

import (
	"errors"

	"github.com/rehearse-cli/rehearse/internal/feedback"
	"github.com/rehearse-cli/rehearse/internal/inference"
	"github.com/rehearse-cli/rehearse/internal/questions"
)

// CountdownSeconds is the answer time limit.
const CountdownSeconds = 120

// MessagePermissionDenied is shown when the microphone cannot be opened.
const MessagePermissionDenied = "Failed to access microphone. Please grant permission."

var (
	// ErrBusy is returned by Start while an attempt is already running.
	ErrBusy = errors.New("a recording session is already in progress")
	// ErrNoQuestion is returned by Start before a question is chosen.
	ErrNoQuestion = errors.New("select a question first")
	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("not recording")
	// ErrSessionStarted is returned when the question is changed after start.
	ErrSessionStarted = errors.New("session already started; reset to pick another question")
	// ErrReset is returned by Start when Reset ran while the microphone was
	// being requested.
	ErrReset = errors.New("session was reset")
	// ErrIdle is returned by Wait when no attempt is running.
	ErrIdle = errors.New("no recording in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

// State is a step of the recording session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateUploading
	StateAnalyzing
	StateShowingFeedback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateUploading:
		return "uploading"
	case StateAnalyzing:
		return "analyzing"
	case StateShowingFeedback:
		return "showing_feedback"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether an attempt ends in s.
func (s State) Terminal() bool {
	return s == StateShowingFeedback || s == StateFailed
}

// FailureKind classifies why an attempt failed.
type FailureKind string

const (
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureUpload           FailureKind = "upload_failed"
	FailureAnalysis         FailureKind = "analysis_failed"
)

// Failure is the error surfaced to the user.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Session is the observable state of one attempt.
type Session struct {
	// ID tags the running attempt. It is empty while idle.
	ID            string
	State         State
	Started       bool
	Recording     bool
	TimeRemaining int
	Question      questions.Question
	CapturedAudio [][]byte
	Transcript    *inference.Transcription
	Feedback      *feedback.Feedback
	Err           *Failure
	Processing    bool
	Analyzing     bool
}

func newSession() Session {
	return Session{State: StateIdle, TimeRemaining: CountdownSeconds}
}

// clone deep-copies the pointer fields so callers can't reach controller
// state through a snapshot.
func (s Session) clone() Session {
	if s.Transcript != nil {
		t := *s.Transcript
		s.Transcript = &t
	}
	if s.Feedback != nil {
		f := s.Feedback.Clone()
		s.Feedback = &f
	}
	if s.Err != nil {
		e := *s.Err
		s.Err = &e
	}
	return s
}
