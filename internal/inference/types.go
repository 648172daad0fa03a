// Package inference talks to the remote service that transcribes recorded
// answers and scores transcripts.
package inference

import (
	"context"

	"github.com/rehearse-cli/rehearse/internal/feedback"
)

const (
	// UploadPath is the transcribe-audio operation.
	UploadPath = "/upload-recording"
	// AnalyzePath is the score-transcript operation.
	AnalyzePath = "/analyze-response"

	// AudioFileName and AudioMIMEType describe the multipart audio part.
	AudioFileName = "recording.webm"
	AudioMIMEType = "audio/webm"
)

// Recording is the payload of a transcribe-audio call.
type Recording struct {
	Audio    []byte
	Question string
}

// Transcription is the transcribe-audio result.
type Transcription struct {
	Text      string `json:"transcript_text"`
	Question  string `json:"question"`
	Timestamp string `json:"timestamp"`
}

// AnalysisRequest is the score-transcript request body.
type AnalysisRequest struct {
	Transcript string `json:"transcript"`
	Question   string `json:"question"`
	Timestamp  string `json:"timestamp"`
}

// Service is the remote inference service.
//
//go:generate go tool mockgen -source=types.go -destination=mock_service.go -package=inference
type Service interface {
	// Transcribe uploads a recording and returns its transcript.
	Transcribe(ctx context.Context, rec Recording) (*Transcription, error)
	// Analyze scores a transcript.
	Analyze(ctx context.Context, req AnalysisRequest) (*feedback.Feedback, error)
}
