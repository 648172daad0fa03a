package inference

import (
	"encoding/json"
	"errors"
	"strings"
)

// Op names a remote operation.
type Op string

const (
	OpUpload  Op = "upload"
	OpAnalyze Op = "analyze"
)

// Messages shown when the service gives no reason of its own.
const (
	MessageUploadFailed    = "Failed to upload audio"
	MessageUploadTransport = "Failed to upload and transcribe audio"
	MessageAnalyzeFailed   = "Failed to analyze response"
)

// Error is a failed remote call. Message is what the user sees: the
// service's own error text when it sent one, a fallback otherwise.
type Error struct {
	Op         Op
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// UserMessage extracts the user-facing message from err, or fallback when
// err is not an *Error.
func UserMessage(err error, fallback string) string {
	var ie *Error
	if errors.As(err, &ie) && ie.Message != "" {
		return ie.Message
	}
	return fallback
}

// errorBody reads the {"error": "..."} envelope. ok is false when body is
// not JSON at all.
func errorBody(body []byte) (msg string, ok bool) {
	var env struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	switch v := env.Error.(type) {
	case string:
		return strings.TrimSpace(v), true
	case nil:
		return "", true
	default:
		raw, _ := json.Marshal(v)
		return string(raw), true
	}
}
