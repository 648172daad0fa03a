// Package capture abstracts the microphone. A Device grants a Stream, a
// Stream emits recorded chunks until it is stopped, and Release gives the
// microphone back.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened,
	// whether access was refused or the recorder failed at startup.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrUnavailable is returned when no capture backend exists at all
	// (recorder binary or input file missing).
	ErrUnavailable = errors.New("microphone unavailable")
)

// MIMEType is the container every device produces.
const MIMEType = "audio/webm"

// ChunkHandler receives recorded data in order. Implementations must not
// retain p after returning; callers copy what they keep.
type ChunkHandler func(p []byte)

// Device hands out capture streams.
type Device interface {
	// RequestStream opens the microphone. It fails with an error wrapping
	// ErrPermissionDenied or ErrUnavailable when capture is not possible.
	RequestStream(ctx context.Context) (Stream, error)
}

// Stream is one open microphone.
type Stream interface {
	// Start begins delivering chunks to onChunk. It is called at most once.
	Start(onChunk ChunkHandler) error

	// Stop finalizes the recording. Every remaining chunk is delivered
	// before Stop returns and none afterwards.
	Stop() error

	// Release stops all underlying tracks. It is safe to call more than
	// once and after Stop.
	Release() error
}
