package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Feedback was shown
	ExitSessionFailed = 1 // The practice session ended in a failure
	ExitError         = 2 // Configuration or runtime error
)

// SessionFailedError indicates that the practice round ran but ended
// without feedback (microphone refused, upload or analysis failed).
type SessionFailedError struct {
	Message string
}

func (e *SessionFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var failed *SessionFailedError
		if errors.As(err, &failed) {
			os.Exit(ExitSessionFailed)
		}
		os.Exit(ExitError)
	}
}
