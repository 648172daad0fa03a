package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionFailedError(t *testing.T) {
	err := &SessionFailedError{Message: "practice session failed: Failed to analyze response"}
	assert.Equal(t, "practice session failed: Failed to analyze response", err.Error())
}

func TestSessionFailedErrorDetection(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		failed bool
	}{
		{"direct", &SessionFailedError{Message: "x"}, true},
		{"wrapped", fmt.Errorf("round 2: %w", &SessionFailedError{Message: "x"}), true},
		{"joined", errors.Join(&SessionFailedError{Message: "x"}, errors.New("more")), true},
		{"config error", errors.New("api.base_url must be an absolute http(s) URL"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failed *SessionFailedError
			assert.Equal(t, tt.failed, errors.As(tt.err, &failed))
		})
	}
}
