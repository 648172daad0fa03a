package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5001", "ftp://example.com", "http://"} {
		_, err := New(Config{BaseURL: raw})
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL())
}

func TestTranscribeSendsMultipart(t *testing.T) {
	var gotQuestion, gotFilename, gotMIME string
	var gotAudio []byte

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, UploadPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotQuestion = r.FormValue("question")
		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		gotFilename = hdr.Filename
		gotMIME = hdr.Header.Get("Content-Type")
		gotAudio, _ = io.ReadAll(f)

		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"transcript_text": "I am a backend engineer.",
			"question":        gotQuestion,
			"timestamp":       "20261019_101500",
		})
	})

	tr, err := c.Transcribe(context.Background(), Recording{Audio: []byte("webm-data"), Question: "Introduce yourself"})
	require.NoError(t, err)

	assert.Equal(t, "Introduce yourself", gotQuestion)
	assert.Equal(t, "recording.webm", gotFilename)
	assert.Equal(t, "audio/webm", gotMIME)
	assert.Equal(t, []byte("webm-data"), gotAudio)
	assert.Equal(t, &Transcription{
		Text:      "I am a backend engineer.",
		Question:  "Introduce yourself",
		Timestamp: "20261019_101500",
	}, tr)
}

func TestTranscribeEmptyAudioStillUploads(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		assert.Equal(t, int64(0), hdr.Size)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Transcription failed: empty audio"})
	})

	_, err := c.Transcribe(context.Background(), Recording{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Transcription failed: empty audio", err.Error())
}

func TestTranscribeServerErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription service unavailable"})
	})

	_, err := c.Transcribe(context.Background(), Recording{Audio: []byte("x"), Question: "q"})
	require.Error(t, err)

	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, OpUpload, ie.Op)
	assert.Equal(t, http.StatusInternalServerError, ie.StatusCode)
	assert.Equal(t, "transcription service unavailable", ie.Message)
}

func TestTranscribeFallbackMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json without error", `{"detail":"nope"}`, MessageUploadFailed},
		{"not json", `<html>Bad Gateway</html>`, MessageUploadTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				io.WriteString(w, tt.body) //nolint:errcheck
			})
			_, err := c.Transcribe(context.Background(), Recording{Question: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestTranscribeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Transcribe(context.Background(), Recording{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, MessageUploadTransport, err.Error())

	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.NotNil(t, ie.Err)
}

func TestAnalyzeSendsJSONAndDecodesFeedback(t *testing.T) {
	var got AnalysisRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AnalyzePath, r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"feedback": map[string]any{
				"score":        8.6,
				"strengths":    []string{"clear", "concise"},
				"weaknesses":   []string{},
				"improvements": []string{"add examples"},
				"overall":      "Great job",
			},
			"raw_feedback": "SCORE: 8.6/10",
		})
	})

	req := AnalysisRequest{Transcript: "hello", Question: "Introduce yourself", Timestamp: "20261019_101500"}
	fb, err := c.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req, got)
	assert.Equal(t, 9, fb.Score)
	assert.Equal(t, []string{"clear", "concise"}, fb.Strengths)
	assert.Empty(t, fb.Weaknesses)
	assert.Equal(t, []string{"add examples"}, fb.Improvements)
	assert.Equal(t, "Great job", fb.Overall)
}

func TestAnalyzeRejectsContractViolation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"feedback": map[string]any{"score": "nine", "strengths": []string{}},
		})
	})

	_, err := c.Analyze(context.Background(), AnalysisRequest{Transcript: "t", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, MessageAnalyzeFailed, err.Error())

	var ie *Error
	require.True(t, errors.As(err, &ie))
	require.Error(t, ie.Err)
	assert.Contains(t, ie.Err.Error(), "/feedback")
}

func TestAnalyzeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Question and transcript are required"})
	})

	_, err := c.Analyze(context.Background(), AnalysisRequest{})
	require.Error(t, err)
	assert.Equal(t, "Question and transcript are required", err.Error())
}

func TestAnalyzeFallbackMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Analyze(context.Background(), AnalysisRequest{Transcript: "t", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, MessageAnalyzeFailed, err.Error())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "boom", UserMessage(&Error{Message: "boom"}, "fallback"))
	assert.Equal(t, "fallback", UserMessage(errors.New("other"), "fallback"))
	assert.Equal(t, "fallback", UserMessage(&Error{}, "fallback"))
}
