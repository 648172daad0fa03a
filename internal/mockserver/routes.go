package mockserver

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rehearse-cli/rehearse/internal/feedback"
	"github.com/rehearse-cli/rehearse/internal/inference"
)

const defaultQuestion = "Unknown question"

type handlers struct {
	cfg Config
}

func registerRoutes(r *gin.Engine, h *handlers) {
	r.GET("/health", h.health)
	r.POST(inference.UploadPath, h.uploadRecording)
	r.POST(inference.AnalyzePath, h.analyzeResponse)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) uploadRecording(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}
	files := form.File["audio"]
	if len(files) == 0 {
		// a part sent without a filename is parsed as a plain value
		if _, ok := form.Value["audio"]; ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}
	fh := files[0]
	question := defaultQuestion
	if v := form.Value["question"]; len(v) > 0 && v[0] != "" {
		question = v[0]
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.cfg.UploadError != "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.cfg.UploadError})
		return
	}
	if n == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed: empty audio"})
		return
	}

	ts := h.cfg.now().Format(TimestampLayout)
	ext := "webm"
	if i := strings.LastIndex(fh.Filename, "."); i >= 0 && i < len(fh.Filename)-1 {
		ext = strings.ToLower(fh.Filename[i+1:])
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Recording uploaded and transcribed successfully",
		"audio_file":      fmt.Sprintf("recording_%s.%s", ts, ext),
		"transcript_text": h.cfg.Transcript,
		"timestamp":       ts,
		"question":        question,
	})
}

func (h *handlers) analyzeResponse(c *gin.Context) {
	var req inference.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question and transcript are required"})
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question and transcript are required"})
		return
	}
	if h.cfg.AnalyzeError != "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.cfg.AnalyzeError})
		return
	}

	fb := withDefaults(h.cfg.Feedback)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"feedback":     fb,
		"raw_feedback": rawFeedback(fb),
	})
}

// withDefaults fills empty sections the way a lenient grader would.
func withDefaults(f feedback.Feedback) feedback.Feedback {
	f = f.Clone()
	if len(f.Strengths) == 0 {
		f.Strengths = []string{"Good attempt at answering the question"}
	}
	if len(f.Weaknesses) == 0 {
		f.Weaknesses = []string{"Could provide more specific examples"}
	}
	if len(f.Improvements) == 0 {
		f.Improvements = []string{"Practice articulating thoughts more clearly"}
	}
	if f.Overall == "" {
		f.Overall = "Keep practicing to improve your interview skills."
	}
	return f
}

// rawFeedback renders f in the plain-text layout graders reply with.
func rawFeedback(f feedback.Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCORE: %d/%d\n", f.Score, feedback.MaxScore)
	section := func(title string, items []string) {
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("STRENGTHS", f.Strengths)
	section("WEAKNESSES", f.Weaknesses)
	section("IMPROVEMENTS", f.Improvements)
	fmt.Fprintf(&b, "\nOVERALL FEEDBACK:\n%s\n", f.Overall)
	return b.String()
}
