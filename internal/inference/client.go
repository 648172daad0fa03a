package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rehearse-cli/rehearse/internal/feedback"
)

// DefaultTimeout bounds each remote call. Transcription of a two-minute
// answer can take a while, so it is generous.
const DefaultTimeout = 2 * time.Minute

// ErrInvalidBaseURL is returned by New for a base URL that is not an
// absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the underlying transport. Tests use it.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Service. Its base URL is fixed at
// construction.
type Client struct {
	baseURL string
	http    *resty.Client
	logger  *slog.Logger
}

var _ Service = (*Client)(nil)

// New returns a Client for the service at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	base := strings.TrimRight(u.String(), "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{baseURL: base, http: rc, logger: cfg.Logger}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL }

// Transcribe posts rec as multipart form data to the upload operation.
func (c *Client) Transcribe(ctx context.Context, rec Recording) (*Transcription, error) {
	c.logger.Debug("uploading recording", "bytes", len(rec.Audio), "question", rec.Question)

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", AudioFileName, AudioMIMEType, bytes.NewReader(rec.Audio)).
		SetMultipartFormData(map[string]string{"question": rec.Question}).
		Post(UploadPath)
	if err != nil {
		c.logger.Warn("upload request failed", "error", err)
		return nil, &Error{Op: OpUpload, Message: MessageUploadTransport, Err: err}
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		msg, isJSON := errorBody(body)
		switch {
		case !isJSON:
			msg = MessageUploadTransport
		case msg == "":
			msg = MessageUploadFailed
		}
		c.logger.Warn("upload rejected", "status", resp.StatusCode(), "error", msg)
		return nil, &Error{Op: OpUpload, StatusCode: resp.StatusCode(), Message: msg}
	}

	var out Transcription
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{
			Op:         OpUpload,
			StatusCode: resp.StatusCode(),
			Message:    MessageUploadTransport,
			Err:        fmt.Errorf("decoding upload response: %w", err),
		}
	}
	c.logger.Debug("recording transcribed", "chars", len(out.Text), "timestamp", out.Timestamp)
	return &out, nil
}

type wireFeedback struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Improvements []string `json:"improvements"`
	Overall      string   `json:"overall"`
}

// Analyze posts req as JSON to the analyze operation.
func (c *Client) Analyze(ctx context.Context, req AnalysisRequest) (*feedback.Feedback, error) {
	c.logger.Debug("requesting analysis", "question", req.Question, "timestamp", req.Timestamp)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(AnalyzePath)
	if err != nil {
		c.logger.Warn("analyze request failed", "error", err)
		return nil, &Error{Op: OpAnalyze, Message: MessageAnalyzeFailed, Err: err}
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		msg, _ := errorBody(body)
		if msg == "" {
			msg = MessageAnalyzeFailed
		}
		c.logger.Warn("analysis rejected", "status", resp.StatusCode(), "error", msg)
		return nil, &Error{Op: OpAnalyze, StatusCode: resp.StatusCode(), Message: msg}
	}

	if errs := validateAnalyzeResponse(body); len(errs) > 0 {
		c.logger.Warn("analysis response does not match contract", "violations", errs)
		return nil, &Error{
			Op:         OpAnalyze,
			StatusCode: resp.StatusCode(),
			Message:    MessageAnalyzeFailed,
			Err:        fmt.Errorf("invalid analyze response: %s", strings.Join(errs, "; ")),
		}
	}

	var env struct {
		Feedback wireFeedback `json:"feedback"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{
			Op:         OpAnalyze,
			StatusCode: resp.StatusCode(),
			Message:    MessageAnalyzeFailed,
			Err:        fmt.Errorf("decoding analyze response: %w", err),
		}
	}

	fb := feedback.Feedback{
		Score:        feedback.NormalizeScore(env.Feedback.Score),
		Strengths:    env.Feedback.Strengths,
		Weaknesses:   env.Feedback.Weaknesses,
		Improvements: env.Feedback.Improvements,
		Overall:      env.Feedback.Overall,
	}
	c.logger.Debug("analysis complete", "score", fb.Score)
	return &fb, nil
}
