// Package mockserver provides a local stand-in for the inference service.
// It speaks the upload-recording and analyze-response contract and answers
// with canned transcripts and feedback.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rehearse-cli/rehearse/internal/feedback"
)

// TimestampLayout formats the timestamp echoed by both operations.
const TimestampLayout = "20060102_150405"

// Config holds the mock server configuration.
type Config struct {
	Host string
	Port int

	// Transcript is returned for every non-empty recording.
	Transcript string
	// Feedback is returned for every valid analysis request.
	Feedback feedback.Feedback

	// UploadError and AnalyzeError force the matching route to fail with a
	// 500 and this message.
	UploadError  string
	AnalyzeError string

	Logger *slog.Logger
	Debug  bool

	now func() time.Time
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new mock server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Feedback.Score < 0 || cfg.Feedback.Score > feedback.MaxScore {
		return nil, fmt.Errorf("canned score must be between 0 and %d, got %d", feedback.MaxScore, cfg.Feedback.Score)
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	registerRoutes(router, &handlers{cfg: cfg})

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("mock inference server starting", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down mock inference server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("mock server shutdown error", "error", err)
		}
	}()

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
