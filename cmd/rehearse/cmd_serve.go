package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rehearse-cli/rehearse/internal/feedback"
	"github.com/rehearse-cli/rehearse/internal/mockserver"
)

type serveOptions struct {
	host        string
	port        int
	failUpload  string
	failAnalyze string
}

func newServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local mock of the inference service",
		Long: `Run a local mock of the inference service.

The mock answers POST /upload-recording and POST /analyze-response with the
canned transcript and feedback from the "server" section of .rehearse.yaml.
It validates requests the way the real service does, so the practice flow
and its error paths can be exercised without transcription credentials.

Use --fail-upload or --fail-analyze to make a route fail with a message.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "Interface to bind")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Port to listen on, 0 for any free port (default: server.port from config)")
	cmd.Flags().StringVar(&opts.failUpload, "fail-upload", "", "Fail every upload with this error message")
	cmd.Flags().StringVar(&opts.failAnalyze, "fail-analyze", "", "Fail every analysis with this error message")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = opts.port
	}

	logger := slog.Default()
	srv, err := mockserver.New(mockserver.Config{
		Host:       opts.host,
		Port:       port,
		Transcript: cfg.Server.Transcript,
		Feedback: feedback.Feedback{
			Score:        cfg.Server.CannedScore(),
			Strengths:    cfg.Server.Strengths,
			Weaknesses:   cfg.Server.Weaknesses,
			Improvements: cfg.Server.Improvements,
			Overall:      cfg.Server.Overall,
		},
		UploadError:  opts.failUpload,
		AnalyzeError: opts.failAnalyze,
		Logger:       logger,
		Debug:        logger.Enabled(context.Background(), slog.LevelDebug),
	})
	if err != nil {
		return fmt.Errorf("creating mock server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr(), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Mock inference server: http://%s\n", ln.Addr()) //nolint:errcheck
	return srv.Serve(ctx, ln)
}
