package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rehearse-cli/rehearse/internal/capture"
	"github.com/rehearse-cli/rehearse/internal/config"
	"github.com/rehearse-cli/rehearse/internal/feedback"
	"github.com/rehearse-cli/rehearse/internal/inference"
	"github.com/rehearse-cli/rehearse/internal/picker"
	"github.com/rehearse-cli/rehearse/internal/questions"
	"github.com/rehearse-cli/rehearse/internal/session"
	"github.com/rehearse-cli/rehearse/internal/spinner"
)

const (
	msgTranscribing = "Processing and transcribing your audio..."
	msgAnalyzing    = "Analyzing your response with AI..."

	// countdownWarnAt is when the countdown turns red.
	countdownWarnAt = 10
)

type practiceOptions struct {
	apiURL    string
	device    string
	inputFile string
	question  string
	random    bool
	yes       bool
	report    string
	noColor   bool
}

func newPracticeCommand() *cobra.Command {
	var opts practiceOptions

	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Answer an interview question and get feedback",
		Long: `Answer an interview question and get feedback.

A question is picked (interactively on a terminal, at random otherwise), then
your answer is recorded from the microphone for up to two minutes. Press
Enter to stop early. The recording is transcribed and scored by the
inference service and the feedback is printed.

The microphone is read through ffmpeg. Use --input-file to replay an
existing recording instead.

Exit codes: 0 when feedback was shown, 1 when the session failed,
2 on configuration or runtime errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPractice(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "Inference service base URL (overrides api.base_url)")
	cmd.Flags().StringVar(&opts.device, "device", "", "Capture device: ffmpeg or file (overrides capture.device)")
	cmd.Flags().StringVar(&opts.inputFile, "input-file", "", "Replay this recording instead of the microphone")
	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "Answer this question instead of a random one")
	cmd.Flags().BoolVar(&opts.random, "random", false, "Skip the question picker and use a random question")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Start recording without waiting for Enter")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write the feedback to a .md or .html file")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runPractice(cmd *cobra.Command, opts practiceOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPracticeFlags(cfg, opts); err != nil {
		return err
	}
	if opts.report != "" {
		if _, err := reportFormat(opts.report); err != nil {
			return err
		}
	}

	list, err := questionList(cfg)
	if err != nil {
		return fmt.Errorf("invalid question list: %w", err)
	}

	logger := slog.Default()
	client, err := inference.New(inference.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctrl := session.NewController(newDevice(cfg.Capture, logger), client,
		session.WithLogger(logger),
		session.WithQuestions(list),
		session.WithRequestTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		session.WithMaxAudioBytes(cfg.Capture.MaxBytes),
	)
	defer ctrl.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	ui := newConsole(out, opts.noColor)

	if err := chooseQuestion(ctrl, list, opts, in, out); err != nil {
		return err
	}

	lines := readLines(in)
	for {
		final, err := practiceRound(ctx, ctrl, ui, lines, opts.yes)
		if err != nil {
			return err
		}

		if final.State == session.StateFailed {
			ui.failure(final.Err.Message)
		} else {
			view := feedback.Present(*final.Feedback, final.Question.String(), final.Transcript.Text)
			if err := feedback.Render(out, view, feedback.RenderOptions{Width: ui.width, Color: ui.color}); err != nil {
				return fmt.Errorf("rendering feedback: %w", err)
			}
			if opts.report != "" {
				if err := writeReport(opts.report, view); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nReport written to %s\n", opts.report) //nolint:errcheck
			}
		}

		fmt.Fprint(out, "\nTry again with a new question? [y/N] ") //nolint:errcheck
		answer, ok := nextLine(ctx, lines)
		if !ok || !isYes(answer) {
			fmt.Fprintln(out) //nolint:errcheck
			if final.State == session.StateFailed {
				return &SessionFailedError{Message: fmt.Sprintf("practice session failed: %s", final.Err.Message)}
			}
			return nil
		}

		ctrl.Reset()
		if _, err := ctrl.SelectRandomQuestion(); err != nil {
			return err
		}
	}
}

// applyPracticeFlags layers command-line overrides on top of the config.
func applyPracticeFlags(cfg *config.Config, opts practiceOptions) error {
	if opts.apiURL != "" {
		if err := config.ValidateBaseURL(opts.apiURL); err != nil {
			return fmt.Errorf("--api-url: %w", err)
		}
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.inputFile != "" {
		cfg.Capture.Device = config.DeviceFile
		cfg.Capture.File = opts.inputFile
	}
	if opts.device != "" {
		cfg.Capture.Device = opts.device
	}
	return cfg.Validate()
}

func newDevice(cfg config.CaptureConfig, logger *slog.Logger) capture.Device {
	if cfg.Device == config.DeviceFile {
		return &capture.FileDevice{Path: cfg.File}
	}
	return capture.NewFFmpegDevice(capture.FFmpegConfig{
		Binary: cfg.FFmpeg,
		Format: cfg.Format,
		Input:  cfg.Input,
		Logger: logger,
	})
}

// chooseQuestion runs before the line reader owns stdin, so the picker can
// read it directly.
func chooseQuestion(ctrl *session.Controller, list *questions.List, opts practiceOptions, in io.Reader, out io.Writer) error {
	if opts.question != "" {
		return ctrl.SetQuestion(questions.Question(strings.TrimSpace(opts.question)))
	}
	if opts.random || !isTerminal(in) {
		_, err := ctrl.SelectRandomQuestion()
		return err
	}
	_, err := picker.New(in, out).ChooseQuestion(ctrl, list)
	return err
}

// practiceRound records one answer and blocks until the session reaches a
// terminal state.
func practiceRound(ctx context.Context, ctrl *session.Controller, ui *console, lines <-chan string, autoStart bool) (session.Session, error) {
	q := ctrl.Snapshot().Question
	ui.question(q)

	if !autoStart {
		fmt.Fprint(ui.out, "Press Enter to start recording...") //nolint:errcheck
		if _, ok := nextLine(ctx, lines); !ok {
			if err := ctx.Err(); err != nil {
				return session.Session{}, err
			}
			return session.Session{}, errors.New("input closed before recording started")
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		s := ctrl.Snapshot()
		if s.State == session.StateFailed {
			return s, nil
		}
		return s, err
	}
	fmt.Fprintln(ui.out, "🔴 Recording... press Enter to stop.") //nolint:errcheck

	var spin *spinner.Spinner
	defer func() {
		if spin != nil {
			spin.Stop()
		}
	}()

	lastShown := -1
	for {
		changed := ctrl.Changed()
		s := ctrl.Snapshot()

		switch s.State {
		case session.StateRecording:
			if s.TimeRemaining != lastShown {
				ui.countdown(s.TimeRemaining)
				lastShown = s.TimeRemaining
			}
		case session.StateUploading:
			if spin == nil {
				ui.endLine()
				spin = spinner.Start(ui.out, msgTranscribing)
			}
		case session.StateAnalyzing:
			if spin == nil {
				ui.endLine()
				spin = spinner.Start(ui.out, msgAnalyzing)
			} else {
				spin.Update(msgAnalyzing)
			}
		case session.StateShowingFeedback, session.StateFailed:
			if spin != nil {
				spin.Stop()
				spin = nil
			} else {
				ui.endLine()
			}
			return s, nil
		case session.StateIdle:
			return s, errors.New("session was reset")
		}

		select {
		case <-changed:
		case _, ok := <-lines:
			if !ok {
				lines = nil
			}
			if s.State == session.StateRecording {
				if err := ctrl.Stop(); err != nil && !errors.Is(err, session.ErrNotRecording) {
					return s, err
				}
			}
		case <-ctx.Done():
			ctrl.Reset()
			ui.endLine()
			return s, ctx.Err()
		}
	}
}

// readLines owns in for the rest of the command and forwards each line.
// The channel is closed at EOF.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func nextLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case l, ok := <-lines:
		return strings.TrimSpace(l), ok
	case <-ctx.Done():
		return "", false
	}
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes":
		return true
	}
	return false
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// reportFormat maps a report path to "md" or "html".
func reportFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "md", nil
	case ".html", ".htm":
		return "html", nil
	default:
		return "", fmt.Errorf("--report must end in .md or .html, got %q", path)
	}
}

func writeReport(path string, v feedback.View) error {
	format, err := reportFormat(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case "md":
		data = []byte(feedback.Markdown(v))
	case "html":
		if data, err = feedback.HTML(v); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// console formats the live parts of a practice round.
type console struct {
	out   io.Writer
	tty   bool
	color bool
	width int

	warn lipgloss.Style
	bold lipgloss.Style
	open bool
}

func newConsole(out io.Writer, noColor bool) *console {
	c := &console{out: out, width: 80}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.tty = true
		c.color = !noColor
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			c.width = w
		}
	}
	c.warn = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e74c3c"))
	c.bold = lipgloss.NewStyle().Bold(true)
	return c
}

func (c *console) question(q questions.Question) {
	line := fmt.Sprintf("🎤 Question: %s", q)
	if c.color {
		line = c.bold.Render(line)
	}
	fmt.Fprintf(c.out, "\n%s\n", line) //nolint:errcheck
}

// countdown redraws the remaining time in place on a terminal and prints
// a line every ten seconds otherwise.
func (c *console) countdown(secs int) {
	text := fmt.Sprintf("⏱  %s remaining", formatClock(secs))
	if c.color && secs <= countdownWarnAt {
		text = c.warn.Render(text)
	}
	if c.tty {
		fmt.Fprintf(c.out, "\r%s ", text) //nolint:errcheck
		c.open = true
		return
	}
	if secs%10 == 0 || secs <= countdownWarnAt {
		fmt.Fprintln(c.out, text) //nolint:errcheck
	}
}

func (c *console) endLine() {
	if c.open {
		fmt.Fprintln(c.out) //nolint:errcheck
		c.open = false
	}
}

func (c *console) failure(msg string) {
	fmt.Fprintf(c.out, "❌ %s\n", msg) //nolint:errcheck
}

// formatClock renders seconds as m:ss.
func formatClock(secs int) string {
	secs = max(secs, 0)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
