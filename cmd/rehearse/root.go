package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rehearse-cli/rehearse/internal/config"
	"github.com/rehearse-cli/rehearse/internal/questions"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rehearse",
		Short: "Rehearse - practice interview answers out loud",
		Long: `Rehearse is a command-line coach for interview questions.

It picks a question, records your spoken answer for up to two minutes,
has it transcribed and scored, and shows what went well and what to improve.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to a config file (default: .rehearse.yaml found from the working directory)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newPracticeCommand())
	cmd.AddCommand(newQuestionsCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

// loadConfig reads --config when given, otherwise walks up from the
// working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(".")
}

func questionList(cfg *config.Config) (*questions.List, error) {
	if len(cfg.Questions) == 0 {
		return questions.Default(), nil
	}
	return questions.New(cfg.Questions)
}
