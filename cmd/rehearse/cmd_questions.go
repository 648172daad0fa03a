package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQuestionsCommand() *cobra.Command {
	var random bool

	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the practice questions",
		Long: `List the practice questions.

Questions come from the "questions" list in .rehearse.yaml, or the built-in
set when none are configured. Use --random to print a single random pick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			list, err := questionList(cfg)
			if err != nil {
				return fmt.Errorf("invalid question list: %w", err)
			}

			out := cmd.OutOrStdout()
			if random {
				fmt.Fprintln(out, list.Random(nil)) //nolint:errcheck
				return nil
			}
			for i, q := range list.All() {
				fmt.Fprintf(out, "%d. %s\n", i+1, q) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&random, "random", false, "Print one random question")
	return cmd
}
