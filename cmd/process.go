package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Structures and converts all pending raw items",
		Long: `Runs one batch pass over every raw item in the queue: structure the scraped
content, validate the result and post valid candidates as opportunities.`,
		RunE: runProcessCommand,
	}
}

func runProcessCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	result, err := a.Processor.ProcessPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("process pending items: %w", err)
	}
	a.Logger.Info("batch processing finished",
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
		zap.Int("duplicate", result.Duplicate),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}
