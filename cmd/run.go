package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/app"
	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <campaign-id>",
		Short: "Executes one campaign run and waits for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	campaignID := args[0]

	started, err := a.Orchestrator.Start(cmd.Context(), campaignID)
	if err != nil {
		return fmt.Errorf("start campaign %s: %w", campaignID, err)
	}
	a.Logger.Info("campaign run started",
		zap.String("campaign_id", campaignID),
		zap.String("run_id", started.ID),
	)

	final, err := waitForRun(cmd.Context(), a, campaignID, started.ID)
	if err != nil {
		return err
	}

	a.Logger.Info("campaign run finished",
		zap.String("run_id", final.ID),
		zap.String("status", string(final.Status)),
		zap.Int("sources", final.ProcessedSources),
		zap.Int("items_found", final.ItemsFound),
		zap.Int("items_created", final.ItemsCreated),
	)
	if final.Status == pipeline.RunStatusFailed {
		return fmt.Errorf("run failed: %s", final.ErrorText)
	}
	return nil
}

func waitForRun(ctx context.Context, a *app.App, campaignID, runID string) (pipeline.CampaignRun, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best effort: ask the orchestrator to wind the run down before
			// the process exits.
			if _, stopErr := a.Orchestrator.Stop(context.Background(), campaignID); stopErr != nil {
				a.Logger.Warn("stop on interrupt failed", zap.Error(stopErr))
			}
			return pipeline.CampaignRun{}, ctx.Err()
		case <-ticker.C:
		}

		report, err := a.Orchestrator.Status(ctx, campaignID)
		if err != nil {
			return pipeline.CampaignRun{}, fmt.Errorf("poll run status: %w", err)
		}
		if report.Progress != nil && report.Progress.RunID == runID {
			a.Logger.Info("run progress",
				zap.Int("processed_sources", report.Progress.ProcessedSources),
				zap.Int("total_sources", report.Progress.TotalSources),
				zap.Int("items_found", report.Progress.ItemsFound),
				zap.Int("items_created", report.Progress.ItemsCreated),
			)
			continue
		}
		for _, r := range report.Runs {
			if r.ID == runID && r.Status.IsTerminal() {
				return r, nil
			}
		}
	}
}
