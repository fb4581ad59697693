// Package schedule starts campaign runs on their configured recurrence.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Starter admits a new campaign run.
type Starter interface {
	Start(ctx context.Context, campaignID string) (pipeline.CampaignRun, error)
}

// Scheduler ticks once a minute and starts every active campaign whose
// recurrence interval has elapsed since its last run.
type Scheduler struct {
	campaigns pipeline.CampaignStore
	starter   Starter
	clock     pipeline.Clock
	logger    *zap.Logger
	cron      *cron.Cron
}

// New creates a Scheduler. Call Start to begin ticking.
func New(campaigns pipeline.CampaignStore, starter Starter, clock pipeline.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		campaigns: campaigns,
		starter:   starter,
		clock:     clock,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the tick job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", func() {
		s.Tick(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("campaign scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("campaign scheduler stopped")
}

// Tick starts every due campaign. A campaign already running is left alone;
// misconfigured campaigns are logged and skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	campaigns, err := s.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		s.logger.Error("list active campaigns failed", zap.Error(err))
		return
	}

	now := s.clock.Now()
	for _, campaign := range campaigns {
		if !due(campaign, now) {
			continue
		}
		run, err := s.starter.Start(ctx, campaign.ID)
		switch {
		case err == nil:
			s.logger.Info("scheduled run started",
				zap.String("campaign_id", campaign.ID),
				zap.String("run_id", run.ID),
			)
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			// Previous run still going; the next tick will catch up.
		case errors.Is(err, pipeline.ErrNotConfigured), errors.Is(err, pipeline.ErrInactiveCampaign):
			s.logger.Warn("skipping misconfigured campaign",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err),
			)
		default:
			s.logger.Error("scheduled start failed",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err),
			)
		}
	}
}

func due(campaign pipeline.Campaign, now time.Time) bool {
	if campaign.LastRunAt == nil {
		return true
	}
	return now.Sub(*campaign.LastRunAt) >= interval(campaign)
}

func interval(campaign pipeline.Campaign) time.Duration {
	n := campaign.Frequency
	if n <= 0 {
		n = 1
	}
	switch campaign.FrequencyUnit {
	case "minutes":
		return time.Duration(n) * time.Minute
	case "days":
		return time.Duration(n) * 24 * time.Hour
	case "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return time.Duration(n) * time.Hour
	}
}
