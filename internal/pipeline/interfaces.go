package pipeline

import (
	"context"
	"time"
)

// SourceStore persists crawlable sources and their health counters.
type SourceStore interface {
	GetSource(ctx context.Context, id string) (Source, error)
	ListSources(ctx context.Context, ids []string) ([]Source, error)
	UpdateSourceStats(ctx context.Context, id string, success bool, at time.Time) error
}

// ItemStore persists raw content items captured by the pipeline.
type ItemStore interface {
	CreateItem(ctx context.Context, item RawItem) error
	GetItem(ctx context.Context, id string) (RawItem, error)
	FindItemByURL(ctx context.Context, sourceID, normalizedURL string) (RawItem, bool, error)
	UpdateItem(ctx context.Context, item RawItem) error
	ListItemsByStatus(ctx context.Context, status ItemStatus) ([]RawItem, error)
}

// CampaignStore reads campaign configuration and stamps run times.
type CampaignStore interface {
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	ListActiveCampaigns(ctx context.Context) ([]Campaign, error)
	TouchCampaign(ctx context.Context, id string, at time.Time) error
}

// RunStore persists campaign run records.
type RunStore interface {
	CreateRun(ctx context.Context, run CampaignRun) error
	UpdateRun(ctx context.Context, run CampaignRun) error
	GetActiveRun(ctx context.Context, campaignID string) (CampaignRun, bool, error)
	ListRuns(ctx context.Context, campaignID string, limit int) ([]CampaignRun, error)
}

// OpportunityStore creates canonical opportunities. The pipeline only reads
// back for duplicate checks.
type OpportunityStore interface {
	CreateOpportunity(ctx context.Context, opp Opportunity) (string, error)
	FindOpportunityByURL(ctx context.Context, sourceURL string) (string, bool, error)
}

// Store aggregates the persistence collaborators the pipeline needs.
type Store interface {
	SourceStore
	ItemStore
	CampaignStore
	RunStore
	OpportunityStore
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Renderer produces a DOM snapshot with JavaScript executed.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// ShellDetector decides whether a fetched page needs a JS re-fetch.
type ShellDetector interface {
	NeedsJS(page Page) bool
}

// Completer invokes the external AI completion collaborator. It is stateless
// and makes no guarantee about output shape beyond best-effort
// instruction-following.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes conversion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
