// Package memory provides an in-memory Store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Store keeps all pipeline records in maps guarded by a single mutex. It is
// safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	sources       map[string]pipeline.Source
	items         map[string]pipeline.RawItem
	campaigns     map[string]pipeline.Campaign
	runs          map[string]pipeline.CampaignRun
	opportunities map[string]pipeline.Opportunity
	oppsByURL     map[string]string
}

var _ pipeline.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		sources:       make(map[string]pipeline.Source),
		items:         make(map[string]pipeline.RawItem),
		campaigns:     make(map[string]pipeline.Campaign),
		runs:          make(map[string]pipeline.CampaignRun),
		opportunities: make(map[string]pipeline.Opportunity),
		oppsByURL:     make(map[string]string),
	}
}

// PutSource inserts or replaces a source. Used by the API shell and tests.
func (s *Store) PutSource(source pipeline.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.ID] = source
}

// GetSource returns the source or pipeline.ErrNotFound.
func (s *Store) GetSource(_ context.Context, id string) (pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.sources[id]
	if !ok {
		return pipeline.Source{}, pipeline.ErrNotFound
	}
	return source, nil
}

// ListSources returns the sources for the given ids, skipping unknown ones.
func (s *Store) ListSources(_ context.Context, ids []string) ([]pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Source, 0, len(ids))
	for _, id := range ids {
		if source, ok := s.sources[id]; ok {
			out = append(out, source)
		}
	}
	return out, nil
}

// UpdateSourceStats bumps attempt/success counters and the last-scraped time.
func (s *Store) UpdateSourceStats(_ context.Context, id string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[id]
	if !ok {
		return pipeline.ErrNotFound
	}
	source.AttemptCount++
	if success {
		source.SuccessCount++
	}
	source.LastScrapedAt = &at
	s.sources[id] = source
	return nil
}

// CreateItem stores a new raw item.
func (s *Store) CreateItem(_ context.Context, item pipeline.RawItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

// GetItem returns the item or pipeline.ErrNotFound.
func (s *Store) GetItem(_ context.Context, id string) (pipeline.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return pipeline.RawItem{}, pipeline.ErrNotFound
	}
	return item, nil
}

// FindItemByURL looks up an item by source and normalized URL.
func (s *Store) FindItemByURL(_ context.Context, sourceID, normalizedURL string) (pipeline.RawItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.SourceID == sourceID && item.URL == normalizedURL {
			return item, true, nil
		}
	}
	return pipeline.RawItem{}, false, nil
}

// UpdateItem replaces an existing item.
func (s *Store) UpdateItem(_ context.Context, item pipeline.RawItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return pipeline.ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

// ListItemsByStatus returns items in the given status, oldest first.
func (s *Store) ListItemsByStatus(_ context.Context, status pipeline.ItemStatus) ([]pipeline.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.RawItem
	for _, item := range s.items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})
	return out, nil
}

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(campaign pipeline.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = campaign
}

// GetCampaign returns the campaign or pipeline.ErrNotFound.
func (s *Store) GetCampaign(_ context.Context, id string) (pipeline.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return pipeline.Campaign{}, pipeline.ErrNotFound
	}
	return campaign, nil
}

// ListActiveCampaigns returns all campaigns with the active flag set.
func (s *Store) ListActiveCampaigns(_ context.Context) ([]pipeline.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Campaign
	for _, campaign := range s.campaigns {
		if campaign.Active {
			out = append(out, campaign)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TouchCampaign stamps the campaign's last-run time.
func (s *Store) TouchCampaign(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return pipeline.ErrNotFound
	}
	campaign.LastRunAt = &at
	s.campaigns[id] = campaign
	return nil
}

// CreateRun stores a new campaign run.
func (s *Store) CreateRun(_ context.Context, run pipeline.CampaignRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// UpdateRun replaces an existing run.
func (s *Store) UpdateRun(_ context.Context, run pipeline.CampaignRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return pipeline.ErrNotFound
	}
	s.runs[run.ID] = run
	return nil
}

// GetActiveRun returns the running run for a campaign, if any.
func (s *Store) GetActiveRun(_ context.Context, campaignID string) (pipeline.CampaignRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.CampaignID == campaignID && run.Status == pipeline.RunStatusRunning {
			return run, true, nil
		}
	}
	return pipeline.CampaignRun{}, false, nil
}

// ListRuns returns up to limit runs for the campaign, most recent first.
func (s *Store) ListRuns(_ context.Context, campaignID string, limit int) ([]pipeline.CampaignRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.CampaignRun
	for _, run := range s.runs {
		if run.CampaignID == campaignID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateOpportunity stores an opportunity and indexes it by source URL.
func (s *Store) CreateOpportunity(_ context.Context, opp pipeline.Opportunity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities[opp.ID] = opp
	if opp.SourceURL != "" {
		s.oppsByURL[opp.SourceURL] = opp.ID
	}
	return opp.ID, nil
}

// FindOpportunityByURL returns the id of an opportunity created from the
// given source URL.
func (s *Store) FindOpportunityByURL(_ context.Context, sourceURL string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.oppsByURL[sourceURL]
	return id, ok, nil
}

// GetOpportunity returns a stored opportunity. Used by tests and the API.
func (s *Store) GetOpportunity(id string) (pipeline.Opportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opp, ok := s.opportunities[id]
	return opp, ok
}
