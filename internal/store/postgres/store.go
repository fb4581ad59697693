// Package postgres provides Postgres-backed persistence for the pipeline.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements pipeline.Store on top of a pgx connection pool.
type Store struct {
	pool pgxPool
}

// New connects a pool using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const sourceColumns = `id, name, url, kind, active, keywords, success_count, attempt_count, last_scraped_at`

// GetSource returns one source by id.
func (s *Store) GetSource(ctx context.Context, id string) (pipeline.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Source{}, fmt.Errorf("source %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return pipeline.Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListSources returns the sources matching the given ids, in store order.
func (s *Store) ListSources(ctx context.Context, ids []string) ([]pipeline.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// UpdateSourceStats bumps the attempt counter, the success counter when the
// scrape succeeded, and the last-scraped timestamp.
func (s *Store) UpdateSourceStats(ctx context.Context, id string, success bool, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE sources
SET attempt_count = attempt_count + 1,
    success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
    last_scraped_at = $3
WHERE id = $1`, id, success, at)
	if err != nil {
		return fmt.Errorf("update source stats: %w", err)
	}
	return nil
}

const itemColumns = `id, source_id, url, title, body, snapshot_uri, discovered_at, scraped_at, status, confidence, opportunity_id, notes`

// CreateItem inserts a raw item row.
func (s *Store) CreateItem(ctx context.Context, item pipeline.RawItem) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO raw_items (`+itemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		item.ID, item.SourceID, item.URL, item.Title, item.Body, item.SnapshotURI,
		item.DiscoveredAt, item.ScrapedAt, item.Status, item.Confidence,
		item.OpportunityID, item.Notes)
	if err != nil {
		return fmt.Errorf("insert raw item: %w", err)
	}
	return nil
}

// GetItem returns one raw item by id.
func (s *Store) GetItem(ctx context.Context, id string) (pipeline.RawItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM raw_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.RawItem{}, fmt.Errorf("raw item %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return pipeline.RawItem{}, fmt.Errorf("get raw item: %w", err)
	}
	return item, nil
}

// FindItemByURL looks up an item by source and normalized URL.
func (s *Store) FindItemByURL(ctx context.Context, sourceID, normalizedURL string) (pipeline.RawItem, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM raw_items WHERE source_id = $1 AND url = $2`, sourceID, normalizedURL)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.RawItem{}, false, nil
	}
	if err != nil {
		return pipeline.RawItem{}, false, fmt.Errorf("find raw item by url: %w", err)
	}
	return item, true, nil
}

// UpdateItem overwrites the mutable fields of a raw item.
func (s *Store) UpdateItem(ctx context.Context, item pipeline.RawItem) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE raw_items
SET title = $2, body = $3, snapshot_uri = $4, scraped_at = $5, status = $6,
    confidence = $7, opportunity_id = $8, notes = $9
WHERE id = $1`,
		item.ID, item.Title, item.Body, item.SnapshotURI, item.ScrapedAt,
		item.Status, item.Confidence, item.OpportunityID, item.Notes)
	if err != nil {
		return fmt.Errorf("update raw item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("raw item %s: %w", item.ID, pipeline.ErrNotFound)
	}
	return nil
}

// ListItemsByStatus returns items in the given status, oldest first.
func (s *Store) ListItemsByStatus(ctx context.Context, status pipeline.ItemStatus) ([]pipeline.RawItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM raw_items WHERE status = $1 ORDER BY discovered_at`, status)
	if err != nil {
		return nil, fmt.Errorf("list raw items: %w", err)
	}
	defer rows.Close()

	var out []pipeline.RawItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

const campaignColumns = `id, name, source_ids, prompt, frequency, frequency_unit, category, max_posts, active, last_run_at`

// GetCampaign returns one campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (pipeline.Campaign, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	campaign, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Campaign{}, fmt.Errorf("campaign %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return pipeline.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

// ListActiveCampaigns returns all campaigns with the active flag set.
func (s *Store) ListActiveCampaigns(ctx context.Context) ([]pipeline.Campaign, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, campaign)
	}
	return out, rows.Err()
}

// TouchCampaign stamps the last-run time.
func (s *Store) TouchCampaign(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE campaigns SET last_run_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch campaign: %w", err)
	}
	return nil
}

const runColumns = `id, campaign_id, status, started_at, completed_at, total_sources, processed_sources, items_found, items_created, error_text`

// CreateRun inserts a campaign run row.
func (s *Store) CreateRun(ctx context.Context, run pipeline.CampaignRun) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO campaign_runs (`+runColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		run.ID, run.CampaignID, run.Status, run.StartedAt, run.CompletedAt,
		run.TotalSources, run.ProcessedSources, run.ItemsFound, run.ItemsCreated, run.ErrorText)
	if err != nil {
		return fmt.Errorf("insert campaign run: %w", err)
	}
	return nil
}

// UpdateRun overwrites the mutable fields of a campaign run.
func (s *Store) UpdateRun(ctx context.Context, run pipeline.CampaignRun) error {
	_, err := s.pool.Exec(ctx, `
UPDATE campaign_runs
SET status = $2, completed_at = $3, total_sources = $4, processed_sources = $5,
    items_found = $6, items_created = $7, error_text = $8
WHERE id = $1`,
		run.ID, run.Status, run.CompletedAt, run.TotalSources, run.ProcessedSources,
		run.ItemsFound, run.ItemsCreated, run.ErrorText)
	if err != nil {
		return fmt.Errorf("update campaign run: %w", err)
	}
	return nil
}

// GetActiveRun returns the non-terminal run for a campaign, if any.
func (s *Store) GetActiveRun(ctx context.Context, campaignID string) (pipeline.CampaignRun, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+runColumns+` FROM campaign_runs
WHERE campaign_id = $1 AND status IN ('pending', 'running')
ORDER BY started_at DESC LIMIT 1`, campaignID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.CampaignRun{}, false, nil
	}
	if err != nil {
		return pipeline.CampaignRun{}, false, fmt.Errorf("get active run: %w", err)
	}
	return run, true, nil
}

// ListRuns returns the most recent runs for a campaign, newest first.
func (s *Store) ListRuns(ctx context.Context, campaignID string, limit int) ([]pipeline.CampaignRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+runColumns+` FROM campaign_runs
WHERE campaign_id = $1
ORDER BY started_at DESC LIMIT $2`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list campaign runs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.CampaignRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CreateOpportunity inserts a canonical opportunity and returns its id.
func (s *Store) CreateOpportunity(ctx context.Context, opp pipeline.Opportunity) (string, error) {
	amountJSON, err := json.Marshal(opp.Amount)
	if err != nil {
		return "", fmt.Errorf("marshal amount: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO opportunities (
	id, title, organization, category, description, about_opportunity,
	requirements, how_to_apply, benefits, funding_type, amount,
	eligible_countries, tags, location, deadline, deadline_text,
	program_start, program_end, contact_email, source_url, confidence, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)`,
		opp.ID, opp.Title, opp.Organization, opp.Category, opp.Description, opp.AboutOpportunity,
		mustJSON(opp.Requirements), opp.HowToApply, mustJSON(opp.Benefits), opp.FundingType, amountJSON,
		mustJSON(opp.EligibleCountries), mustJSON(opp.Tags), opp.Location, opp.Deadline, opp.DeadlineText,
		opp.ProgramStart, opp.ProgramEnd, opp.ContactEmail, opp.SourceURL, opp.Confidence, opp.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert opportunity: %w", err)
	}
	return opp.ID, nil
}

// FindOpportunityByURL returns the id of an opportunity created from the
// given source URL.
func (s *Store) FindOpportunityByURL(ctx context.Context, sourceURL string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM opportunities WHERE source_url = $1 LIMIT 1`, sourceURL).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find opportunity by url: %w", err)
	}
	return id, true, nil
}

var _ pipeline.Store = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (pipeline.Source, error) {
	var (
		src      pipeline.Source
		keywords []byte
	)
	err := row.Scan(&src.ID, &src.Name, &src.URL, &src.Kind, &src.Active,
		&keywords, &src.SuccessCount, &src.AttemptCount, &src.LastScrapedAt)
	if err != nil {
		return pipeline.Source{}, err
	}
	src.Keywords = decodeStrings(keywords)
	return src, nil
}

func scanItem(row rowScanner) (pipeline.RawItem, error) {
	var item pipeline.RawItem
	err := row.Scan(&item.ID, &item.SourceID, &item.URL, &item.Title, &item.Body,
		&item.SnapshotURI, &item.DiscoveredAt, &item.ScrapedAt, &item.Status,
		&item.Confidence, &item.OpportunityID, &item.Notes)
	if err != nil {
		return pipeline.RawItem{}, err
	}
	return item, nil
}

func scanCampaign(row rowScanner) (pipeline.Campaign, error) {
	var (
		campaign  pipeline.Campaign
		sourceIDs []byte
	)
	err := row.Scan(&campaign.ID, &campaign.Name, &sourceIDs, &campaign.Prompt,
		&campaign.Frequency, &campaign.FrequencyUnit, &campaign.Category,
		&campaign.MaxPosts, &campaign.Active, &campaign.LastRunAt)
	if err != nil {
		return pipeline.Campaign{}, err
	}
	campaign.SourceIDs = decodeStrings(sourceIDs)
	return campaign, nil
}

func scanRun(row rowScanner) (pipeline.CampaignRun, error) {
	var run pipeline.CampaignRun
	err := row.Scan(&run.ID, &run.CampaignID, &run.Status, &run.StartedAt,
		&run.CompletedAt, &run.TotalSources, &run.ProcessedSources,
		&run.ItemsFound, &run.ItemsCreated, &run.ErrorText)
	if err != nil {
		return pipeline.CampaignRun{}, err
	}
	return run, nil
}

// mustJSON encodes a string slice for a jsonb column. A nil slice becomes an
// empty array so reads never see SQL NULL.
func mustJSON(values []string) []byte {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return data
}

func decodeStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
