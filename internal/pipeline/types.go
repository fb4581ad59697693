// Package pipeline defines core types shared across subsystems.
package pipeline

import (
	"time"
)

// SourceKind describes how a source is crawled.
type SourceKind string

// Source kinds persisted on source records.
const (
	SourceKindWebsite SourceKind = "website"
	SourceKindRSS     SourceKind = "rss"
	SourceKindSitemap SourceKind = "sitemap"
	SourceKindAPI     SourceKind = "api"
)

// Source is a crawlable origin configured by an operator.
type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Kind          SourceKind `json:"kind"`
	Active        bool       `json:"active"`
	Keywords      []string   `json:"keywords,omitempty"`
	SuccessCount  int        `json:"success_count"`
	AttemptCount  int        `json:"attempt_count"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
}

// SuccessRate returns the rolling success ratio, zero when never attempted.
func (s Source) SuccessRate() float64 {
	if s.AttemptCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.AttemptCount)
}

// ItemStatus is the processing state of a raw content item.
type ItemStatus string

// Raw item lifecycle values. An item moves raw → processing → one of the
// terminal states; posted and converted both mean a canonical opportunity
// exists for it.
const (
	ItemStatusRaw        ItemStatus = "raw"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusProcessed  ItemStatus = "processed"
	ItemStatusPosted     ItemStatus = "posted"
	ItemStatusConverted  ItemStatus = "converted"
	ItemStatusFailed     ItemStatus = "failed"
	ItemStatusRejected   ItemStatus = "rejected"
)

// RawItem is the unprocessed capture from one discovered URL. The pipeline
// owns these exclusively; the canonical Opportunity never references back.
type RawItem struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"source_id"`
	URL           string     `json:"url"`
	Title         string     `json:"title,omitempty"`
	Body          string     `json:"body,omitempty"`
	SnapshotURI   string     `json:"snapshot_uri,omitempty"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	ScrapedAt     *time.Time `json:"scraped_at,omitempty"`
	Status        ItemStatus `json:"status"`
	Confidence    float64    `json:"confidence,omitempty"`
	OpportunityID string     `json:"opportunity_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Candidate is the transient structured record produced by the structuring
// engine. It is consumed by validation and conversion, never persisted.
type Candidate struct {
	Title             string   `json:"title"`
	Organization      string   `json:"organization"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	Location          string   `json:"location"`
	Deadline          string   `json:"deadline"`
	Amount            any      `json:"amount"`
	Tags              FlexList `json:"tags"`
	AboutOpportunity  string   `json:"aboutOpportunity"`
	Requirements      FlexList `json:"requirements"`
	HowToApply        string   `json:"howToApply"`
	WhatYouGet        FlexList `json:"whatYouGet"`
	FundingType       string   `json:"fundingType"`
	EligibleCountries FlexList `json:"eligibleCountries"`
	ContactEmail      string   `json:"contactEmail"`
	ProgramStartDate  string   `json:"programStartDate"`
	ProgramEndDate    string   `json:"programEndDate"`
	EligibilityAge    string   `json:"eligibilityAge"`
}

// ValidationResult reports required-field checks, enum membership checks and
// the populated-field confidence score for a candidate.
type ValidationResult struct {
	IsValid         bool     `json:"is_valid"`
	Confidence      float64  `json:"confidence"`
	Errors          []string `json:"errors,omitempty"`
	ExtractedFields []string `json:"extracted_fields,omitempty"`
}

// AmountShape distinguishes the normalized amount representations.
type AmountShape string

// Amount shapes stored on opportunities.
const (
	AmountShapeSingle AmountShape = "single"
	AmountShapeRange  AmountShape = "range"
)

// Amount is the normalized funding amount. Range amounts carry Min/Max,
// single amounts carry Value (which may be the literal "TBD").
type Amount struct {
	Type  AmountShape `json:"type"`
	Min   float64     `json:"min,omitempty"`
	Max   float64     `json:"max,omitempty"`
	Value string      `json:"value,omitempty"`
}

// Opportunity is the accepted, normalized record handed to the canonical
// store. The surrounding application owns it after creation.
type Opportunity struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Organization      string     `json:"organization"`
	Category          string     `json:"category"`
	Description       string     `json:"description,omitempty"`
	AboutOpportunity  string     `json:"about_opportunity,omitempty"`
	Requirements      []string   `json:"requirements,omitempty"`
	HowToApply        string     `json:"how_to_apply,omitempty"`
	Benefits          []string   `json:"benefits,omitempty"`
	FundingType       string     `json:"funding_type"`
	Amount            Amount     `json:"amount"`
	EligibleCountries []string   `json:"eligible_countries,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	Location          string     `json:"location,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	DeadlineText      string     `json:"deadline_text,omitempty"`
	ProgramStart      *time.Time `json:"program_start,omitempty"`
	ProgramEnd        *time.Time `json:"program_end,omitempty"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	SourceURL         string     `json:"source_url"`
	Confidence        float64    `json:"confidence"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Campaign is the recurrence configuration for a scheduled scrape.
type Campaign struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	SourceIDs     []string   `json:"source_ids"`
	Prompt        string     `json:"prompt,omitempty"`
	Frequency     int        `json:"frequency"`
	FrequencyUnit string     `json:"frequency_unit"`
	Category      string     `json:"category,omitempty"`
	MaxPosts      int        `json:"max_posts"`
	Active        bool       `json:"active"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
}

// RunStatus is the lifecycle state of a campaign run.
type RunStatus string

// Run status values. Completed, stopped and failed are terminal.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusStopped, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CampaignRun is one execution instance of a campaign.
type CampaignRun struct {
	ID               string     `json:"id"`
	CampaignID       string     `json:"campaign_id"`
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TotalSources     int        `json:"total_sources"`
	ProcessedSources int        `json:"processed_sources"`
	ItemsFound       int        `json:"items_found"`
	ItemsCreated     int        `json:"items_created"`
	ErrorText        string     `json:"error_text,omitempty"`
}

// Progress is a live snapshot of an active run, derived from its counters.
type Progress struct {
	RunID            string  `json:"run_id"`
	CampaignID       string  `json:"campaign_id"`
	CurrentURL       string  `json:"current_url,omitempty"`
	TotalSources     int     `json:"total_sources"`
	ProcessedSources int     `json:"processed_sources"`
	ItemsFound       int     `json:"items_found"`
	ItemsCreated     int     `json:"items_created"`
	ETASeconds       float64 `json:"eta_seconds,omitempty"`
}

// Page is a fetched document plus transport metadata.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	UsedJS     bool
}

// Extraction is the best-effort readable content pulled from one page.
type Extraction struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Author        string   `json:"author,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	RawHTML       string   `json:"-"`
}

// Structured wraps a candidate with structuring metadata.
type Structured struct {
	Candidate        Candidate `json:"data"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// Discovery is the result of enumerating candidate post URLs for a source.
type Discovery struct {
	Posts       []string          `json:"posts"`
	MethodUsed  string            `json:"method_used"`
	Diagnostics MethodDiagnostics `json:"diagnostics"`
}

// MethodDiagnostics records per-method candidate counts and URL samples for
// operator debugging, regardless of which method won.
type MethodDiagnostics map[string]MethodReport

// MethodReport is the diagnostic entry for a single discovery method.
type MethodReport struct {
	Count  int      `json:"count"`
	Sample []string `json:"sample,omitempty"`
	Error  string   `json:"error,omitempty"`
}
