package convert

import (
	"context"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Structurer produces a candidate from extracted text.
type Structurer interface {
	Structure(ctx context.Context, title, rawText, sourceURL string) (pipeline.Structured, error)
}

// CandidateValidator scores a candidate.
type CandidateValidator interface {
	Validate(c pipeline.Candidate) pipeline.ValidationResult
}

// BatchResult aggregates one ProcessPending pass.
type BatchResult struct {
	Total     int `json:"total"`
	Created   int `json:"created"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Duplicate int `json:"duplicate"`
}

// Processor drives structure → validate → convert over pending raw items.
type Processor struct {
	items     pipeline.ItemStore
	engine    Structurer
	validator CandidateValidator
	service   *Service
	logger    *zap.Logger
}

// NewProcessor wires the batch pipeline.
func NewProcessor(items pipeline.ItemStore, engine Structurer, validator CandidateValidator, service *Service, logger *zap.Logger) *Processor {
	return &Processor{
		items:     items,
		engine:    engine,
		validator: validator,
		service:   service,
		logger:    logger,
	}
}

// ProcessPending runs every raw item through the AI pipeline. Item failures
// are recorded on the item and never abort the batch; each item's outcome is
// independent.
func (p *Processor) ProcessPending(ctx context.Context) (BatchResult, error) {
	items, err := p.items.ListItemsByStatus(ctx, pipeline.ItemStatusRaw)
	if err != nil {
		return BatchResult{}, &pipeline.PersistenceError{Op: "list raw items", Err: err}
	}

	result := BatchResult{Total: len(items)}
	for _, item := range items {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		p.processOne(ctx, item, &result)
	}

	p.logger.Info("batch processing complete",
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (p *Processor) processOne(ctx context.Context, item pipeline.RawItem, result *BatchResult) {
	if item.Body == "" {
		result.Skipped++
		return
	}

	item.Status = pipeline.ItemStatusProcessing
	if err := p.items.UpdateItem(ctx, item); err != nil {
		p.logger.Warn("failed to mark item processing", zap.String("item_id", item.ID), zap.Error(err))
		result.Failed++
		return
	}

	structured, err := p.engine.Structure(ctx, item.Title, item.Body, item.URL)
	if err != nil {
		p.markFailed(ctx, item, err)
		result.Failed++
		return
	}

	validation := p.validator.Validate(structured.Candidate)
	converted, err := p.service.Convert(ctx, item, structured.Candidate, validation)
	switch {
	case err != nil:
		// Persistence failures leave the item retriable; the service has
		// already set the right status.
		p.logger.Warn("conversion failed", zap.String("item_id", item.ID), zap.Error(err))
		result.Failed++
	case converted.Created:
		result.Created++
	case validation.IsValid:
		result.Duplicate++
	default:
		result.Rejected++
	}
}

func (p *Processor) markFailed(ctx context.Context, item pipeline.RawItem, cause error) {
	item.Status = pipeline.ItemStatusFailed
	item.Notes = appendNote(item.Notes, cause.Error())
	if err := p.items.UpdateItem(ctx, item); err != nil {
		p.logger.Error("failed to record item failure", zap.String("item_id", item.ID), zap.Error(err))
	}
}
