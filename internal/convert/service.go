// Package convert normalizes validated candidates into canonical
// opportunities and owns the raw item status transitions around posting.
package convert

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Result is the outcome of one conversion attempt.
type Result struct {
	Created        bool                 `json:"created"`
	Opportunity    pipeline.Opportunity `json:"opportunity,omitempty"`
	RejectedReason string               `json:"rejected_reason,omitempty"`
}

// Service converts candidates into opportunities.
type Service struct {
	items         pipeline.ItemStore
	opportunities pipeline.OpportunityStore
	publisher     pipeline.Publisher
	topic         string
	clock         pipeline.Clock
	ids           pipeline.IDGenerator
	logger        *zap.Logger
}

// NewService wires the conversion dependencies. The publisher may be a noop.
func NewService(
	items pipeline.ItemStore,
	opportunities pipeline.OpportunityStore,
	publisher pipeline.Publisher,
	topic string,
	clock pipeline.Clock,
	ids pipeline.IDGenerator,
	logger *zap.Logger,
) *Service {
	return &Service{
		items:         items,
		opportunities: opportunities,
		publisher:     publisher,
		topic:         topic,
		clock:         clock,
		ids:           ids,
		logger:        logger,
	}
}

// Convert normalizes the candidate and inserts it as an opportunity.
//
// Status handling: on success the item becomes posted with a back-reference
// to the new opportunity. When the insert itself fails, the item stays
// processed (not failed) with a note, since the structured output is intact
// and posting can be retried without re-extraction. Invalid candidates move
// the item to rejected. Items already posted or converted return their
// existing opportunity id without creating a duplicate.
func (s *Service) Convert(ctx context.Context, item pipeline.RawItem, candidate pipeline.Candidate, validation pipeline.ValidationResult) (Result, error) {
	if item.Status == pipeline.ItemStatusPosted || item.Status == pipeline.ItemStatusConverted || item.OpportunityID != "" {
		return Result{Created: false, RejectedReason: "already converted"}, nil
	}

	if !validation.IsValid {
		reason := "validation failed: " + strings.Join(validation.Errors, "; ")
		item.Status = pipeline.ItemStatusRejected
		item.Notes = appendNote(item.Notes, reason)
		item.Confidence = validation.Confidence
		if err := s.items.UpdateItem(ctx, item); err != nil {
			return Result{}, &pipeline.PersistenceError{Op: "update rejected item", Err: err}
		}
		return Result{Created: false, RejectedReason: reason}, nil
	}

	// Dedupe by source URL before inserting.
	if existingID, found, err := s.opportunities.FindOpportunityByURL(ctx, item.URL); err == nil && found {
		item.Status = pipeline.ItemStatusConverted
		item.OpportunityID = existingID
		item.Confidence = validation.Confidence
		if updateErr := s.items.UpdateItem(ctx, item); updateErr != nil {
			return Result{}, &pipeline.PersistenceError{Op: "update deduped item", Err: updateErr}
		}
		return Result{Created: false, RejectedReason: "duplicate of " + existingID}, nil
	}

	opp, err := s.buildOpportunity(item, candidate, validation)
	if err != nil {
		return Result{}, err
	}

	createdID, err := s.opportunities.CreateOpportunity(ctx, opp)
	if err != nil {
		item.Status = pipeline.ItemStatusProcessed
		item.Confidence = validation.Confidence
		item.Notes = appendNote(item.Notes, "structured successfully but not posted: "+err.Error())
		if updateErr := s.items.UpdateItem(ctx, item); updateErr != nil {
			s.logger.Error("failed to record posting failure",
				zap.String("item_id", item.ID),
				zap.Error(updateErr),
			)
		}
		return Result{}, &pipeline.PersistenceError{Op: "create opportunity", Err: err}
	}
	opp.ID = createdID

	item.Status = pipeline.ItemStatusPosted
	item.OpportunityID = createdID
	item.Confidence = validation.Confidence
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return Result{}, &pipeline.PersistenceError{Op: "update posted item", Err: err}
	}

	s.publishCreated(ctx, item, opp)

	s.logger.Info("opportunity created",
		zap.String("opportunity_id", createdID),
		zap.String("item_id", item.ID),
		zap.Float64("confidence", validation.Confidence),
	)
	return Result{Created: true, Opportunity: opp}, nil
}

func (s *Service) buildOpportunity(item pipeline.RawItem, c pipeline.Candidate, validation pipeline.ValidationResult) (pipeline.Opportunity, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return pipeline.Opportunity{}, fmt.Errorf("generate opportunity id: %w", err)
	}

	category := strings.TrimSpace(c.Category)
	if !pipeline.IsKnownCategory(category) {
		category = "Other"
	}

	deadline := parseDate(c.Deadline)
	deadlineText := ""
	if deadline == nil {
		deadlineText = strings.TrimSpace(c.Deadline)
	}

	return pipeline.Opportunity{
		ID:                id,
		Title:             strings.TrimSpace(c.Title),
		Organization:      strings.TrimSpace(c.Organization),
		Category:          category,
		Description:       strings.TrimSpace(c.Description),
		AboutOpportunity:  strings.TrimSpace(c.AboutOpportunity),
		Requirements:      []string(c.Requirements),
		HowToApply:        strings.TrimSpace(c.HowToApply),
		Benefits:          []string(c.WhatYouGet),
		FundingType:       mapFundingType(c.FundingType),
		Amount:            normalizeAmount(c.Amount),
		EligibleCountries: []string(c.EligibleCountries),
		Tags:              []string(c.Tags),
		Location:          strings.TrimSpace(c.Location),
		Deadline:          deadline,
		DeadlineText:      deadlineText,
		ProgramStart:      parseDate(c.ProgramStartDate),
		ProgramEnd:        parseDate(c.ProgramEndDate),
		ContactEmail:      strings.TrimSpace(c.ContactEmail),
		SourceURL:         item.URL,
		Confidence:        validation.Confidence,
		CreatedAt:         s.clock.Now(),
	}, nil
}

// publishCreated emits a conversion event. Failures are logged, never
// surfaced; the event stream is advisory.
func (s *Service) publishCreated(ctx context.Context, item pipeline.RawItem, opp pipeline.Opportunity) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	event := map[string]any{
		"type":           "opportunity.created",
		"opportunity_id": opp.ID,
		"item_id":        item.ID,
		"source_id":      item.SourceID,
		"source_url":     opp.SourceURL,
		"category":       opp.Category,
		"created_at":     opp.CreatedAt,
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("publish conversion event failed",
			zap.String("opportunity_id", opp.ID),
			zap.Error(err),
		)
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " | " + note
}
