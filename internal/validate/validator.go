// Package validate scores structured candidates and enforces required
// fields. It is pure and deterministic, no I/O.
package validate

import (
	"strings"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

const (
	requiredFieldWeight = 0.2
	importantWeight     = 0.4
	bonusWeight         = 0.2
	errorPenalty        = 0.1

	missingFieldPrefix = "missing required field"
)

// Validator checks candidates against the canonical enumerations and
// computes the populated-field confidence score.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

type fieldCheck struct {
	name      string
	populated bool
}

// Validate applies the rule set to a candidate. Missing title or
// organization are hard errors; unknown category or funding type are soft
// errors that lower confidence without invalidating the candidate.
// Deadlines are free-form in source material and never produce an error.
func (v *Validator) Validate(c pipeline.Candidate) pipeline.ValidationResult {
	var errs []string

	titlePresent := strings.TrimSpace(c.Title) != ""
	orgPresent := strings.TrimSpace(c.Organization) != ""
	if !titlePresent {
		errs = append(errs, missingFieldPrefix+": title")
	}
	if !orgPresent {
		errs = append(errs, missingFieldPrefix+": organization")
	}

	if cat := strings.TrimSpace(c.Category); cat != "" && !pipeline.IsKnownCategory(cat) {
		errs = append(errs, "unknown category: "+cat)
	}
	if ft := strings.TrimSpace(c.FundingType); ft != "" && !pipeline.IsKnownFundingType(ft) {
		errs = append(errs, "unknown funding type: "+ft)
	}

	important := []fieldCheck{
		{"description", textPresent(c.Description)},
		{"deadline", textPresent(c.Deadline)},
		{"aboutOpportunity", textPresent(c.AboutOpportunity)},
		{"requirements", len(c.Requirements) > 0},
		{"howToApply", textPresent(c.HowToApply)},
		{"whatYouGet", len(c.WhatYouGet) > 0},
		{"category", textPresent(c.Category)},
		{"location", textPresent(c.Location)},
	}
	bonus := []fieldCheck{
		{"contactEmail", textPresent(c.ContactEmail)},
		{"amount", amountPresent(c.Amount)},
		{"fundingType", textPresent(c.FundingType)},
		{"eligibleCountries", len(c.EligibleCountries) > 0},
		{"programStartDate", textPresent(c.ProgramStartDate)},
		{"programEndDate", textPresent(c.ProgramEndDate)},
		{"eligibilityAge", textPresent(c.EligibilityAge)},
	}

	var extracted []string
	if titlePresent {
		extracted = append(extracted, "title")
	}
	if orgPresent {
		extracted = append(extracted, "organization")
	}

	confidence := 0.0
	if titlePresent {
		confidence += requiredFieldWeight
	}
	if orgPresent {
		confidence += requiredFieldWeight
	}

	importantCount := 0
	for _, f := range important {
		if f.populated {
			importantCount++
			extracted = append(extracted, f.name)
		}
	}
	confidence += importantWeight * float64(importantCount) / float64(len(important))

	bonusCount := 0
	for _, f := range bonus {
		if f.populated {
			bonusCount++
			extracted = append(extracted, f.name)
		}
	}
	confidence += bonusWeight * float64(bonusCount) / float64(len(bonus))

	confidence -= errorPenalty * float64(len(errs))
	confidence = clamp(confidence, 0, 1)

	return pipeline.ValidationResult{
		IsValid:         titlePresent && orgPresent,
		Confidence:      confidence,
		Errors:          errs,
		ExtractedFields: extracted,
	}
}

func textPresent(s string) bool {
	return strings.TrimSpace(s) != ""
}

// amountPresent treats nil and blank strings as absent; any number, object
// or non-empty string counts as populated.
func amountPresent(amount any) bool {
	switch v := amount.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
