package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func fullCandidate() pipeline.Candidate {
	return pipeline.Candidate{
		Title:             "PhD Scholarship",
		Organization:      "Example University",
		Description:       "A fully funded PhD position.",
		Category:          "Scholarship",
		Location:          "Berlin, Germany",
		Deadline:          "2026-10-01",
		Amount:            "50000",
		Tags:              pipeline.FlexList{"phd"},
		AboutOpportunity:  "Long description.",
		Requirements:      pipeline.FlexList{"Masters degree"},
		HowToApply:        "Apply online.",
		WhatYouGet:        pipeline.FlexList{"Stipend"},
		FundingType:       "Fully Funded",
		EligibleCountries: pipeline.FlexList{"All Countries"},
		ContactEmail:      "grants@example.org",
		ProgramStartDate:  "2027-01-01",
		ProgramEndDate:    "2030-01-01",
		EligibilityAge:    "18+",
	}
}

func TestMissingRequiredFieldsInvalidate(t *testing.T) {
	t.Parallel()

	v := New()

	noTitle := fullCandidate()
	noTitle.Title = "  "
	result := v.Validate(noTitle)
	require.False(t, result.IsValid)
	require.Contains(t, result.Errors[0], "missing required field: title")

	noOrg := fullCandidate()
	noOrg.Organization = ""
	require.False(t, v.Validate(noOrg).IsValid)
}

func TestFullCandidateScoresOne(t *testing.T) {
	t.Parallel()

	result := New().Validate(fullCandidate())
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors)
	require.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestConfidenceFormulaComponents(t *testing.T) {
	t.Parallel()

	v := New()

	// Required fields only: 0.2 + 0.2.
	minimal := pipeline.Candidate{Title: "T", Organization: "O"}
	require.InDelta(t, 0.4, v.Validate(minimal).Confidence, 1e-9)

	// One of eight important fields adds 0.4/8.
	withDesc := minimal
	withDesc.Description = "something"
	require.InDelta(t, 0.4+0.4/8, v.Validate(withDesc).Confidence, 1e-9)

	// One of seven bonus fields adds 0.2/7.
	withEmail := minimal
	withEmail.ContactEmail = "a@b.org"
	require.InDelta(t, 0.4+0.2/7, v.Validate(withEmail).Confidence, 1e-9)
}

func TestSoftEnumErrorsPenalizeWithoutInvalidating(t *testing.T) {
	t.Parallel()

	c := fullCandidate()
	c.Category = "Bursary"
	c.FundingType = "Mystery Money"

	result := New().Validate(c)
	require.True(t, result.IsValid)
	require.Len(t, result.Errors, 2)
	require.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestFreeFormDeadlineAccepted(t *testing.T) {
	t.Parallel()

	c := fullCandidate()
	c.Deadline = "applications close when the cohort is full"

	result := New().Validate(c)
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors)
}

func TestConfidenceMonotonicity(t *testing.T) {
	t.Parallel()

	v := New()
	c := pipeline.Candidate{Title: "T", Organization: "O"}
	prev := v.Validate(c).Confidence

	steps := []func(*pipeline.Candidate){
		func(c *pipeline.Candidate) { c.Description = "d" },
		func(c *pipeline.Candidate) { c.Deadline = "2026-10-01" },
		func(c *pipeline.Candidate) { c.AboutOpportunity = "a" },
		func(c *pipeline.Candidate) { c.Requirements = pipeline.FlexList{"r"} },
		func(c *pipeline.Candidate) { c.HowToApply = "h" },
		func(c *pipeline.Candidate) { c.WhatYouGet = pipeline.FlexList{"w"} },
		func(c *pipeline.Candidate) { c.Category = "Grant" },
		func(c *pipeline.Candidate) { c.Location = "l" },
		func(c *pipeline.Candidate) { c.ContactEmail = "e@x.org" },
		func(c *pipeline.Candidate) { c.Amount = 5000 },
		func(c *pipeline.Candidate) { c.FundingType = "Grant" },
		func(c *pipeline.Candidate) { c.EligibleCountries = pipeline.FlexList{"DE"} },
		func(c *pipeline.Candidate) { c.ProgramStartDate = "2027-01-01" },
		func(c *pipeline.Candidate) { c.ProgramEndDate = "2028-01-01" },
		func(c *pipeline.Candidate) { c.EligibilityAge = "18+" },
	}
	for i, step := range steps {
		step(&c)
		got := v.Validate(c).Confidence
		require.GreaterOrEqual(t, got+1e-12, prev, "step %d decreased confidence", i)
		require.False(t, math.IsNaN(got))
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
		prev = got
	}
	require.InDelta(t, 1.0, prev, 1e-9)
}

func TestConfidenceClampedAtZero(t *testing.T) {
	t.Parallel()

	c := pipeline.Candidate{Category: "Nonsense", FundingType: "Nonsense"}
	result := New().Validate(c)

	// Two missing-field and two enum errors outweigh the category and
	// funding-type population credit.
	require.GreaterOrEqual(t, result.Confidence, 0.0)
	require.False(t, result.IsValid)
}

func TestAmountPresence(t *testing.T) {
	t.Parallel()

	require.False(t, amountPresent(nil))
	require.False(t, amountPresent("  "))
	require.True(t, amountPresent("TBD"))
	require.True(t, amountPresent(float64(100)))
	require.True(t, amountPresent(map[string]any{"min": 1}))
}
