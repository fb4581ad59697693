package structure

import (
	"fmt"
	"strings"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

const promptTemplate = `Extract structured opportunity data from the following page.

Return ONLY a JSON object with exactly these keys:
- "title": the opportunity title
- "organization": the offering organization
- "description": one-paragraph summary
- "category": one of [%s]
- "location": location or "Online" or "Various"
- "deadline": application deadline as an ISO date (YYYY-MM-DD) or "Ongoing"
- "amount": funding amount, a number, a range like "1000-5000", or "TBD"
- "tags": comma-separated keywords
- "aboutOpportunity": longer description of the opportunity
- "requirements": eligibility requirements
- "howToApply": application instructions
- "whatYouGet": benefits for the recipient
- "fundingType": one of [%s]
- "eligibleCountries": eligible countries, or "All Countries"
- "contactEmail": contact email if present
- "programStartDate": ISO date if present
- "programEndDate": ISO date if present
- "eligibilityAge": age requirements if present

Use an empty string for anything not present in the page. Do not invent values.
%s
Page title: %s
Source URL: %s

Page content:
%s`

// buildPrompt binds the extraction inputs into the fixed-schema template.
// Campaign-specific instructions, when present, are inserted between the
// schema and the page content.
func buildPrompt(title, rawText, sourceURL, instructions string) string {
	extra := ""
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		extra = "\nAdditional instructions: " + instructions + "\n"
	}
	return fmt.Sprintf(promptTemplate,
		strings.Join(pipeline.Categories, ", "),
		strings.Join(pipeline.FundingTypes, ", "),
		extra,
		title,
		sourceURL,
		rawText,
	)
}
