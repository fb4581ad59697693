package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// fundingKeywords maps free text onto the taxonomy by substring match. The
// order is significant: earlier entries win, so "Full Funding Stipend" maps
// to "Fully Funded" rather than "Stipend".
var fundingKeywords = []struct {
	keyword string
	mapped  string
}{
	{"full", "Fully Funded"},
	{"fully", "Fully Funded"},
	{"partial", "Partially Funded"},
	{"scholarship", "Scholarship"},
	{"stipend", "Stipend"},
	{"prize", "Prize Money"},
	{"award", "Prize Money"},
	{"grant", "Grant"},
}

const fundingTypeDefault = "Variable Amount"

// mapFundingType folds free text into the fixed taxonomy. The mapping is
// lossy and total: every input maps to exactly one value.
func mapFundingType(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return fundingTypeDefault
	}
	for _, entry := range fundingKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.mapped
		}
	}
	return fundingTypeDefault
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"2006/01/02",
}

// parseDate parses a date in any accepted layout. Unparseable values return
// nil rather than an error; deadlines are free-form in source material.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// normalizeAmount folds the model's untyped amount value into the canonical
// shape. Ranges like "1000-5000" become {range, min, max}; bare numbers
// become {single, value}; anything unusable becomes {single, "TBD"}.
func normalizeAmount(raw any) pipeline.Amount {
	tbd := pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "TBD"}

	switch v := raw.(type) {
	case nil:
		return tbd
	case float64:
		return pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: formatNumber(v)}
	case int:
		return pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: strconv.Itoa(v)}
	case string:
		return normalizeAmountText(v)
	case map[string]any:
		if minVal, maxVal, ok := rangeFromMap(v); ok {
			return pipeline.Amount{Type: pipeline.AmountShapeRange, Min: minVal, Max: maxVal}
		}
		if value, ok := v["value"]; ok {
			return normalizeAmount(value)
		}
		return tbd
	default:
		return tbd
	}
}

func normalizeAmountText(raw string) pipeline.Amount {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || strings.EqualFold(cleaned, "tbd") {
		return pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "TBD"}
	}

	stripped := stripCurrency(cleaned)
	if lo, hi, ok := splitRange(stripped); ok {
		return pipeline.Amount{Type: pipeline.AmountShapeRange, Min: lo, Max: hi}
	}
	if n, err := strconv.ParseFloat(stripped, 64); err == nil {
		return pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: formatNumber(n)}
	}
	// Non-numeric but meaningful text ("varies by country") is kept as-is.
	return pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: cleaned}
}

func rangeFromMap(m map[string]any) (float64, float64, bool) {
	minRaw, okMin := m["min"]
	maxRaw, okMax := m["max"]
	if !okMin || !okMax {
		return 0, 0, false
	}
	lo, okLo := toFloat(minRaw)
	hi, okHi := toFloat(maxRaw)
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(stripCurrency(strings.TrimSpace(n)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func splitRange(s string) (float64, float64, bool) {
	var sep string
	switch {
	case strings.Contains(s, " to "):
		sep = " to "
	case strings.Contains(s, "-"):
		sep = "-"
	default:
		return 0, 0, false
	}
	parts := strings.SplitN(s, sep, 2)
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLo != nil || errHi != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func stripCurrency(s string) string {
	replacer := strings.NewReplacer("$", "", "€", "", "£", "", ",", "", "USD", "", "EUR", "", "GBP", "")
	return strings.TrimSpace(replacer.Replace(s))
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return fmt.Sprintf("%g", n)
}
