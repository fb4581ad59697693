package pipeline

import "strings"

// Categories is the canonical category enumeration for opportunities.
var Categories = []string{
	"Scholarship",
	"Fellowship",
	"Grant",
	"Competition",
	"Internship",
	"Conference",
	"Award",
	"Other",
}

// FundingTypes is the canonical funding-type taxonomy.
var FundingTypes = []string{
	"Fully Funded",
	"Partially Funded",
	"Scholarship",
	"Stipend",
	"Prize Money",
	"Grant",
	"Variable Amount",
}

// IsKnownCategory reports membership in Categories, case-insensitively.
func IsKnownCategory(s string) bool {
	return containsFold(Categories, s)
}

// IsKnownFundingType reports membership in FundingTypes, case-insensitively.
func IsKnownFundingType(s string) bool {
	return containsFold(FundingTypes, s)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
