package convert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func TestMapFundingTypePriorityOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Full Funding Stipend", "Fully Funded"},
		{"fully funded PhD", "Fully Funded"},
		{"partial tuition waiver", "Partially Funded"},
		{"merit scholarship", "Scholarship"},
		{"monthly stipend provided", "Stipend"},
		{"first prize", "Prize Money"},
		{"achievement award", "Prize Money"},
		{"research grant", "Grant"},
		{"scholarship grant", "Scholarship"},
		{"something else entirely", "Variable Amount"},
		{"", "Variable Amount"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, mapFundingType(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeAmountShapes(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeRange, Min: 1000, Max: 5000},
		normalizeAmount("1000-5000"))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeRange, Min: 1000, Max: 5000},
		normalizeAmount("$1,000 to $5,000"))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "2500"},
		normalizeAmount(float64(2500)))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "2500"},
		normalizeAmount("€2,500"))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "TBD"},
		normalizeAmount(nil))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "TBD"},
		normalizeAmount("  "))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "varies by country"},
		normalizeAmount("varies by country"))

	require.Equal(t,
		pipeline.Amount{Type: pipeline.AmountShapeRange, Min: 100, Max: 200},
		normalizeAmount(map[string]any{"min": float64(100), "max": float64(200)}))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d := parseDate("2026-10-01")
	require.NotNil(t, d)
	require.Equal(t, 2026, d.Year())

	require.NotNil(t, parseDate("October 1, 2026"))
	require.Nil(t, parseDate("Ongoing"))
	require.Nil(t, parseDate("rolling basis"))
	require.Nil(t, parseDate(""))
}

func TestFlexListRoundTrip(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b", "c"}, pipeline.SplitList("a, b, c"))
	require.Empty(t, pipeline.SplitList(""))
	require.NotNil(t, pipeline.SplitList(""))
}
