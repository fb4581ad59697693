package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func TestDetectorFlagsTinyBody(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(2048, nil, nil)
	require.True(t, d.NeedsJS(pipeline.Page{Body: []byte("<html></html>")}))
}

func TestDetectorFlagsShellKeywords(t *testing.T) {
	t.Parallel()

	body := `<html><body><div id="root"></div><script>Please Enable JavaScript</script></body></html>`
	d := NewHeuristicDetector(0, nil, DefaultShellKeywords)
	require.True(t, d.NeedsJS(pipeline.Page{Body: []byte(body)}))
}

func TestDetectorAcceptsRenderedContent(t *testing.T) {
	t.Parallel()

	body := `<html><body><main><h1>Scholarship 2026</h1><p>` + strings.Repeat("content ", 400) + `</p></main></body></html>`
	d := NewHeuristicDetector(1024, DefaultShellSelectors, DefaultShellKeywords)
	require.False(t, d.NeedsJS(pipeline.Page{Body: []byte(body)}))
}

func TestDetectorFlagsMissingContentNodes(t *testing.T) {
	t.Parallel()

	body := `<html><body>` + strings.Repeat("<div>x</div>", 500) + `</body></html>`
	d := NewHeuristicDetector(0, DefaultShellSelectors, nil)
	require.True(t, d.NeedsJS(pipeline.Page{Body: []byte(body)}))
}

func TestNilDetectorNeverFlags(t *testing.T) {
	t.Parallel()

	var d *HeuristicDetector
	require.False(t, d.NeedsJS(pipeline.Page{}))
}
