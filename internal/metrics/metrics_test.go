package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotPanics(t, func() {
		ObserveItem("posted")
		ObserveRun("completed")
		ObserveDiscovery("https://example.org/posts", "rss")
		ObserveOpportunityCreated()
		ObserveFetch("https://example.org", 120*time.Millisecond)
		ObserveStructure(2 * time.Second)
		IncActiveWorkers()
		DecActiveWorkers()
	})
}

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.org", SanitizeSite("https://Example.org/path"))
	require.Equal(t, "example.org", SanitizeSite("example.org"))
	require.Equal(t, "unknown", SanitizeSite("://bad"))
}
