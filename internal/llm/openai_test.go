package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(endpoint string) *OpenAIClient {
	return NewOpenAIClient(ClientOptions{
		Endpoint: endpoint,
		Model:    "test-model",
		APIKey:   "test-key",
	}, zap.NewNop())
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "test-model", payload["model"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"X\"}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Complete(t.Context(), "extract things")
	require.NoError(t, err)
	require.Equal(t, `{"title":"X"}`, out)
}

func TestCompleteUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(t.Context(), "extract things")
	require.ErrorContains(t, err, "completion error")
}

func TestCompleteEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(t.Context(), "extract things")
	require.ErrorContains(t, err, "no choices")
}

func TestCompleteMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewOpenAIClient(ClientOptions{}, zap.NewNop())
	_, err := c.Complete(t.Context(), "extract things")
	require.ErrorContains(t, err, "misconfigured")
}
