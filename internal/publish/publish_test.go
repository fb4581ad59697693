package publish

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherRecordsInOrder(t *testing.T) {
	t.Parallel()

	pub := NewMemory()
	id1, err := pub.Publish(t.Context(), "opportunities", map[string]string{"event": "created"})
	require.NoError(t, err)
	id2, err := pub.Publish(t.Context(), "opportunities", map[string]string{"event": "created"})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	events := pub.Events()
	require.Len(t, events, 2)
	require.Equal(t, "opportunities", events[0].Topic)
	require.JSONEq(t, `{"event":"created"}`, string(events[0].Payload))
}

func TestMemoryPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := NewMemory()
	_, err := pub.Publish(t.Context(), "opportunities", make(chan int))
	require.Error(t, err)
	require.Empty(t, pub.Events())
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	id, err := NewNoop().Publish(t.Context(), "opportunities", "anything")
	require.NoError(t, err)
	require.Empty(t, id)
}
