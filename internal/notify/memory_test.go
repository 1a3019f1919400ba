package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := NewMemory()
	id, err := p.Publish(context.Background(), "submissions", map[string]any{"id": 1})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	_, err = p.Publish(context.Background(), "submissions", map[string]any{"id": 2})
	require.NoError(t, err)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "submissions", msgs[0].Topic)
}
