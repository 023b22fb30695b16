package logging

import (
	"context"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishLogsEveryEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPublisher(zap.New(core))

	rec := &entities.ChangeRecord{ID: "c-1", WorkspaceID: "ws", Version: 3, CreatedAt: time.Now()}
	require.NoError(t, p.Publish(context.Background(),
		events.NewChangeProposed(rec),
		events.NewChangeUndone(rec, time.Now()),
	))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, events.TypeChangeProposed, entries[0].ContextMap()["event_type"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["version"])
}
