package traced

import (
	"context"
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/memory"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTraced(t *testing.T) (*ChangeLogRepository, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return WrapWithTracer(memory.NewChangeLogRepository(), "memory", provider.Tracer("test")), recorder
}

func TestTracedRepositoryKeepsContract(t *testing.T) {
	persistencetest.RunChangeLogContract(t, func(t *testing.T) ports.ChangeLogRepository {
		repo, _ := newTraced(t)
		return repo
	})
}

func TestSpansPerCall(t *testing.T) {
	ctx := context.Background()
	repo, recorder := newTraced(t)

	rec, err := repo.Append(ctx, persistencetest.NodeDraft("ws", "n1", "P1"))
	require.NoError(t, err)
	_, err = repo.Get(ctx, "missing")
	require.Error(t, err)
	_, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "changelog.append", spans[0].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
}
