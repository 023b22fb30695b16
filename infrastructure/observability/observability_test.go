package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorRecordsChangeMetrics(t *testing.T) {
	c := NewCollector("test")

	c.ChangeProposed(valueobjects.OpCreateNode)
	c.ChangeProposed(valueobjects.OpCreateNode)
	c.ChangeResolved(valueobjects.DecisionApprove, "applied")
	c.ChangeUndone("failed")
	c.LayoutComputed(42, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ChangesProposed.WithLabelValues("create_node")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ChangesResolved.WithLabelValues("approve", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ChangesUndone.WithLabelValues("failed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.LayoutNodes))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")

	a.ChangeUndone("ok")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ChangesUndone.WithLabelValues("ok")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/changes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", c.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/changes/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/changes/{id}", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "test_http_requests_total"))
}

func TestMultiRecorderFansOut(t *testing.T) {
	a, b := NewCollector("a"), NewCollector("b")
	m := MultiRecorder{a, NopRecorder{}, b}

	m.ChangeProposed(valueobjects.OpDeleteEdge)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ChangesProposed.WithLabelValues("delete_edge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.ChangesProposed.WithLabelValues("delete_edge")))
}

type MockCloudWatch struct {
	mock.Mock
}

func (m *MockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cloudwatch.PutMetricDataOutput)
	return out, args.Error(1)
}

func TestCloudWatchRecorderBuffersUntilFlush(t *testing.T) {
	ctx := context.Background()
	client := new(MockCloudWatch)
	r := NewCloudWatchRecorder("Graph", client, zap.NewNop())

	r.ChangeProposed(valueobjects.OpCreateNode)
	r.SnapshotRebuilt(10, time.Second)
	require.Equal(t, 3, r.Pending())

	client.On("PutMetricData", ctx, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		return *in.Namespace == "Graph" && len(in.MetricData) == 3
	})).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

	require.NoError(t, r.Flush(ctx))
	assert.Zero(t, r.Pending())
	client.AssertExpectations(t)
}

func TestCloudWatchRecorderReportsFailure(t *testing.T) {
	ctx := context.Background()
	client := new(MockCloudWatch)
	r := NewCloudWatchRecorder("Graph", client, zap.NewNop())
	r.ChangeUndone("applied")

	client.On("PutMetricData", ctx, mock.Anything).Return(nil, errors.New("boom"))

	assert.Error(t, r.Flush(ctx))
	assert.Zero(t, r.Pending())
}

func TestCloudWatchRecorderWithoutClient(t *testing.T) {
	r := NewCloudWatchRecorder("Graph", nil, zap.NewNop())
	r.ChangeUndone("applied")
	assert.Zero(t, r.Pending())
}

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}
