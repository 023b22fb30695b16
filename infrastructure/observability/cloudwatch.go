package observability

import (
	"context"
	"sync"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const cloudWatchBatchSize = 500

// CloudWatchAPI is the part of the CloudWatch client the recorder needs
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder buffers metric data and ships it with PutMetricData.
// Recording never blocks on the network; call Flush or Run to send.
type CloudWatchRecorder struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
}

var _ ports.MetricsRecorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a new CloudWatch recorder
func NewCloudWatchRecorder(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchRecorder {
	return &CloudWatchRecorder{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

func (r *CloudWatchRecorder) ChangeProposed(op valueobjects.Operation) {
	r.add("ChangeProposed", 1, types.StandardUnitCount, dim("Operation", string(op)))
}

func (r *CloudWatchRecorder) ChangeResolved(decision valueobjects.Decision, outcome string) {
	r.add("ChangeResolved", 1, types.StandardUnitCount,
		dim("Decision", string(decision)),
		dim("Outcome", outcome),
	)
}

func (r *CloudWatchRecorder) ChangeUndone(outcome string) {
	r.add("ChangeUndone", 1, types.StandardUnitCount, dim("Outcome", outcome))
}

func (r *CloudWatchRecorder) SnapshotRebuilt(records int, took time.Duration) {
	r.add("SnapshotRebuildLatency", float64(took.Milliseconds()), types.StandardUnitMilliseconds)
	r.add("SnapshotRecords", float64(records), types.StandardUnitCount)
}

func (r *CloudWatchRecorder) LayoutComputed(nodes int, took time.Duration) {
	r.add("LayoutLatency", float64(took.Microseconds()), types.StandardUnitMicroseconds)
	r.add("LayoutNodes", float64(nodes), types.StandardUnitCount)
}

func (r *CloudWatchRecorder) add(name string, value float64, unit types.StandardUnit, dims ...types.Dimension) {
	if r.client == nil {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
	})
	r.mu.Unlock()
}

// Pending returns the number of buffered data points
func (r *CloudWatchRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush sends every buffered data point. Failed batches are dropped and logged.
func (r *CloudWatchRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	data := r.pending
	r.pending = nil
	r.mu.Unlock()

	var firstErr error
	for i := 0; i < len(data); i += cloudWatchBatchSize {
		end := i + cloudWatchBatchSize
		if end > len(data) {
			end = len(data)
		}

		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: data[i:end],
		})
		if err != nil {
			r.logger.Warn("Failed to send metrics",
				zap.Int("datums", end-i),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes every interval until ctx is cancelled, then flushes once more
func (r *CloudWatchRecorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Flush(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = r.Flush(shutdownCtx)
			cancel()
			return
		}
	}
}

func dim(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
