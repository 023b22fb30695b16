package observability

import (
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
)

// NopRecorder discards all metrics
type NopRecorder struct{}

var _ ports.MetricsRecorder = NopRecorder{}

func (NopRecorder) ChangeProposed(valueobjects.Operation)        {}
func (NopRecorder) ChangeResolved(valueobjects.Decision, string) {}
func (NopRecorder) ChangeUndone(string)                          {}
func (NopRecorder) SnapshotRebuilt(int, time.Duration)           {}
func (NopRecorder) LayoutComputed(int, time.Duration)            {}

// MultiRecorder fans every call out to several recorders
type MultiRecorder []ports.MetricsRecorder

var _ ports.MetricsRecorder = MultiRecorder(nil)

func (m MultiRecorder) ChangeProposed(op valueobjects.Operation) {
	for _, r := range m {
		r.ChangeProposed(op)
	}
}

func (m MultiRecorder) ChangeResolved(decision valueobjects.Decision, outcome string) {
	for _, r := range m {
		r.ChangeResolved(decision, outcome)
	}
}

func (m MultiRecorder) ChangeUndone(outcome string) {
	for _, r := range m {
		r.ChangeUndone(outcome)
	}
}

func (m MultiRecorder) SnapshotRebuilt(records int, took time.Duration) {
	for _, r := range m {
		r.SnapshotRebuilt(records, took)
	}
}

func (m MultiRecorder) LayoutComputed(nodes int, took time.Duration) {
	for _, r := range m {
		r.LayoutComputed(nodes, took)
	}
}
