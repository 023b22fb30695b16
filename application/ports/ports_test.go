package ports

import (
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
)

func TestPendingFilterMatches(t *testing.T) {
	rec := &entities.ChangeRecord{
		Operation:  valueobjects.OpCreateNode,
		TargetType: valueobjects.TargetNode,
		Actor:      valueobjects.ActorAutomatedAgent,
		AfterState: &entities.State{Metadata: &entities.Metadata{ProjectID: "P1"}},
	}

	tests := []struct {
		name   string
		filter PendingFilter
		want   bool
	}{
		{"empty", PendingFilter{}, true},
		{"actor hit", PendingFilter{Actor: valueobjects.ActorAutomatedAgent}, true},
		{"actor miss", PendingFilter{Actor: valueobjects.ActorUser}, false},
		{"operation miss", PendingFilter{Operation: valueobjects.OpDeleteNode}, false},
		{"target miss", PendingFilter{TargetType: valueobjects.TargetEdge}, false},
		{"project hit", PendingFilter{ProjectID: "P1"}, true},
		{"project miss", PendingFilter{ProjectID: "P2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}
