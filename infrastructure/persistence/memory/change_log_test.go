package memory

import (
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
)

func TestChangeLogRepository(t *testing.T) {
	persistencetest.RunChangeLogContract(t, func(t *testing.T) ports.ChangeLogRepository {
		return NewChangeLogRepository()
	})
}
