//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/config"
	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideTracing,
	ProvideStorage,
	ProvideRepository,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideCloudWatchRecorder,
	ProvideMetricsRecorder,
	ProvideDomainConfig,
	ProvideSnapshotManager,
	ProvideChangeLogService,
	ProvideApprovalProcessor,
	ProvideUndoEngine,
	ProvideGraphProjector,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideConfigWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup function
// releases resources in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
