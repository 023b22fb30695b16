package di

import (
	"context"
	"fmt"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/messaging/eventbridge"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/messaging/logging"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/observability"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/dynamodb"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/memory"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/sqlite"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/traced"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Storage is the selected change-log backend plus its readiness probe
type Storage struct {
	Backend    string
	Repository ports.ChangeLogRepository
	Ping       func(ctx context.Context) error
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideTracing installs the tracer provider before any repository is wrapped
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: "graph-changelog",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRate:  cfg.TraceSampleRate,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideStorage opens the configured change-log backend. Every backend is
// wrapped in tracing spans; with tracing off those are no-ops.
func ProvideStorage(cfg *config.Config, awsCfg aws.Config, _ *observability.TracerProvider, logger *zap.Logger) (*Storage, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		repo := memory.NewChangeLogRepository()
		return &Storage{Backend: cfg.Backend, Repository: traced.Wrap(repo, "memory")}, func() {}, nil

	case config.BackendSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close SQLite change log", zap.Error(err))
			}
		}
		return &Storage{Backend: cfg.Backend, Repository: traced.Wrap(repo, "sqlite"), Ping: repo.Ping}, cleanup, nil

	case config.BackendDynamoDB:
		repo := dynamodb.NewChangeLogRepository(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
		ping := func(ctx context.Context) error {
			_, err := repo.LatestVersion(ctx, "__readiness__")
			return err
		}
		return &Storage{Backend: cfg.Backend, Repository: traced.Wrap(repo, "dynamodb"), Ping: ping}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown change log backend %q", cfg.Backend)
}

// ProvideRepository exposes the storage repository as the port
func ProvideRepository(s *Storage) ports.ChangeLogRepository {
	return s.Repository
}

// ProvideEventPublisher creates the configured event publisher
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.Publisher == config.PublisherEventBridge {
		return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
	}
	return logging.NewPublisher(logger)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideCloudWatchRecorder creates the CloudWatch sink. Without
// ENABLE_CLOUDWATCH it buffers nothing and never calls AWS.
func ProvideCloudWatchRecorder(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (*observability.CloudWatchRecorder, func()) {
	namespace := fmt.Sprintf("Mindscape/%s", cfg.Environment)
	if !cfg.EnableCloudWatch {
		return observability.NewCloudWatchRecorder(namespace, nil, logger), func() {}
	}

	recorder := observability.NewCloudWatchRecorder(namespace, awscloudwatch.NewFromConfig(awsCfg), logger)
	if cfg.IsLambda {
		// Lambda flushes after each invocation instead of on a ticker
		return recorder, func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(ctx, cfg.CloudWatchFlushInterval)
	}()
	return recorder, func() {
		cancel()
		<-done
	}
}

// ProvideMetricsRecorder fans service metrics out to every sink
func ProvideMetricsRecorder(cfg *config.Config, collector *observability.Collector, cw *observability.CloudWatchRecorder) ports.MetricsRecorder {
	recorders := observability.MultiRecorder{cw}
	if cfg.EnableMetrics {
		recorders = append(recorders, collector)
	}
	return recorders
}

// ProvideDomainConfig extracts the domain rules
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.Domain
}

// ProvideSnapshotManager creates the snapshot manager
func ProvideSnapshotManager(cfg *config.Config, repo ports.ChangeLogRepository, metrics ports.MetricsRecorder, logger *zap.Logger) *services.SnapshotManager {
	return services.NewSnapshotManager(repo, metrics, logger.Named("snapshots"), cfg.SnapshotCache)
}

// ProvideChangeLogService creates the change-log service
func ProvideChangeLogService(
	repo ports.ChangeLogRepository,
	snapshots *services.SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	domain *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.ChangeLogService {
	return services.NewChangeLogService(repo, snapshots, publisher, metrics, domain.ChangeLog, logger.Named("changes"))
}

// ProvideApprovalProcessor creates the approval processor
func ProvideApprovalProcessor(
	repo ports.ChangeLogRepository,
	snapshots *services.SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	domain *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.ApprovalProcessor {
	return services.NewApprovalProcessor(repo, snapshots, publisher, metrics, domain.ChangeLog.MaxBatchSize, logger.Named("approvals"))
}

// ProvideUndoEngine creates the undo engine
func ProvideUndoEngine(
	repo ports.ChangeLogRepository,
	snapshots *services.SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *services.UndoEngine {
	return services.NewUndoEngine(repo, snapshots, publisher, metrics, logger.Named("undo"))
}

// ProvideGraphProjector creates the graph projector
func ProvideGraphProjector(domain *domainconfig.DomainConfig, metrics ports.MetricsRecorder, logger *zap.Logger) *projections.GraphProjector {
	return projections.NewGraphProjector(domain.Layout, metrics, logger.Named("projector"))
}

// ProvideCommandBus creates the command bus with all handlers registered
func ProvideCommandBus(
	changes *services.ChangeLogService,
	approvals *services.ApprovalProcessor,
	undo *services.UndoEngine,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	b := bus.NewCommandBus(bus.LoggingMiddleware(logger.Named("commands")))
	if err := commands.NewHandlers(changes, approvals, undo).Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ProvideQueryBus creates the query bus with all handlers registered
func ProvideQueryBus(
	changes *services.ChangeLogService,
	snapshots *services.SnapshotManager,
	projector *projections.GraphProjector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	b := querybus.NewQueryBus(querybus.TimingMiddleware(logger.Named("queries"), 500*time.Millisecond))
	if err := queries.NewHandlers(changes, snapshots, projector).Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ProvideConfigWatcher hot-reloads layout spacings from CONFIG_FILE. It
// returns nil when no file is configured or when running on Lambda.
func ProvideConfigWatcher(cfg *config.Config, projector *projections.GraphProjector, logger *zap.Logger) (*config.Watcher, func(), error) {
	if cfg.ConfigFile == "" || cfg.IsLambda {
		return nil, func() {}, nil
	}
	w, err := config.NewWatcher(cfg.ConfigFile, cfg.Domain, 250*time.Millisecond, logger.Named("config"))
	if err != nil {
		return nil, nil, err
	}
	w.OnChange(func(d *domainconfig.DomainConfig) {
		projector.SetLayoutConfig(d.Layout)
	})
	return w, w.Stop, nil
}
