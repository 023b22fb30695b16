package di

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/observability"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Storage    *Storage
	Publisher  ports.EventPublisher
	Collector  *observability.Collector
	CloudWatch *observability.CloudWatchRecorder
	Tracing    *observability.TracerProvider
	Snapshots  *services.SnapshotManager
	Projector  *projections.GraphProjector
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Watcher    *config.Watcher
}

// Ready reports whether the change log backend answers
func (c *Container) Ready(ctx context.Context) error {
	if c.Storage == nil || c.Storage.Ping == nil {
		return nil
	}
	return c.Storage.Ping(ctx)
}

// Router builds the HTTP surface over the container's buses
func (c *Container) Router() (*chi.Mux, error) {
	var collector *observability.Collector
	if c.Config.EnableMetrics {
		collector = c.Collector
	}
	return rest.NewRouter(
		c.CommandBus,
		c.QueryBus,
		collector,
		c.Ready,
		rest.RouterConfig{
			EnableCORS:     c.Config.EnableCORS,
			AllowedOrigins: c.Config.AllowedOrigins,
			EnableAuth:     c.Config.EnableAuth,
			JWTSecret:      c.Config.JWTSecret,
			JWTIssuer:      c.Config.JWTIssuer,
			Debug:          c.Config.IsDevelopment(),
		},
		c.Logger.Named("http"),
	).Setup()
}
