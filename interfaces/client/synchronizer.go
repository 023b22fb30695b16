package client

import (
	"context"
	"sync"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/debounce"
	"go.uber.org/zap"
)

// Fetcher is the read side the synchronizer refreshes from. *Client satisfies it.
type Fetcher interface {
	ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error)
	Graph(ctx context.Context, workspaceID string, includeProposed bool) (*projections.GraphView, error)
}

// SyncConfig tunes refresh timing
type SyncConfig struct {
	Debounce        time.Duration
	Fallback        time.Duration
	RequestTimeout  time.Duration
	IncludeProposed bool
}

// DefaultSyncConfig returns the default refresh timing
func DefaultSyncConfig() SyncConfig {
	return SyncConfigFor(domainconfig.DefaultDomainConfig().Refresh)
}

// SyncConfigFor takes the refresh timing from the domain configuration
func SyncConfigFor(refresh domainconfig.RefreshConfig) SyncConfig {
	return SyncConfig{
		Debounce:        refresh.Debounce,
		Fallback:        refresh.Fallback,
		RequestTimeout:  10 * time.Second,
		IncludeProposed: true,
	}
}

// View is the last fetched state of a workspace
type View struct {
	WorkspaceID string
	Generation  uint64
	Pending     []*entities.ChangeRecord
	Graph       *projections.GraphView
	FetchedAt   time.Time
}

// Synchronizer keeps a View of one workspace fresh. Bursts of Notify calls
// collapse into one refetch; a slow ticker refetches anyway. Every fetch is
// stamped with the workspace and generation it started under and dropped on
// arrival if either has moved on.
type Synchronizer struct {
	fetcher Fetcher
	cfg     SyncConfig
	logger  *zap.Logger

	mu         sync.Mutex
	workspace  string
	generation uint64
	view       *View
	onUpdate   func(View)
	onError    func(workspaceID string, err error)
	closed     bool

	debouncer *debounce.Debouncer
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSynchronizer creates a synchronizer with no workspace selected
func NewSynchronizer(fetcher Fetcher, cfg SyncConfig, logger *zap.Logger) *Synchronizer {
	def := DefaultSyncConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.debouncer = debounce.New(cfg.Debounce, func() { s.refresh() })
	return s
}

// OnUpdate registers the callback for applied views. It runs on the fetching goroutine.
func (s *Synchronizer) OnUpdate(fn func(View)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// OnError registers the callback for failed fetches of the current workspace
func (s *Synchronizer) OnError(fn func(workspaceID string, err error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Start begins the fallback ticker. A zero Fallback disables it.
func (s *Synchronizer) Start() {
	s.startOnce.Do(func() {
		if s.cfg.Fallback <= 0 {
			return
		}
		s.wg.Add(1)
		go s.fallbackLoop()
	})
}

func (s *Synchronizer) fallbackLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Fallback)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// SetWorkspace switches the synchronizer to workspaceID and fetches it at once.
// Results still in flight for the previous workspace are discarded.
func (s *Synchronizer) SetWorkspace(workspaceID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.workspace = workspaceID
	s.generation++
	s.view = nil
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.refresh()
	}()
}

// Notify signals that something changed upstream
func (s *Synchronizer) Notify() {
	s.debouncer.Trigger()
}

// Refresh fetches now and waits for the result
func (s *Synchronizer) Refresh() {
	s.refresh()
}

// Current returns the last applied view, if any
func (s *Synchronizer) Current() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return View{}, false
	}
	return *s.view, true
}

// Generation returns the current workspace generation
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Close stops timers and drops anything still in flight
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.debouncer.Stop()
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Synchronizer) refresh() {
	s.mu.Lock()
	if s.closed || s.workspace == "" {
		s.mu.Unlock()
		return
	}
	workspaceID, generation := s.workspace, s.generation
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
	defer cancel()

	pending, err := s.fetcher.ListPending(ctx, workspaceID, ports.PendingFilter{})
	var graph *projections.GraphView
	if err == nil {
		graph, err = s.fetcher.Graph(ctx, workspaceID, s.cfg.IncludeProposed)
	}

	s.mu.Lock()
	if s.closed || generation != s.generation || workspaceID != s.workspace {
		s.mu.Unlock()
		s.logger.Debug("Dropping stale refresh",
			zap.String("workspaceID", workspaceID),
			zap.Uint64("generation", generation))
		return
	}
	if err != nil {
		onError := s.onError
		s.mu.Unlock()
		// Keep the last known view; the next notify or tick retries.
		s.logger.Warn("Refresh failed", zap.String("workspaceID", workspaceID), zap.Error(err))
		if onError != nil {
			onError(workspaceID, err)
		}
		return
	}
	view := View{
		WorkspaceID: workspaceID,
		Generation:  generation,
		Pending:     pending,
		Graph:       graph,
		FetchedAt:   time.Now(),
	}
	s.view = &view
	onUpdate := s.onUpdate
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(view)
	}
}
