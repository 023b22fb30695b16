package projections

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/services/layout"
	"go.uber.org/zap"
)

// Options tune a projection
type Options struct {
	// IncludeProposed adds ghost entries for pending create_node and create_edge changes
	IncludeProposed bool
}

// NodeView is a render-ready node
type NodeView struct {
	ID             string                  `json:"id"`
	Type           valueobjects.NodeType   `json:"type"`
	Label          string                  `json:"label"`
	Status         valueobjects.NodeStatus `json:"status"`
	ProjectID      string                  `json:"project_id,omitempty"`
	Metadata       entities.Metadata       `json:"metadata"`
	Position       valueobjects.Position   `json:"position"`
	Level          int                     `json:"level"`
	Pinned         bool                    `json:"pinned"`
	Collapsed      bool                    `json:"collapsed"`
	Note           string                  `json:"note,omitempty"`
	Style          NodeStyle               `json:"style"`
	Pending        bool                    `json:"pending"`
	PendingChanges []string                `json:"pending_changes,omitempty"`
	Ghost          bool                    `json:"ghost"`
}

// EdgeView is a render-ready edge
type EdgeView struct {
	ID             string                `json:"id"`
	SourceID       string                `json:"source_id"`
	TargetID       string                `json:"target_id"`
	Type           valueobjects.EdgeType `json:"type"`
	Label          string                `json:"label,omitempty"`
	Style          EdgeStyle             `json:"style"`
	Pending        bool                  `json:"pending"`
	PendingChanges []string              `json:"pending_changes,omitempty"`
	Ghost          bool                  `json:"ghost"`
}

// GraphView is the projection of one workspace snapshot
type GraphView struct {
	WorkspaceID  string              `json:"workspace_id"`
	Version      int64               `json:"version"`
	Nodes        []NodeView          `json:"nodes"`
	Edges        []EdgeView          `json:"edges"`
	Groups       []layout.GroupBlock `json:"groups"`
	PendingCount int                 `json:"pending_count"`
}

// GraphProjector composes snapshot, layout and pending annotations into a
// view model. It never mutates the snapshot it is given.
type GraphProjector struct {
	mu      sync.RWMutex
	engine  *layout.Engine
	metrics ports.MetricsRecorder
	logger  *zap.Logger
}

// NewGraphProjector creates a projector using the given layout spacings
func NewGraphProjector(cfg config.LayoutConfig, metrics ports.MetricsRecorder, logger *zap.Logger) *GraphProjector {
	return &GraphProjector{
		engine:  layout.NewEngine(cfg),
		metrics: metrics,
		logger:  logger,
	}
}

// SetLayoutConfig swaps the layout spacings; later projections use them
func (p *GraphProjector) SetLayoutConfig(cfg config.LayoutConfig) {
	p.mu.Lock()
	p.engine = layout.NewEngine(cfg)
	p.mu.Unlock()
	p.logger.Info("Layout configuration updated",
		zap.Float64("levelSpacing", cfg.LevelSpacing),
		zap.Float64("nodeSpacing", cfg.NodeSpacing),
		zap.Float64("groupGap", cfg.GroupGap))
}

// LayoutConfig returns the spacings in use
func (p *GraphProjector) LayoutConfig() config.LayoutConfig {
	return p.currentEngine().Config()
}

// Layout computes positions for the snapshot. Pinned overlays replace the
// computed position of their node.
func (p *GraphProjector) Layout(snap *aggregates.Snapshot) *layout.Result {
	return p.layout(p.currentEngine(), snap)
}

func (p *GraphProjector) currentEngine() *layout.Engine {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.engine
}

func (p *GraphProjector) layout(engine *layout.Engine, snap *aggregates.Snapshot) *layout.Result {
	nodes := snap.Nodes()
	start := time.Now()
	result := engine.Compute(nodes, snap.Edges())
	p.metrics.LayoutComputed(len(nodes), time.Since(start))

	for _, n := range nodes {
		if n.Overlay.Pinned != nil {
			result.Positions[n.ID] = *n.Overlay.Pinned
		}
	}
	return result
}

// Project builds the view model for snap, flagging every node and edge that
// a pending change targets.
func (p *GraphProjector) Project(snap *aggregates.Snapshot, pending []*entities.ChangeRecord, opts Options) *GraphView {
	engine := p.currentEngine()
	result := p.layout(engine, snap)
	cfg := engine.Config()

	nodeChanges := make(map[string][]string)
	edgeChanges := make(map[string][]string)
	for _, rec := range pending {
		if rec.TargetType == valueobjects.TargetEdge {
			edgeChanges[rec.TargetID] = append(edgeChanges[rec.TargetID], rec.ID)
		} else {
			nodeChanges[rec.TargetID] = append(nodeChanges[rec.TargetID], rec.ID)
		}
	}

	view := &GraphView{
		WorkspaceID:  snap.WorkspaceID(),
		Version:      snap.Version(),
		Nodes:        []NodeView{},
		Edges:        []EdgeView{},
		Groups:       result.Groups,
		PendingCount: len(pending),
	}

	visible := make(map[string]bool)
	for _, n := range snap.Nodes() {
		pos, _ := result.Position(n.ID)
		nv := NodeView{
			ID:             n.ID,
			Type:           n.Type,
			Label:          n.Label,
			Status:         n.Status,
			ProjectID:      n.ProjectID(),
			Metadata:       n.Metadata,
			Position:       pos,
			Level:          result.Levels[n.ID],
			Pinned:         n.Overlay.Pinned != nil,
			Collapsed:      n.Overlay.Collapsed,
			Note:           n.Overlay.Note,
			Style:          StyleForNode(n.Type),
			Pending:        len(nodeChanges[n.ID]) > 0,
			PendingChanges: nodeChanges[n.ID],
		}
		if n.Overlay.Color != "" {
			nv.Style.Color = n.Overlay.Color
		}
		view.Nodes = append(view.Nodes, nv)
		visible[n.ID] = true
	}

	for _, e := range snap.Edges() {
		ev := EdgeView{
			ID:             e.ID,
			SourceID:       e.SourceID,
			TargetID:       e.TargetID,
			Type:           e.Type,
			Label:          e.Label,
			Style:          StyleForEdge(e.Type),
			Pending:        len(edgeChanges[e.ID]) > 0,
			PendingChanges: edgeChanges[e.ID],
		}
		if e.Overlay.Color != "" {
			ev.Style.Color = e.Overlay.Color
		}
		view.Edges = append(view.Edges, ev)
	}

	if opts.IncludeProposed {
		p.addGhosts(view, snap, pending, result, cfg, visible)
	}
	return view
}

// addGhosts appends proposed nodes and the proposed edges whose endpoints are
// both visible. Ghosts of an existing project fill columns right of its block,
// never leaving the block's band. Each new project gets its own band below all
// groups, in the same order the layout stacks groups.
func (p *GraphProjector) addGhosts(view *GraphView, snap *aggregates.Snapshot, pending []*entities.ChangeRecord, result *layout.Result, cfg config.LayoutConfig, visible map[string]bool) {
	blocks := make(map[string]layout.GroupBlock, len(result.Groups))
	bottom := cfg.OriginY
	for _, g := range result.Groups {
		blocks[g.ProjectID] = g
		if end := g.Top + g.Height + cfg.GroupGap; end > bottom {
			bottom = end
		}
	}

	ghosts := make(map[string][]ghostNode)
	var edgeRecs []*entities.ChangeRecord
	for _, rec := range pending {
		if !rec.Operation.IsCreate() {
			continue
		}
		if rec.TargetType == valueobjects.TargetEdge {
			edgeRecs = append(edgeRecs, rec)
			continue
		}
		if _, exists := snap.Node(rec.TargetID); exists || visible[rec.TargetID] {
			continue
		}
		n, err := entities.NodeFromState(rec.TargetID, rec.AfterState)
		if err != nil {
			p.logger.Debug("Skipping unrenderable proposal", zap.String("changeID", rec.ID), zap.Error(err))
			continue
		}
		ghosts[n.ProjectID()] = append(ghosts[n.ProjectID()], ghostNode{node: n, changeID: rec.ID})
		visible[n.ID] = true
	}

	for _, g := range result.Groups {
		nodes := ghosts[g.ProjectID]
		rows := int(math.Round(g.Height / cfg.NodeSpacing))
		if rows < 1 {
			rows = 1
		}
		for i, gn := range nodes {
			x := cfg.OriginX + float64(g.Levels+i/rows)*cfg.LevelSpacing
			y := g.Top + float64(i%rows)*cfg.NodeSpacing
			view.Nodes = append(view.Nodes, ghostView(gn, valueobjects.MustPosition(x, y)))
		}
	}

	var fresh []string
	for project := range ghosts {
		if _, ok := blocks[project]; !ok {
			fresh = append(fresh, project)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		if (fresh[i] == layout.Ungrouped) != (fresh[j] == layout.Ungrouped) {
			return fresh[j] == layout.Ungrouped
		}
		return fresh[i] < fresh[j]
	})
	for _, project := range fresh {
		nodes := ghosts[project]
		for i, gn := range nodes {
			y := bottom + float64(i)*cfg.NodeSpacing
			view.Nodes = append(view.Nodes, ghostView(gn, valueobjects.MustPosition(cfg.OriginX, y)))
		}
		bottom += float64(len(nodes))*cfg.NodeSpacing + cfg.GroupGap
	}

	for _, rec := range edgeRecs {
		if _, exists := snap.Edge(rec.TargetID); exists {
			continue
		}
		e, err := entities.EdgeFromState(rec.TargetID, rec.AfterState)
		if err != nil || !visible[e.SourceID] || !visible[e.TargetID] {
			continue
		}
		view.Edges = append(view.Edges, EdgeView{
			ID:             e.ID,
			SourceID:       e.SourceID,
			TargetID:       e.TargetID,
			Type:           e.Type,
			Label:          e.Label,
			Style:          StyleForEdge(e.Type),
			Pending:        true,
			PendingChanges: []string{rec.ID},
			Ghost:          true,
		})
	}
}

type ghostNode struct {
	node     entities.Node
	changeID string
}

func ghostView(gn ghostNode, pos valueobjects.Position) NodeView {
	n := gn.node
	return NodeView{
		ID:             n.ID,
		Type:           n.Type,
		Label:          n.Label,
		Status:         valueobjects.NodeStatusPending,
		ProjectID:      n.ProjectID(),
		Metadata:       n.Metadata,
		Position:       pos,
		Style:          StyleForNode(n.Type),
		Pending:        true,
		PendingChanges: []string{gn.changeID},
		Ghost:          true,
	}
}
