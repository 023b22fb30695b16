// Package layout computes deterministic canvas positions for a snapshot.
//
// Nodes are partitioned by project; each project is an independent block
// stacked vertically, ungrouped nodes last. Inside a block, nodes are leveled
// by dependency depth (Kahn's algorithm) and levels advance horizontally.
package layout

import (
	"sort"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
)

// Ungrouped is the group key of nodes without a project
const Ungrouped = ""

// GroupBlock describes the vertical band one project occupies
type GroupBlock struct {
	ProjectID string   `json:"project_id"`
	Top       float64  `json:"top"`
	Height    float64  `json:"height"`
	Levels    int      `json:"levels"`
	NodeIDs   []string `json:"node_ids"`
}

// Result is the output of a layout pass
type Result struct {
	Positions map[string]valueobjects.Position `json:"positions"`
	Levels    map[string]int                   `json:"levels"`
	Groups    []GroupBlock                     `json:"groups"`
}

// Position returns the position of a node
func (r *Result) Position(nodeID string) (valueobjects.Position, bool) {
	p, ok := r.Positions[nodeID]
	return p, ok
}

// Engine lays out node/edge sets
type Engine struct {
	cfg config.LayoutConfig
}

// NewEngine creates a layout engine with fixed spacings
func NewEngine(cfg config.LayoutConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the spacings in use
func (e *Engine) Config() config.LayoutConfig {
	return e.cfg
}

// Compute assigns every node a finite position. Input order does not matter.
func (e *Engine) Compute(nodes []entities.Node, edges []entities.Edge) *Result {
	result := &Result{
		Positions: make(map[string]valueobjects.Position, len(nodes)),
		Levels:    make(map[string]int, len(nodes)),
	}

	groups := partition(nodes)
	top := e.cfg.OriginY

	for _, key := range groupOrder(groups) {
		members := groups[key]
		levels := assignLevels(members, edges)

		byLevel := make(map[int][]string)
		maxLevel := 0
		for _, id := range members {
			lvl := levels[id]
			byLevel[lvl] = append(byLevel[lvl], id)
			if lvl > maxLevel {
				maxLevel = lvl
			}
		}

		tallest := 0
		for lvl := 0; lvl <= maxLevel; lvl++ {
			column := byLevel[lvl]
			sort.Strings(column)
			for i, id := range column {
				x := e.cfg.OriginX + float64(lvl)*e.cfg.LevelSpacing
				y := top + float64(i)*e.cfg.NodeSpacing
				result.Positions[id] = valueobjects.MustPosition(x, y)
				result.Levels[id] = lvl
			}
			if len(column) > tallest {
				tallest = len(column)
			}
		}

		height := float64(tallest) * e.cfg.NodeSpacing
		result.Groups = append(result.Groups, GroupBlock{
			ProjectID: key,
			Top:       top,
			Height:    height,
			Levels:    maxLevel + 1,
			NodeIDs:   members,
		})
		top += height + e.cfg.GroupGap
	}

	return result
}

// partition groups node ids by project. Duplicate ids keep their first occurrence.
func partition(nodes []entities.Node) map[string][]string {
	groups := make(map[string][]string)
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		key := n.ProjectID()
		groups[key] = append(groups[key], n.ID)
	}
	for key := range groups {
		sort.Strings(groups[key])
	}
	return groups
}

// groupOrder sorts project keys, ungrouped last
func groupOrder(groups map[string][]string) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		if key != Ungrouped {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if _, ok := groups[Ungrouped]; ok {
		keys = append(keys, Ungrouped)
	}
	return keys
}

// assignLevels runs Kahn's algorithm over the edges internal to one group.
// A node's level is one more than its deepest predecessor. Nodes that never
// reach in-degree zero (cycles and whatever hangs off them) stay at level 0.
func assignLevels(members []string, edges []entities.Edge) map[string]int {
	inGroup := make(map[string]bool, len(members))
	for _, id := range members {
		inGroup[id] = true
	}

	indegree := make(map[string]int, len(members))
	successors := make(map[string][]string)
	for _, e := range edges {
		if !inGroup[e.SourceID] || !inGroup[e.TargetID] {
			continue
		}
		successors[e.SourceID] = append(successors[e.SourceID], e.TargetID)
		indegree[e.TargetID]++
	}

	levels := make(map[string]int, len(members))
	queue := make([]string, 0, len(members))
	for _, id := range members {
		levels[id] = 0
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		next := successors[id]
		sort.Strings(next)
		for _, succ := range next {
			if levels[id]+1 > levels[succ] {
				levels[succ] = levels[id] + 1
			}
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	// Nodes never dequeued may have been raised by an acyclic predecessor
	// before the cycle stalled them; pin them back to 0.
	for id, deg := range indegree {
		if deg > 0 {
			levels[id] = 0
		}
	}

	return levels
}
