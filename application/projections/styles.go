package projections

import "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"

// NodeStyle is the render hint for a node type
type NodeStyle struct {
	Color string `json:"color"`
	Shape string `json:"shape"`
}

// EdgeStyle is the render hint for an edge type
type EdgeStyle struct {
	Color  string `json:"color"`
	Stroke string `json:"stroke"`
	Arrow  bool   `json:"arrow"`
}

var nodeStyles = map[valueobjects.NodeType]NodeStyle{
	valueobjects.NodeTypeIntent:       {Color: "#6366f1", Shape: "rounded"},
	valueobjects.NodeTypeExecution:    {Color: "#10b981", Shape: "rectangle"},
	valueobjects.NodeTypeArtifact:     {Color: "#f59e0b", Shape: "document"},
	valueobjects.NodeTypePlaybookStep: {Color: "#0ea5e9", Shape: "hexagon"},
}

var edgeStyles = map[valueobjects.EdgeType]EdgeStyle{
	valueobjects.EdgeTypeTemporal:   {Color: "#94a3b8", Stroke: "dotted", Arrow: true},
	valueobjects.EdgeTypeCausal:     {Color: "#ef4444", Stroke: "solid", Arrow: true},
	valueobjects.EdgeTypeDependency: {Color: "#64748b", Stroke: "solid", Arrow: true},
	valueobjects.EdgeTypeSpawns:     {Color: "#8b5cf6", Stroke: "solid", Arrow: true},
	valueobjects.EdgeTypeProduces:   {Color: "#f59e0b", Stroke: "dashed", Arrow: true},
	valueobjects.EdgeTypeRefersTo:   {Color: "#cbd5e1", Stroke: "dashed", Arrow: false},
}

var (
	fallbackNodeStyle = NodeStyle{Color: "#9ca3af", Shape: "rectangle"}
	fallbackEdgeStyle = EdgeStyle{Color: "#9ca3af", Stroke: "solid", Arrow: true}
)

// StyleForNode looks up the style of a node type
func StyleForNode(t valueobjects.NodeType) NodeStyle {
	if s, ok := nodeStyles[t]; ok {
		return s
	}
	return fallbackNodeStyle
}

// StyleForEdge looks up the style of an edge type
func StyleForEdge(t valueobjects.EdgeType) EdgeStyle {
	if s, ok := edgeStyles[t]; ok {
		return s
	}
	return fallbackEdgeStyle
}
