package valueobjects

// NodeType is the closed set of node kinds in a mindscape graph
type NodeType string

const (
	NodeTypeIntent       NodeType = "intent"
	NodeTypeExecution    NodeType = "execution"
	NodeTypeArtifact     NodeType = "artifact"
	NodeTypePlaybookStep NodeType = "playbook_step"
)

// NodeTypes lists every NodeType in display order
var NodeTypes = []NodeType{NodeTypeIntent, NodeTypeExecution, NodeTypeArtifact, NodeTypePlaybookStep}

// IsValid reports whether t is a known node type
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeIntent, NodeTypeExecution, NodeTypeArtifact, NodeTypePlaybookStep:
		return true
	}
	return false
}

// NodeStatus is the acceptance state of a node
type NodeStatus string

const (
	NodeStatusAccepted NodeStatus = "accepted"
	NodeStatusRejected NodeStatus = "rejected"
	NodeStatusPending  NodeStatus = "pending"
)

// IsValid reports whether s is a known node status
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeStatusAccepted, NodeStatusRejected, NodeStatusPending:
		return true
	}
	return false
}

// EdgeType is the closed set of relations between nodes
type EdgeType string

const (
	EdgeTypeTemporal   EdgeType = "temporal"
	EdgeTypeCausal     EdgeType = "causal"
	EdgeTypeDependency EdgeType = "dependency"
	EdgeTypeSpawns     EdgeType = "spawns"
	EdgeTypeProduces   EdgeType = "produces"
	EdgeTypeRefersTo   EdgeType = "refers_to"
)

// EdgeTypes lists every EdgeType
var EdgeTypes = []EdgeType{EdgeTypeTemporal, EdgeTypeCausal, EdgeTypeDependency, EdgeTypeSpawns, EdgeTypeProduces, EdgeTypeRefersTo}

// IsValid reports whether t is a known edge type
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeTypeTemporal, EdgeTypeCausal, EdgeTypeDependency, EdgeTypeSpawns, EdgeTypeProduces, EdgeTypeRefersTo:
		return true
	}
	return false
}

// TargetType says whether a change addresses a node or an edge
type TargetType string

const (
	TargetNode TargetType = "node"
	TargetEdge TargetType = "edge"
)

// IsValid reports whether t is node or edge
func (t TargetType) IsValid() bool {
	return t == TargetNode || t == TargetEdge
}

// Actor is the originator class of a change
type Actor string

const (
	ActorAutomatedAgent Actor = "automated_agent"
	ActorUser           Actor = "user"
	ActorSystem         Actor = "system"
	ActorPlaybook       Actor = "playbook"
)

// IsValid reports whether a is a known actor
func (a Actor) IsValid() bool {
	switch a {
	case ActorAutomatedAgent, ActorUser, ActorSystem, ActorPlaybook:
		return true
	}
	return false
}

// Decision is the verdict applied to a pending change
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid reports whether d is approve or reject
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}
