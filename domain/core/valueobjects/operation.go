package valueobjects

// Operation is the kind of graph mutation a change record carries
type Operation string

const (
	OpCreateNode    Operation = "create_node"
	OpUpdateNode    Operation = "update_node"
	OpDeleteNode    Operation = "delete_node"
	OpCreateEdge    Operation = "create_edge"
	OpDeleteEdge    Operation = "delete_edge"
	OpUpdateOverlay Operation = "update_overlay"
)

// IsValid reports whether o is a known operation
func (o Operation) IsValid() bool {
	switch o {
	case OpCreateNode, OpUpdateNode, OpDeleteNode, OpCreateEdge, OpDeleteEdge, OpUpdateOverlay:
		return true
	}
	return false
}

// TargetType returns the target an operation addresses. update_overlay can
// address either and reports false.
func (o Operation) TargetType() (TargetType, bool) {
	switch o {
	case OpCreateNode, OpUpdateNode, OpDeleteNode:
		return TargetNode, true
	case OpCreateEdge, OpDeleteEdge:
		return TargetEdge, true
	}
	return "", false
}

// RequiresBefore reports whether the operation must carry a before_state
func (o Operation) RequiresBefore() bool {
	switch o {
	case OpUpdateNode, OpDeleteNode, OpDeleteEdge, OpUpdateOverlay:
		return true
	}
	return false
}

// RequiresAfter reports whether the operation must carry an after_state
func (o Operation) RequiresAfter() bool {
	switch o {
	case OpCreateNode, OpUpdateNode, OpCreateEdge, OpUpdateOverlay:
		return true
	}
	return false
}

// ForbidsBefore reports whether a before_state must be absent
func (o Operation) ForbidsBefore() bool {
	return o == OpCreateNode || o == OpCreateEdge
}

// ForbidsAfter reports whether an after_state must be absent
func (o Operation) ForbidsAfter() bool {
	return o == OpDeleteNode || o == OpDeleteEdge
}

// IsCreate reports whether the operation introduces a new target
func (o Operation) IsCreate() bool {
	return o == OpCreateNode || o == OpCreateEdge
}

// Inverse returns the operation that reverses o
func (o Operation) Inverse() Operation {
	switch o {
	case OpCreateNode:
		return OpDeleteNode
	case OpDeleteNode:
		return OpCreateNode
	case OpCreateEdge:
		return OpDeleteEdge
	case OpDeleteEdge:
		return OpCreateEdge
	}
	return o
}
