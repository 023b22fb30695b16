package valueobjects

// ChangeStatus is the lifecycle state of a change record.
// pending -> applied | rejected, applied -> undone. Nothing leaves undone or rejected.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeApplied  ChangeStatus = "applied"
	ChangeRejected ChangeStatus = "rejected"
	ChangeUndone   ChangeStatus = "undone"
)

var changeTransitions = map[ChangeStatus][]ChangeStatus{
	ChangePending: {ChangeApplied, ChangeRejected},
	ChangeApplied: {ChangeUndone},
}

// IsValid reports whether s is a known status
func (s ChangeStatus) IsValid() bool {
	switch s {
	case ChangePending, ChangeApplied, ChangeRejected, ChangeUndone:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows s -> next
func (s ChangeStatus) CanTransitionTo(next ChangeStatus) bool {
	for _, allowed := range changeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ChangeStatus) IsTerminal() bool {
	return len(changeTransitions[s]) == 0
}

// WasApplied reports whether a record in this status has been folded into the snapshot
func (s ChangeStatus) WasApplied() bool {
	return s == ChangeApplied || s == ChangeUndone
}
