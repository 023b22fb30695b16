package entities

import "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"

// ExecutionResult is the outcome attached to execution nodes
type ExecutionResult struct {
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Metadata carries the typed attributes a node may hold. Extra is the escape
// hatch for keys no component interprets.
type Metadata struct {
	ProjectID       string            `json:"project_id,omitempty"`
	ThreadID        string            `json:"thread_id,omitempty"`
	PlaybookCodes   []string          `json:"playbook_codes,omitempty"`
	ExecutionResult *ExecutionResult  `json:"execution_result,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Equal compares two metadata values. Nil and empty collections are equal.
func (m Metadata) Equal(other Metadata) bool {
	if m.ProjectID != other.ProjectID || m.ThreadID != other.ThreadID {
		return false
	}
	if len(m.PlaybookCodes) != len(other.PlaybookCodes) {
		return false
	}
	for i := range m.PlaybookCodes {
		if m.PlaybookCodes[i] != other.PlaybookCodes[i] {
			return false
		}
	}
	if (m.ExecutionResult == nil) != (other.ExecutionResult == nil) {
		return false
	}
	if m.ExecutionResult != nil && *m.ExecutionResult != *other.ExecutionResult {
		return false
	}
	if len(m.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range m.Extra {
		if ov, ok := other.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (m Metadata) Clone() Metadata {
	out := m
	if m.PlaybookCodes != nil {
		out.PlaybookCodes = append([]string(nil), m.PlaybookCodes...)
	}
	if m.ExecutionResult != nil {
		er := *m.ExecutionResult
		out.ExecutionResult = &er
	}
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Overlay holds presentation-only attributes changed through update_overlay.
// A pinned position overrides the computed layout.
type Overlay struct {
	Pinned    *valueobjects.Position `json:"pinned_position,omitempty"`
	Color     string                 `json:"color,omitempty"`
	Collapsed bool                   `json:"collapsed,omitempty"`
	Note      string                 `json:"note,omitempty"`
}

// Equal compares two overlays
func (o Overlay) Equal(other Overlay) bool {
	if o.Color != other.Color || o.Collapsed != other.Collapsed || o.Note != other.Note {
		return false
	}
	if (o.Pinned == nil) != (other.Pinned == nil) {
		return false
	}
	return o.Pinned == nil || o.Pinned.Equals(*other.Pinned)
}

// IsZero reports whether no overlay attribute is set
func (o Overlay) IsZero() bool {
	return o.Equal(Overlay{})
}

// Clone returns a deep copy
func (o Overlay) Clone() Overlay {
	out := o
	if o.Pinned != nil {
		p := *o.Pinned
		out.Pinned = &p
	}
	return out
}
