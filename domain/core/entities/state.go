package entities

// State is the JSON fragment a change record carries as before_state and
// after_state. Node changes use label, type, status and metadata; edge changes
// use source_id, target_id, type and label; update_overlay uses overlay.
// Reason is the proposer's explanation and never takes part in comparisons.
type State struct {
	Label    string    `json:"label,omitempty"`
	Type     string    `json:"type,omitempty"`
	Status   string    `json:"status,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	SourceID string    `json:"source_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Overlay  *Overlay  `json:"overlay,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Clone returns a deep copy. Nil stays nil.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		md := s.Metadata.Clone()
		out.Metadata = &md
	}
	if s.Overlay != nil {
		ov := s.Overlay.Clone()
		out.Overlay = &ov
	}
	return &out
}

// metadata returns the metadata or the zero value
func (s *State) metadata() Metadata {
	if s == nil || s.Metadata == nil {
		return Metadata{}
	}
	return *s.Metadata
}

// overlay returns the overlay or the zero value
func (s *State) overlay() Overlay {
	if s == nil || s.Overlay == nil {
		return Overlay{}
	}
	return *s.Overlay
}

// MatchesNode reports whether the structural node fields equal n
func (s *State) MatchesNode(n Node) bool {
	if s == nil {
		return false
	}
	return s.Label == n.Label &&
		s.Type == string(n.Type) &&
		s.Status == string(n.Status) &&
		s.metadata().Equal(n.Metadata)
}

// MatchesEdge reports whether the structural edge fields equal e
func (s *State) MatchesEdge(e Edge) bool {
	if s == nil {
		return false
	}
	return s.SourceID == e.SourceID &&
		s.TargetID == e.TargetID &&
		s.Type == string(e.Type) &&
		s.Label == e.Label
}

// MatchesOverlay reports whether the overlay equals o
func (s *State) MatchesOverlay(o Overlay) bool {
	if s == nil {
		return false
	}
	return s.overlay().Equal(o)
}

// WithoutReason returns a copy with the reason cleared
func (s *State) WithoutReason() *State {
	out := s.Clone()
	if out != nil {
		out.Reason = ""
	}
	return out
}
