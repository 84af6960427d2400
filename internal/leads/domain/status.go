// Package domain contains the lead pipeline's core types.
package domain

// Status is a lead's position in the sales pipeline.
type Status string

const (
	StatusLead      Status = "LEAD"
	StatusQualified Status = "QUALIFIED"
	StatusContacted Status = "CONTACTED"
	StatusDemo      Status = "DEMO"
	StatusProposal  Status = "PROPOSAL"
	StatusWon       Status = "WON"
	StatusLost      Status = "LOST"
)

// AllStatuses lists every pipeline status in funnel order.
var AllStatuses = []Status{
	StatusLead,
	StatusQualified,
	StatusContacted,
	StatusDemo,
	StatusProposal,
	StatusWon,
	StatusLost,
}

// IsKnown reports whether s is a recognized pipeline status.
func (s Status) IsKnown() bool {
	switch s {
	case StatusLead, StatusQualified, StatusContacted, StatusDemo, StatusProposal, StatusWon, StatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether s closes the pipeline. Terminal leads accept no
// further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

// IsOpen is the complement of IsTerminal for known statuses.
func (s Status) IsOpen() bool {
	return s.IsKnown() && !s.IsTerminal()
}
