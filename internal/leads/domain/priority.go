package domain

// Priority is the commercial urgency assigned to a lead. Values follow the
// sales team's French labels and are stored verbatim.
type Priority string

const (
	PriorityLow    Priority = "BASSE"
	PriorityNormal Priority = "NORMALE"
	PriorityHigh   Priority = "HAUTE"
	PriorityUrgent Priority = "URGENTE"
)

// IsKnown reports whether p is a recognized priority.
func (p Priority) IsKnown() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
