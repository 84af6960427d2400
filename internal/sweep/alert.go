// Package sweep scans open leads for inactivity, produces alerts and
// escalations, and builds the dashboard alert read model.
package sweep

import (
	"time"

	"github.com/google/uuid"
)

// Category tags an alert variant. New categories extend this enum without
// touching the orchestrator's call sites.
type Category string

const (
	CategoryCold    Category = "COLD"
	CategoryStale   Category = "STALE"
	CategoryOverdue Category = "OVERDUE"
)

// Alert is the ephemeral result of one watcher firing for one lead. Alerts
// are recomputed per sweep and per dashboard query, never stored.
type Alert struct {
	LeadID     uuid.UUID
	Category   Category
	ComputedAt time.Time
}
