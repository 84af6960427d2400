package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/settings"
)

// sendWeeklyReport queues one pipeline summary email per configured
// recipient. Counts cover every status so closed leads show up too.
func (s *Sweeper) sendWeeklyReport(ctx context.Context, report settings.WeeklyReport, now time.Time) error {
	counts, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count leads by status: %w", err)
	}

	var body strings.Builder
	total := 0
	body.WriteString("Pipeline summary for the week:\n")
	for _, status := range domain.AllStatuses {
		count := counts[status]
		total += count
		fmt.Fprintf(&body, "%s: %d\n", status, count)
	}
	fmt.Fprintf(&body, "Total: %d leads", total)

	payload := notification.Payload{
		Title: "Weekly pipeline report",
		Body:  body.String(),
		Email: true,
	}

	for _, recipient := range report.Recipients {
		if err := s.emitter.EnqueueAt(ctx, recipient, notification.CategoryWeeklyReport, payload, now); err != nil {
			return fmt.Errorf("enqueue weekly report: %w", err)
		}
	}
	return nil
}
