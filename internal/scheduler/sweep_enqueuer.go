package scheduler

import (
	"context"
	"errors"
	"time"

	"sales_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SweepEnqueuer emits a sweep tick on a fixed interval. Overlap protection
// lives in the sweeper's redis lock; the task uniqueness window here only
// keeps a backlog from building up when the worker falls behind.
type SweepEnqueuer struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepEnqueuer(client *Client, interval time.Duration, log *logger.Logger) *SweepEnqueuer {
	return &SweepEnqueuer{client: client, interval: interval, log: log}
}

func (e *SweepEnqueuer) Run(ctx context.Context) {
	if e == nil || e.client == nil || e.interval <= 0 {
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := e.client.EnqueueSweepRun(ctx, SweepRunPayload{TriggeredBy: "interval"}, e.interval)
		if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			e.log.Warn("sweep tick enqueue failed", "error", err)
		}
	}
}
