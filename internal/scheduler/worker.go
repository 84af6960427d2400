package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sales_portal_backend/internal/email"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/notification/outbox"
	"sales_portal_backend/internal/sweep"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/platform/config"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxDeliveryAttempts caps outbox delivery retries before a record is parked
// as failed.
const maxDeliveryAttempts = 5

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *sweep.Sweeper
	outbox  *outbox.Repository
	roster  *team.Repository
	sender  email.Sender
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, sweeper *sweep.Sweeper, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		outbox:  outbox.New(pool),
		roster:  team.New(pool),
		sender:  sender,
		log:     log,
	}

	mux.HandleFunc(TaskSweepRun, w.handleSweepRun)
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w, nil
}

func (w *Worker) handleSweepRun(ctx context.Context, task *asynq.Task) error {
	if w.sweeper == nil {
		return nil
	}

	payload, err := ParseSweepRunPayload(task)
	if err != nil {
		return err
	}

	_, err = w.sweeper.Run(ctx)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		// The previous run is still going; this tick's work is covered.
		w.log.Info("sweep tick skipped, run in progress", "triggered_by", payload.TriggeredBy)
		return nil
	}
	return err
}

// handleNotificationOutboxDue delivers one queued email. Transient failures
// flip the record back to pending so the dispatcher re-claims it; after
// maxDeliveryAttempts the record is parked as failed.
func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		return nil
	}

	if err := w.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	var content notification.Payload
	if err := json.Unmarshal(rec.Payload, &content); err != nil {
		return w.outbox.MarkFailed(ctx, rec.ID, fmt.Sprintf("unmarshal payload: %v", err))
	}

	recipient, err := w.roster.GetByID(ctx, rec.RecipientID)
	if err != nil {
		if errors.Is(err, team.ErrNotFound) {
			return w.outbox.MarkFailed(ctx, rec.ID, "recipient no longer exists")
		}
		return w.requeueOrFail(ctx, rec, err)
	}
	if recipient.Email == "" {
		return w.outbox.MarkFailed(ctx, rec.ID, "recipient has no email address")
	}

	if err := w.sender.Send(ctx, recipient.Email, content.Title, content.Body); err != nil {
		return w.requeueOrFail(ctx, rec, err)
	}

	return w.outbox.MarkSucceeded(ctx, rec.ID)
}

func (w *Worker) requeueOrFail(ctx context.Context, rec outbox.Record, cause error) error {
	// MarkProcessing already bumped attempts once for this try.
	if rec.Attempts+1 >= maxDeliveryAttempts {
		w.log.Error("outbox delivery abandoned",
			"outbox_id", rec.ID.String(),
			"category", rec.Category,
			"error", cause.Error(),
		)
		return w.outbox.MarkFailed(ctx, rec.ID, cause.Error())
	}

	msg := cause.Error()
	return w.outbox.MarkPending(ctx, rec.ID, &msg)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
