package notification

import (
	"context"
	"time"

	"sales_portal_backend/internal/notification/inapp"
	"sales_portal_backend/internal/notification/outbox"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Service is the default Emitter: every notification lands in the in-app
// feed, and payloads flagged for email additionally get an outbox row the
// dispatcher delivers over SMTP.
type Service struct {
	feed   *inapp.Repository
	outbox *outbox.Repository
	log    *logger.Logger
}

func NewService(feed *inapp.Repository, box *outbox.Repository, log *logger.Logger) *Service {
	return &Service{feed: feed, outbox: box, log: log}
}

// Enqueue writes the feed entry and, when requested, the email outbox row.
// The feed write is the primary obligation; a failed outbox insert is logged
// and does not fail the enqueue, since the feed already carries the alert.
func (s *Service) Enqueue(ctx context.Context, recipientID uuid.UUID, category Category, payload Payload) error {
	return s.EnqueueAt(ctx, recipientID, category, payload, time.Now().UTC())
}

// EnqueueAt is Enqueue with an explicit email send time, used by digests that
// respect a configured time of day.
func (s *Service) EnqueueAt(ctx context.Context, recipientID uuid.UUID, category Category, payload Payload, emailAt time.Time) error {
	_, err := s.feed.Insert(ctx, inapp.InsertParams{
		RecipientID: recipientID,
		Category:    string(category),
		Title:       payload.Title,
		Body:        payload.Body,
		LeadID:      payload.LeadID,
	})
	if err != nil {
		return err
	}

	if payload.Email && s.outbox != nil {
		if _, err := s.outbox.Insert(ctx, outbox.InsertParams{
			RecipientID: recipientID,
			Category:    string(category),
			Payload:     payload,
			RunAt:       emailAt,
		}); err != nil {
			s.log.Error("outbox insert failed", "category", string(category), "error", err.Error())
		}
	}

	return nil
}

var _ Emitter = (*Service)(nil)
