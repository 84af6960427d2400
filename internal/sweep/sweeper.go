package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	lockKey = "sweep:lock"
	// perLeadAttempts bounds retries of one lead's processing before it is
	// marked failed and skipped for this run.
	perLeadAttempts = 3
)

// ErrSweepInProgress is returned when a run is requested while another run
// holds the lock. The scheduled tick treats it as a skip, not a failure.
var ErrSweepInProgress = errors.New("sweep already in progress")

// LeadSource is the repository surface the sweeper reads.
type LeadSource interface {
	ListOpen(ctx context.Context) ([]repository.Lead, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

// Emitter is the notification surface the sweeper writes: immediate feed
// entries plus digests scheduled for a configured send time.
type Emitter interface {
	notification.Emitter
	EnqueueAt(ctx context.Context, recipientID uuid.UUID, category notification.Category, payload notification.Payload, emailAt time.Time) error
}

// Result is the outcome of one sweep run.
type Result struct {
	ColdCount      int `json:"coldCount"`
	StaleCount     int `json:"staleCount"`
	OverdueCount   int `json:"overdueCount"`
	EscalatedCount int `json:"escalatedCount"`
	FailedCount    int `json:"failedCount"`
}

// Sweeper orchestrates one pass over all open leads.
type Sweeper struct {
	leads       LeadSource
	settings    settings.Provider
	resolver    *Resolver
	emitter     Emitter
	redis       *redis.Client
	log         *logger.Logger
	lockTTL     time.Duration
	concurrency int
	now         func() time.Time
}

func NewSweeper(leads LeadSource, provider settings.Provider, resolver *Resolver, emitter Emitter, redisClient *redis.Client, lockTTL time.Duration, concurrency int, log *logger.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Sweeper{
		leads:       leads,
		settings:    provider,
		resolver:    resolver,
		emitter:     emitter,
		redis:       redisClient,
		log:         log,
		lockTTL:     lockTTL,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Tests use this.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run executes one sweep. Two runs never overlap: the redis lock makes a
// tick that arrives while the previous run is still going a no-op. Settings
// are read fresh so an admin change is honored by the very next run.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	if s.redis == nil {
		return Result{}, errors.New("sweep requires redis for run locking")
	}

	runID := uuid.NewString()
	acquired, err := s.redis.SetNX(ctx, lockKey, runID, s.lockTTL).Result()
	if err != nil {
		return Result{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return Result{}, ErrSweepInProgress
	}
	defer s.redis.Del(context.WithoutCancel(ctx), lockKey)

	started := s.now()
	ctx = context.WithValue(ctx, logger.SweepRunIDKey, runID)
	log := s.log.WithContext(ctx)

	cfg, err := s.settings.GetFresh(ctx)
	if err != nil {
		return Result{}, err
	}

	open, err := s.leads.ListOpen(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list open leads: %w", err)
	}

	now := s.now()
	var (
		mu        sync.Mutex
		result    Result
		byCat     = map[Category]map[uuid.UUID][]repository.Lead{}
		escalated int
	)
	for _, category := range []Category{CategoryCold, CategoryStale, CategoryOverdue} {
		byCat[category] = map[uuid.UUID][]repository.Lead{}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, lead := range open {
		lead := lead
		group.Go(func() error {
			alerts, didEscalate, err := s.processLead(groupCtx, lead, cfg, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Partial-failure isolation: one bad record never blocks
				// the batch.
				result.FailedCount++
				log.LeadStageError("sweep", lead.ID.String(), err)
				return nil
			}
			for _, alert := range alerts {
				switch alert.Category {
				case CategoryCold:
					result.ColdCount++
				case CategoryStale:
					result.StaleCount++
				case CategoryOverdue:
					result.OverdueCount++
				}
				if lead.AssignedTo != nil {
					byCat[alert.Category][*lead.AssignedTo] = append(byCat[alert.Category][*lead.AssignedTo], lead)
				}
			}
			if didEscalate {
				escalated++
			}
			return nil
		})
	}
	_ = group.Wait()
	result.EscalatedCount = escalated

	s.sendDigests(ctx, cfg, byCat, now)
	s.maybeSendWeeklyReport(ctx, cfg, now)

	log.SweepRun(runID, result.ColdCount, result.StaleCount, result.OverdueCount,
		result.EscalatedCount, result.FailedCount, float64(s.now().Sub(started).Milliseconds()))

	return result, nil
}

// processLead evaluates the watchers and the escalation resolver for one
// lead, with bounded backoff retries around the I/O.
func (s *Sweeper) processLead(ctx context.Context, lead repository.Lead, cfg settings.Settings, now time.Time) ([]Alert, bool, error) {
	alerts := Evaluate(lead, cfg, now)

	for _, alert := range alerts {
		if lead.AssignedTo == nil {
			continue
		}
		alert := alert
		if err := s.withRetry(ctx, func() error {
			return s.notifyAlert(ctx, lead, alert)
		}); err != nil {
			return nil, false, err
		}
	}

	if NeedsProposalReminder(lead, cfg, now) && lead.AssignedTo != nil {
		if err := s.withRetry(ctx, func() error {
			return s.notifyProposalReminder(ctx, lead, now)
		}); err != nil {
			return nil, false, err
		}
	}

	didEscalate := false
	if NeedsEscalation(lead, cfg, now) {
		claimed, err := s.claimOnce(ctx, lead.ID, "ESCALATION", now)
		if err != nil {
			return nil, false, err
		}
		if claimed {
			if err := s.withRetry(ctx, func() error {
				fired, err := s.resolver.Escalate(ctx, lead, cfg.Escalation, now)
				didEscalate = fired
				return err
			}); err != nil {
				s.releaseClaim(ctx, lead.ID, "ESCALATION", now)
				return nil, false, err
			}
		}
	}

	return alerts, didEscalate, nil
}

func (s *Sweeper) notifyAlert(ctx context.Context, lead repository.Lead, alert Alert) error {
	claimed, err := s.claimOnce(ctx, lead.ID, string(alert.Category), alert.ComputedAt)
	if err != nil || !claimed {
		return err
	}

	var category notification.Category
	var title, body string
	switch alert.Category {
	case CategoryCold:
		category = notification.CategoryColdDigest
		title = "Cold lead"
		body = fmt.Sprintf("%s has not been contacted recently.", lead.CompanyName)
	case CategoryStale:
		category = notification.CategoryStaleLead
		title = "Stale lead"
		body = fmt.Sprintf("%s has not moved in the pipeline recently.", lead.CompanyName)
	case CategoryOverdue:
		category = notification.CategoryOverdueDigest
		title = "Overdue action"
		body = fmt.Sprintf("The planned next action for %s is overdue.", lead.CompanyName)
	}

	if err := s.emitter.Enqueue(ctx, *lead.AssignedTo, category, notification.Payload{
		Title:  title,
		Body:   body,
		LeadID: &lead.ID,
	}); err != nil {
		s.releaseClaim(ctx, lead.ID, string(alert.Category), alert.ComputedAt)
		return err
	}
	return nil
}

func (s *Sweeper) notifyProposalReminder(ctx context.Context, lead repository.Lead, now time.Time) error {
	claimed, err := s.claimOnce(ctx, lead.ID, "PROPOSAL_REMINDER", now)
	if err != nil || !claimed {
		return err
	}
	if err := s.emitter.Enqueue(ctx, *lead.AssignedTo, notification.CategoryProposal, notification.Payload{
		Title:  "Proposal follow-up",
		Body:   fmt.Sprintf("The proposal for %s is still awaiting an answer.", lead.CompanyName),
		LeadID: &lead.ID,
	}); err != nil {
		s.releaseClaim(ctx, lead.ID, "PROPOSAL_REMINDER", now)
		return err
	}
	return nil
}

// claimOnce sets a per-day idempotency key for lead+category. A retried or
// re-triggered run on the same day re-counts alerts but never re-emits the
// notification side effects. The key marks a delivered notification: when the
// emit behind a claim fails, the claim is released so the retry, or a later
// run the same day, still owes the send.
func (s *Sweeper) claimOnce(ctx context.Context, leadID uuid.UUID, category string, now time.Time) (bool, error) {
	return s.redis.SetNX(ctx, claimKey(leadID, category, now), "1", 48*time.Hour).Result()
}

func (s *Sweeper) releaseClaim(ctx context.Context, leadID uuid.UUID, category string, now time.Time) {
	s.redis.Del(context.WithoutCancel(ctx), claimKey(leadID, category, now))
}

func claimKey(leadID uuid.UUID, category string, now time.Time) string {
	return fmt.Sprintf("sweep:seen:%s:%s:%s", now.UTC().Format("2006-01-02"), leadID, category)
}

// sendDigests queues one consolidated email per salesperson for the cold and
// overdue categories, honoring the configured overdue send time.
func (s *Sweeper) sendDigests(ctx context.Context, cfg settings.Settings, byCat map[Category]map[uuid.UUID][]repository.Lead, now time.Time) {
	if cfg.ColdLeadAlert.Enabled && cfg.ColdLeadAlert.EmailDigest {
		s.sendDigestCategory(ctx, byCat[CategoryCold], notification.CategoryColdDigest,
			"Cold leads digest", "leads without recent contact", now, now)
	}
	if cfg.OverdueActionAlert.Enabled && cfg.OverdueActionAlert.DailyDigest {
		sendAt := nextClock(now, cfg.OverdueActionAlert.DigestTime)
		s.sendDigestCategory(ctx, byCat[CategoryOverdue], notification.CategoryOverdueDigest,
			"Overdue actions digest", "leads with an overdue next action", now, sendAt)
	}
}

func (s *Sweeper) sendDigestCategory(ctx context.Context, perRecipient map[uuid.UUID][]repository.Lead, category notification.Category, title, phrase string, now, sendAt time.Time) {
	// Deterministic recipient order keeps logs and tests stable.
	recipients := make([]uuid.UUID, 0, len(perRecipient))
	for recipient := range perRecipient {
		recipients = append(recipients, recipient)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].String() < recipients[j].String() })

	for _, recipient := range recipients {
		flagged := perRecipient[recipient]
		claimed, err := s.claimOnce(ctx, recipient, "DIGEST_"+string(category), now)
		if err != nil || !claimed {
			if err != nil {
				s.log.Error("digest claim failed", "category", string(category), "error", err.Error())
			}
			continue
		}

		leadIDs := make([]uuid.UUID, 0, len(flagged))
		for _, lead := range flagged {
			leadIDs = append(leadIDs, lead.ID)
		}

		err = s.emitter.EnqueueAt(ctx, recipient, category, notification.Payload{
			Title:   title,
			Body:    fmt.Sprintf("You have %d %s.", len(flagged), phrase),
			LeadIDs: leadIDs,
			Email:   true,
		}, sendAt)
		if err != nil {
			s.log.Error("digest enqueue failed", "category", string(category), "error", err.Error())
			s.releaseClaim(ctx, recipient, "DIGEST_"+string(category), now)
		}
	}
}

// maybeSendWeeklyReport queues the pipeline summary when the configured
// day+time falls before now and this ISO week's report has not gone out yet.
func (s *Sweeper) maybeSendWeeklyReport(ctx context.Context, cfg settings.Settings, now time.Time) {
	report := cfg.WeeklyReport
	if !report.Enabled || len(report.Recipients) == 0 {
		return
	}
	if int(now.Weekday()) != report.DayOfWeek {
		return
	}
	if now.Before(clockOn(now, report.Time)) {
		return
	}

	year, week := now.UTC().ISOWeek()
	key := fmt.Sprintf("sweep:report:%d-%02d", year, week)
	claimed, err := s.redis.SetNX(ctx, key, "1", 8*24*time.Hour).Result()
	if err != nil || !claimed {
		if err != nil {
			s.log.Error("weekly report claim failed", "error", err.Error())
		}
		return
	}

	if err := s.sendWeeklyReport(ctx, report, now); err != nil {
		s.log.Error("weekly report failed", "error", err.Error())
		// Release the claim so the next tick can retry this week's report.
		s.redis.Del(context.WithoutCancel(ctx), key)
	}
}

func (s *Sweeper) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= perLeadAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < perLeadAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * 100 * time.Millisecond):
			}
		}
	}
	return err
}

// nextClock returns today's HH:MM if still ahead, otherwise tomorrow's.
func nextClock(now time.Time, clock string) time.Time {
	at := clockOn(now, clock)
	if at.Before(now) {
		return at.AddDate(0, 0, 1)
	}
	return at
}

// clockOn places HH:MM on now's date. Invalid input degrades to now; the
// settings validator keeps that from happening in practice.
func clockOn(now time.Time, clock string) time.Time {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
}
