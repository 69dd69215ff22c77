// Package workers holds the background jobs of the library service.
package workers

import (
	"context"
	"log/slog"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/models"

	"github.com/redis/go-redis/v9"
)

const reminderKeyPrefix = "library:remind:"

type LoanSource interface {
	MarkOverdue(ctx context.Context, now time.Time) ([]models.LoanDetail, error)
	LoansDueBetween(ctx context.Context, from, to time.Time) ([]models.LoanDetail, error)
}

// Outbox replays notifications that could not be stored when they were sent.
type Outbox interface {
	Drain(ctx context.Context) (int, error)
}

// Once reports whether key is seen for the first time within ttl.
type Once interface {
	First(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisOnce struct{ rdb redis.UniversalClient }

func NewRedisOnce(rdb redis.UniversalClient) *RedisOnce { return &RedisOnce{rdb: rdb} }

func (o *RedisOnce) First(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return o.rdb.SetNX(ctx, reminderKeyPrefix+key, 1, ttl).Result()
}

// SweepReport is what one Check did.
type SweepReport struct {
	Flipped   int
	Reminded  int
	DueSoon   int
	Replayed  int
	Failures  int
	StartedAt time.Time
}

// OverdueSweeper flips late loans to overdue, reminds their borrowers with the running fine,
// warns borrowers whose loans fall due within a day and drains the notification outbox.
type OverdueSweeper struct {
	Loans    LoanSource
	Notifier circulation.Notifier
	Outbox   Outbox
	Once     Once
	Policy   circulation.Policy
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewOverdueSweeper(loans LoanSource, notifier circulation.Notifier, outbox Outbox, once Once,
	policy circulation.Policy, interval time.Duration, logger *slog.Logger) *OverdueSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweeper{
		Loans:    loans,
		Notifier: notifier,
		Outbox:   outbox,
		Once:     once,
		Policy:   policy,
		Interval: interval,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Start runs Check once right away and then every Interval until ctx is done.
func (s *OverdueSweeper) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		s.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()
}

func (s *OverdueSweeper) Check(ctx context.Context) SweepReport {
	now := s.Now()
	rep := SweepReport{StartedAt: now}

	flipped, err := s.Loans.MarkOverdue(ctx, now)
	if err != nil {
		s.Logger.Error("overdue sweep failed", "error", err)
		rep.Failures++
	}
	rep.Flipped = len(flipped)
	for _, l := range flipped {
		a := s.Policy.Assess(l.DueDate, now)
		msg := s.Policy.OverdueReminder(l.BookTitle, a.DaysOverdue, a.SuggestedFine)
		if err := s.Notifier.Enqueue(ctx, l.UserID, msg); err != nil {
			s.Logger.Warn("overdue reminder not enqueued", "loan_id", l.ID, "error", err)
			rep.Failures++
			continue
		}
		rep.Reminded++
	}

	soon, err := s.Loans.LoansDueBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		s.Logger.Error("due-soon lookup failed", "error", err)
		rep.Failures++
	}
	for _, l := range soon {
		if s.Once != nil {
			first, err := s.Once.First(ctx, "due:"+l.ID, 48*time.Hour)
			if err != nil {
				s.Logger.Warn("reminder marker unavailable", "loan_id", l.ID, "error", err)
			} else if !first {
				continue
			}
		}
		if err := s.Notifier.Enqueue(ctx, l.UserID, circulation.DueSoonReminder(l.BookTitle, l.DueDate)); err != nil {
			s.Logger.Warn("due-soon reminder not enqueued", "loan_id", l.ID, "error", err)
			rep.Failures++
			continue
		}
		rep.DueSoon++
	}

	if s.Outbox != nil {
		n, err := s.Outbox.Drain(ctx)
		rep.Replayed = n
		if err != nil {
			s.Logger.Warn("outbox drain stopped", "replayed", n, "error", err)
			rep.Failures++
		}
	}

	s.Logger.Info("overdue sweep done",
		"flipped", rep.Flipped, "reminded", rep.Reminded, "due_soon", rep.DueSoon,
		"replayed", rep.Replayed, "failures", rep.Failures)
	return rep
}
