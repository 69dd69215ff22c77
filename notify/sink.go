// Package notify records borrower notifications and pushes them to live listeners.
//
// Every message becomes a Notification row. When the row cannot be written the message is
// parked in a Redis list and Drain writes it later. Live delivery goes over Redis pub/sub.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
)

// ErrUndeliverable means the message could neither be stored nor parked.
var ErrUndeliverable = errors.New("notification could not be stored or queued")

type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Outbox holds notifications whose insert failed. Pop returns nil, nil when empty.
type Outbox interface {
	Push(ctx context.Context, n models.Notification) error
	Pop(ctx context.Context) (*models.Notification, error)
}

type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

type Sink struct {
	store  Store
	outbox Outbox
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewSink(store Store, outbox Outbox, pub Publisher, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{store: store, outbox: outbox, pub: pub, logger: logger, now: time.Now}
}

// Enqueue stores an unread notification for userID and publishes it. A failed insert parks the
// message in the outbox and still counts as accepted; only losing it entirely is an error.
func (s *Sink) Enqueue(ctx context.Context, userID, message string) error {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, &n); err != nil {
		if s.outbox == nil {
			return fmt.Errorf("%w: %w", ErrUndeliverable, err)
		}
		if qerr := s.outbox.Push(ctx, n); qerr != nil {
			return fmt.Errorf("%w: %w", ErrUndeliverable, errors.Join(err, qerr))
		}
		s.logger.Warn("notification parked in outbox", "user_id", userID, "notification_id", n.ID, "error", err)
		return nil
	}
	s.publish(ctx, n)
	return nil
}

// Drain writes parked notifications until the outbox is empty or an insert fails again, in
// which case the message goes back and Drain stops. It returns how many were stored.
func (s *Sink) Drain(ctx context.Context) (int, error) {
	if s.outbox == nil {
		return 0, nil
	}
	stored := 0
	for {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		n, err := s.outbox.Pop(ctx)
		if err != nil {
			return stored, fmt.Errorf("pop outbox: %w", err)
		}
		if n == nil {
			return stored, nil
		}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			if qerr := s.outbox.Push(ctx, *n); qerr != nil {
				s.logger.Error("notification dropped", "user_id", n.UserID, "notification_id", n.ID, "error", qerr)
			}
			return stored, fmt.Errorf("store parked notification: %w", err)
		}
		stored++
		s.publish(ctx, *n)
	}
}

func (s *Sink) publish(ctx context.Context, n models.Notification) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, n); err != nil {
		s.logger.Debug("notification not published", "user_id", n.UserID, "error", err)
	}
}
