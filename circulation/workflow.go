package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "Gin_postgres_redis_library/circulation"

// ReturnTx is what a return may touch inside its transaction.
type ReturnTx interface {
	// LockLoan reads the loan joined with title and borrower and holds its row until commit.
	// A missing loan is ErrNotFoundOrAlreadyReturned.
	LockLoan(ctx context.Context, loanID string) (*models.LoanDetail, error)
	// CloseLoan must only succeed while the loan is still issued or overdue.
	CloseLoan(ctx context.Context, loanID string, returnedOn time.Time, fine decimal.Decimal, returnedBy *string) error
	// AdjustInventory returns the new available quantity, or ErrInventoryBound.
	AdjustInventory(ctx context.Context, bookID string, delta int) (int, error)
	InsertFine(ctx context.Context, fine *models.Fine) error
	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

// Ledger runs fn in one transaction: commit when fn returns nil, roll back otherwise.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx ReturnTx) error) error
}

type Notifier interface {
	Enqueue(ctx context.Context, userID, message string) error
}

// Logger matches *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Receipt summarizes a committed return.
type Receipt struct {
	LoanID               string          `json:"loanId"`
	BookID               string          `json:"bookId"`
	UserID               string          `json:"userId"`
	BookTitle            string          `json:"bookTitle"`
	ReturnedOn           time.Time       `json:"returnedOn"`
	DaysOverdue          int             `json:"daysOverdue"`
	SuggestedFine        decimal.Decimal `json:"suggestedFine"`
	FineCharged          decimal.Decimal `json:"fineCharged"`
	FineID               string          `json:"fineId,omitempty"`
	NewAvailableQuantity int             `json:"newAvailableQuantity"`
	NotificationsSent    int             `json:"notificationsSent"`
	NotificationsFailed  int             `json:"notificationsFailed"`
}

type Workflow struct {
	ledger   Ledger
	notifier Notifier
	policy   Policy
	now      func() time.Time
	logger   Logger
	tracer   trace.Tracer

	returns       metric.Int64Counter
	fines         metric.Int64Counter
	notifyFailure metric.Int64Counter
}

type Option func(*Workflow)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

func WithLogger(l Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *Workflow) { w.tracer = tp.Tracer(instrumentationName) }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(w *Workflow) { w.initMetrics(mp.Meter(instrumentationName)) }
}

func NewWorkflow(ledger Ledger, notifier Notifier, policy Policy, opts ...Option) *Workflow {
	w := &Workflow{
		ledger:   ledger,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	w.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) Policy() Policy { return w.policy }

func (w *Workflow) initMetrics(m metric.Meter) {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}
	w.returns = counter("library.returns", "Return attempts by outcome")
	w.fines = counter("library.fines.created", "Fines created by returns")
	w.notifyFailure = counter("library.notifications.failed", "Borrower notifications that could not be enqueued")
}

// Assess is the suggestion shown on the return form.
func (w *Workflow) Assess(loan models.Loan) Assessment {
	return w.policy.Assess(loan.DueDate, w.now())
}

// ProcessReturn closes an issued or overdue loan, restocks one copy and, when enteredFine > 0,
// records a pending fine. The three writes commit together. The entered amount is final: it
// is not checked against the suggested fine. Borrower notifications go out after commit and
// their failures are only logged.
func (w *Workflow) ProcessReturn(ctx context.Context, loanID string, enteredFine decimal.Decimal) (*Receipt, error) {
	ctx, span := w.tracer.Start(ctx, "circulation.ProcessReturn",
		trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer span.End()

	if _, err := uuid.Parse(loanID); err != nil {
		w.countReturn(ctx, "not_found")
		return nil, ErrNotFoundOrAlreadyReturned
	}
	if enteredFine.IsNegative() {
		w.countReturn(ctx, "invalid_input")
		return nil, fmt.Errorf("%w: fine amount must not be negative", ErrInvalidInput)
	}
	fine := enteredFine.Round(2)
	today := w.now()
	actor, hasActor := ActorFrom(ctx)

	var (
		detail     models.LoanDetail
		assessment Assessment
		created    *models.Fine
		available  int
	)
	err := w.ledger.WithinTx(ctx, func(tx ReturnTx) error {
		loan, err := tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.Status.Active() {
			return ErrNotFoundOrAlreadyReturned
		}
		detail = *loan
		assessment = w.policy.Assess(loan.DueDate, today)

		var returnedBy *string
		if hasActor {
			returnedBy = &actor.ID
		}
		if err := tx.CloseLoan(ctx, loan.ID, today, fine, returnedBy); err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		if available, err = tx.AdjustInventory(ctx, loan.BookID, 1); err != nil {
			return fmt.Errorf("restock book %s: %w", loan.BookID, err)
		}
		if fine.IsPositive() {
			f := &models.Fine{
				ID:     uuid.NewString(),
				LoanID: loan.ID,
				UserID: loan.UserID,
				Amount: fine,
				Reason: FineReason(loan.BookTitle),
				Status: models.FinePending,
			}
			if err := tx.InsertFine(ctx, f); err != nil {
				return fmt.Errorf("insert fine: %w", err)
			}
			created = f
		}
		if hasActor {
			if err := tx.RecordAudit(ctx, w.returnAudit(actor, loan.ID, fine, assessment)); err != nil {
				return fmt.Errorf("audit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFoundOrAlreadyReturned) {
			w.countReturn(ctx, "not_found")
			w.logger.Info("return skipped", "loan_id", loanID, "reason", err)
			return nil, ErrNotFoundOrAlreadyReturned
		}
		w.countReturn(ctx, "rolled_back")
		span.RecordError(err)
		span.SetStatus(codes.Error, "return rolled back")
		w.logger.Error("return rolled back", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	w.countReturn(ctx, "returned")
	receipt := &Receipt{
		LoanID:               detail.ID,
		BookID:               detail.BookID,
		UserID:               detail.UserID,
		BookTitle:            detail.BookTitle,
		ReturnedOn:           today,
		DaysOverdue:          assessment.DaysOverdue,
		SuggestedFine:        assessment.SuggestedFine,
		FineCharged:          fine,
		NewAvailableQuantity: available,
	}
	if created != nil {
		receipt.FineID = created.ID
		w.fines.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.Int("loan.days_overdue", assessment.DaysOverdue),
		attribute.String("loan.fine", fine.StringFixed(2)),
	)
	w.logger.Info("loan returned",
		"loan_id", detail.ID, "book_id", detail.BookID, "days_overdue", assessment.DaysOverdue,
		"fine", fine.StringFixed(2), "available", available)

	// the return is committed; a client that went away must not take the notices with it
	w.notifyBorrower(context.WithoutCancel(ctx), detail, created, receipt)
	return receipt, nil
}

// notifyBorrower sends the fine notice (if any) and then, always, the return confirmation.
func (w *Workflow) notifyBorrower(ctx context.Context, loan models.LoanDetail, fine *models.Fine, r *Receipt) {
	messages := make([]string, 0, 2)
	if fine != nil {
		messages = append(messages, w.policy.FineMessage(loan.BookTitle, fine.Amount))
	}
	messages = append(messages, ReturnConfirmation(loan.BookTitle))

	for _, msg := range messages {
		if err := w.notifier.Enqueue(ctx, loan.UserID, msg); err != nil {
			r.NotificationsFailed++
			w.notifyFailure.Add(ctx, 1)
			w.logger.Warn("borrower notification not enqueued", "loan_id", loan.ID, "user_id", loan.UserID, "error", err)
			continue
		}
		r.NotificationsSent++
	}
}

func (w *Workflow) returnAudit(actor Actor, loanID string, fine decimal.Decimal, a Assessment) *models.AuditLog {
	entry := &models.AuditLog{
		ID:            uuid.NewString(),
		Action:        "loan.returned",
		LoanID:        &loanID,
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
	}
	if !fine.Equal(a.SuggestedFine) {
		reason := fmt.Sprintf("fine %s entered, %s suggested for %d day(s) overdue",
			fine.StringFixed(2), a.SuggestedFine.StringFixed(2), a.DaysOverdue)
		entry.Reason = &reason
	}
	return entry
}

func (w *Workflow) countReturn(ctx context.Context, outcome string) {
	w.returns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
