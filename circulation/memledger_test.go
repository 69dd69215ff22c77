package circulation_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/models"

	"github.com/shopspring/decimal"
)

// memLedger is a copy-on-write ledger: each transaction works on a clone that replaces the
// committed state only when fn returns nil. One mutex stands in for the row locks.
type memLedger struct {
	mu    sync.Mutex
	state memState

	failAdjust error
	failFine   error
	txCount    int
	afterTx    func()
}

type memState struct {
	loans  map[string]models.LoanDetail
	books  map[string]models.Book
	fines  []models.Fine
	audits []models.AuditLog
}

func newMemLedger() *memLedger {
	return &memLedger{state: memState{
		loans: map[string]models.LoanDetail{},
		books: map[string]models.Book{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		loans:  make(map[string]models.LoanDetail, len(s.loans)),
		books:  make(map[string]models.Book, len(s.books)),
		fines:  append([]models.Fine(nil), s.fines...),
		audits: append([]models.AuditLog(nil), s.audits...),
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	return c
}

func (l *memLedger) WithinTx(ctx context.Context, fn func(tx circulation.ReturnTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txCount++
	work := &memTx{ledger: l, state: l.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	l.state = work.state
	if l.afterTx != nil {
		l.afterTx()
	}
	return nil
}

func (l *memLedger) addBook(b models.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.books[b.ID] = b
}

func (l *memLedger) addLoan(d models.LoanDetail) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.loans[d.ID] = d
}

func (l *memLedger) loan(id string) models.LoanDetail {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.loans[id]
}

func (l *memLedger) book(id string) models.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.books[id]
}

func (l *memLedger) fines() []models.Fine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Fine(nil), l.state.fines...)
}

func (l *memLedger) audits() []models.AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.AuditLog(nil), l.state.audits...)
}

type memTx struct {
	ledger *memLedger
	state  memState
}

func (t *memTx) LockLoan(_ context.Context, loanID string) (*models.LoanDetail, error) {
	d, ok := t.state.loans[loanID]
	if !ok {
		return nil, circulation.ErrNotFoundOrAlreadyReturned
	}
	return &d, nil
}

func (t *memTx) CloseLoan(_ context.Context, loanID string, returnedOn time.Time, fine decimal.Decimal, returnedBy *string) error {
	d, ok := t.state.loans[loanID]
	if !ok || !d.Status.Active() {
		return circulation.ErrNotFoundOrAlreadyReturned
	}
	d.Status = models.LoanReturned
	d.ActualReturnDate = &returnedOn
	d.FineAmount = fine
	d.ReturnedBy = returnedBy
	t.state.loans[loanID] = d
	return nil
}

func (t *memTx) AdjustInventory(_ context.Context, bookID string, delta int) (int, error) {
	if t.ledger.failAdjust != nil {
		return 0, t.ledger.failAdjust
	}
	b, ok := t.state.books[bookID]
	if !ok {
		return 0, errors.New("book not found")
	}
	next := b.AvailableQuantity + delta
	if next > b.TotalQuantity || next < 0 {
		return 0, circulation.ErrInventoryBound
	}
	b.AvailableQuantity = next
	t.state.books[bookID] = b
	return next, nil
}

func (t *memTx) InsertFine(_ context.Context, fine *models.Fine) error {
	if t.ledger.failFine != nil {
		return t.ledger.failFine
	}
	t.state.fines = append(t.state.fines, *fine)
	return nil
}

func (t *memTx) RecordAudit(_ context.Context, entry *models.AuditLog) error {
	t.state.audits = append(t.state.audits, *entry)
	return nil
}

type sentMessage struct {
	UserID  string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (n *recordingNotifier) Enqueue(ctx context.Context, userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.sent = append(n.sent, sentMessage{UserID: userID, Message: message})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}
