package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnLedger runs returns against Postgres. The loan row lock serializes concurrent submits
// for the same loan; the guarded updates below hold even without it.
type ReturnLedger struct{ DB *gorm.DB }

func NewReturnLedger(db *gorm.DB) *ReturnLedger { return &ReturnLedger{DB: db} }

func (l *ReturnLedger) WithinTx(ctx context.Context, fn func(tx circulation.ReturnTx) error) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(returnTx{tx: tx})
	})
}

type returnTx struct{ tx *gorm.DB }

// loanDetailQuery selects a loan with its title and borrower under the alias l.
func loanDetailQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table(models.LoanTable + " l").
		Select("l.*, COALESCE(b.title, '') AS book_title, COALESCE(b.author, '') AS book_author, COALESCE(u.display_name, '') AS borrower_name").
		Joins("LEFT JOIN " + models.BookTable + " b ON b.id = l.book_id").
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = l.user_id")
}

func (t returnTx) LockLoan(ctx context.Context, loanID string) (*models.LoanDetail, error) {
	var d models.LoanDetail
	err := loanDetailQuery(t.tx.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "l"}}).
		Where("l.id = ?", loanID).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, circulation.ErrNotFoundOrAlreadyReturned
	}
	if err != nil {
		return nil, fmt.Errorf("load loan %s: %w", loanID, err)
	}
	return &d, nil
}

func (t returnTx) CloseLoan(ctx context.Context, loanID string, returnedOn time.Time, fine decimal.Decimal, returnedBy *string) error {
	res := t.tx.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND status IN ?", loanID, models.ActiveLoanStatuses).
		Updates(map[string]any{
			"status":             models.LoanReturned,
			"actual_return_date": returnedOn,
			"fine_amount":        fine,
			"returned_by":        returnedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return circulation.ErrNotFoundOrAlreadyReturned
	}
	return nil
}

func (t returnTx) AdjustInventory(ctx context.Context, bookID string, delta int) (int, error) {
	return adjustInventory(t.tx.WithContext(ctx), bookID, delta)
}

func (t returnTx) InsertFine(ctx context.Context, fine *models.Fine) error {
	return t.tx.WithContext(ctx).Create(fine).Error
}

func (t returnTx) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	return t.tx.WithContext(ctx).Create(entry).Error
}

// adjustInventory moves available_quantity by delta inside [0, total_quantity] and returns the
// new value. A move that would leave the range changes nothing and reports ErrInventoryBound.
func adjustInventory(tx *gorm.DB, bookID string, delta int) (int, error) {
	res := tx.Model(&models.Book{}).
		Where("id = ? AND available_quantity + ? >= 0 AND available_quantity + ? <= total_quantity", bookID, delta, delta).
		Update("available_quantity", gorm.Expr("available_quantity + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}

	var b models.Book
	if err := tx.Select("id", "total_quantity", "available_quantity").Take(&b, "id = ?", bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("book %s: %w", bookID, err)
		}
		return 0, err
	}
	if res.RowsAffected == 0 {
		return b.AvailableQuantity, fmt.Errorf("book %s (%d of %d available, delta %+d): %w",
			bookID, b.AvailableQuantity, b.TotalQuantity, delta, circulation.ErrInventoryBound)
	}
	return b.AvailableQuantity, nil
}
