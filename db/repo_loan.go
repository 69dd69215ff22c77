package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IssueInput struct {
	BookID         string
	UserID         string
	IssueDate      time.Time
	DueDate        time.Time
	IssuedBy       *string
	MaxActiveLoans int
}

// IssueBook lends one copy: lock borrower and book, check the loan limit, take a copy off the
// shelf and open the loan, all in one transaction.
func (r *Repo) IssueBook(ctx context.Context, in IssueInput) (*models.LoanDetail, error) {
	if !in.DueDate.After(in.IssueDate) {
		return nil, fmt.Errorf("%w: due date must be after the issue date", circulation.ErrInvalidInput)
	}

	var detail models.LoanDetail
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the borrower row lock serializes concurrent issues against the loan limit
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&u, "id = ?", in.UserID).Error; err != nil {
			return fmt.Errorf("borrower %s: %w", in.UserID, err)
		}
		if in.MaxActiveLoans > 0 {
			var active int64
			if err := tx.Model(&models.Loan{}).
				Where("user_id = ? AND status IN ?", in.UserID, models.ActiveLoanStatuses).
				Count(&active).Error; err != nil {
				return err
			}
			if active >= int64(in.MaxActiveLoans) {
				return circulation.ErrLoanLimit
			}
		}

		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&b, "id = ?", in.BookID).Error; err != nil {
			return fmt.Errorf("book %s: %w", in.BookID, err)
		}
		if _, err := adjustInventory(tx, b.ID, -1); err != nil {
			if errors.Is(err, circulation.ErrInventoryBound) {
				return circulation.ErrOutOfStock
			}
			return err
		}

		loan := models.Loan{
			ID:        uuid.NewString(),
			BookID:    b.ID,
			UserID:    u.ID,
			IssueDate: in.IssueDate,
			DueDate:   in.DueDate,
			Status:    models.LoanIssued,
			IssuedBy:  in.IssuedBy,
		}
		if err := tx.Create(&loan).Error; err != nil {
			return err
		}
		detail = models.LoanDetail{Loan: loan, BookTitle: b.Title, BookAuthor: b.Author, BorrowerName: u.DisplayName}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *Repo) FindLoanDetail(ctx context.Context, loanID string) (*models.LoanDetail, error) {
	var d models.LoanDetail
	if err := loanDetailQuery(r.DB.WithContext(ctx)).Where("l.id = ?", loanID).Take(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

type LoanFilter struct {
	UserID string
	BookID string
	// Status is a loan status, or "active" for issued and overdue together.
	Status string
	Page   int
	Size   int
}

type PagedLoans struct {
	Total int64               `json:"total"`
	Loans []models.LoanDetail `json:"loans"`
}

func (r *Repo) ListLoans(ctx context.Context, f LoanFilter) (*PagedLoans, error) {
	page, size := normalizePage(f.Page, f.Size, 200)

	scope := func(tx *gorm.DB) *gorm.DB {
		if f.UserID != "" {
			tx = tx.Where("l.user_id = ?", f.UserID)
		}
		if f.BookID != "" {
			tx = tx.Where("l.book_id = ?", f.BookID)
		}
		switch f.Status {
		case "":
		case "active":
			tx = tx.Where("l.status IN ?", models.ActiveLoanStatuses)
		default:
			tx = tx.Where("l.status = ?", f.Status)
		}
		return tx
	}

	var total int64
	if err := r.DB.WithContext(ctx).Table(models.LoanTable + " l").Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.LoanDetail
	if err := loanDetailQuery(r.DB.WithContext(ctx)).Scopes(scope).
		Order("l.issue_date DESC").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedLoans{Total: total, Loans: rows}, nil
}

func (r *Repo) CountActiveLoans(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("user_id = ? AND status IN ?", userID, models.ActiveLoanStatuses).
		Count(&n).Error
	return n, err
}

// MarkOverdue flips issued loans that are at least one calendar day past due to overdue and
// returns the loans it flipped. Rows another sweep holds are skipped.
func (r *Repo) MarkOverdue(ctx context.Context, now time.Time) ([]models.LoanDetail, error) {
	var flipped []models.LoanDetail
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.LoanDetail
		if err := loanDetailQuery(tx).
			Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "l"}, Options: "SKIP LOCKED"}).
			Where("l.status = ? AND l.due_date < ?", models.LoanIssued, now).
			Scan(&candidates).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if circulation.DaysOverdue(c.DueDate, now) > 0 {
				ids = append(ids, c.ID)
				flipped = append(flipped, c)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.Loan{}).
			Where("id IN ? AND status = ?", ids, models.LoanIssued).
			Update("status", models.LoanOverdue).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range flipped {
		flipped[i].Status = models.LoanOverdue
	}
	return flipped, nil
}

// LoansDueBetween lists issued loans with a due date in [from, to).
func (r *Repo) LoansDueBetween(ctx context.Context, from, to time.Time) ([]models.LoanDetail, error) {
	var rows []models.LoanDetail
	err := loanDetailQuery(r.DB.WithContext(ctx)).
		Where("l.status = ? AND l.due_date >= ? AND l.due_date < ?", models.LoanIssued, from, to).
		Order("l.due_date").
		Scan(&rows).Error
	return rows, err
}
