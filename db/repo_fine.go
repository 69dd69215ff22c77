package db

import (
	"context"
	"time"

	"Gin_postgres_redis_library/models"

	"gorm.io/gorm"
)

type FineFilter struct {
	UserID string
	Status models.FineStatus
	Page   int
	Size   int
}

// FineRow is a fine with the title it was charged for.
type FineRow struct {
	models.Fine
	BookTitle    string `json:"bookTitle"`
	BorrowerName string `json:"borrowerName"`
}

type PagedFines struct {
	Total int64     `json:"total"`
	Fines []FineRow `json:"fines"`
}

func (r *Repo) ListFines(ctx context.Context, f FineFilter) (*PagedFines, error) {
	page, size := normalizePage(f.Page, f.Size, 200)

	scope := func(tx *gorm.DB) *gorm.DB {
		if f.UserID != "" {
			tx = tx.Where("f.user_id = ?", f.UserID)
		}
		if f.Status != "" {
			tx = tx.Where("f.status = ?", f.Status)
		}
		return tx
	}

	var total int64
	if err := r.DB.WithContext(ctx).Table(models.FineTable + " f").Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []FineRow
	if err := r.DB.WithContext(ctx).Table(models.FineTable+" f").
		Select("f.*, COALESCE(b.title, '') AS book_title, COALESCE(u.display_name, '') AS borrower_name").
		Joins("LEFT JOIN "+models.LoanTable+" l ON l.id = f.loan_id").
		Joins("LEFT JOIN "+models.BookTable+" b ON b.id = l.book_id").
		Joins("LEFT JOIN "+models.UserTable+" u ON u.id = f.user_id").
		Scopes(scope).
		Order("f.created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedFines{Total: total, Fines: rows}, nil
}

func (r *Repo) FindFineByID(ctx context.Context, id string) (*models.Fine, error) {
	var f models.Fine
	if err := r.DB.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// PayFine moves a pending fine to paid. Paying twice is ErrFineAlreadyPaid.
func (r *Repo) PayFine(ctx context.Context, id string, paidAt time.Time) (*models.Fine, error) {
	res := r.DB.WithContext(ctx).Model(&models.Fine{}).
		Where("id = ? AND status = ?", id, models.FinePending).
		Updates(map[string]any{"status": models.FinePaid, "paid_at": paidAt})
	if res.Error != nil {
		return nil, res.Error
	}
	f, err := r.FindFineByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return f, ErrFineAlreadyPaid
	}
	return f, nil
}
