package db

import (
	"context"

	"Gin_postgres_redis_library/models"

	"github.com/shopspring/decimal"
)

type LibraryStats struct {
	Books            int64           `json:"books"`
	Copies           int64           `json:"copies"`
	CopiesAvailable  int64           `json:"copiesAvailable"`
	ActiveLoans      int64           `json:"activeLoans"`
	OverdueLoans     int64           `json:"overdueLoans"`
	PendingFines     int64           `json:"pendingFines"`
	PendingFineTotal decimal.Decimal `json:"pendingFineTotal"`
	PendingEBooks    int64           `json:"pendingEbookRequests"`
}

type PatronStats struct {
	ActiveLoans         int64           `json:"activeLoans"`
	OverdueLoans        int64           `json:"overdueLoans"`
	UnpaidFines         int64           `json:"unpaidFines"`
	UnpaidFineTotal     decimal.Decimal `json:"unpaidFineTotal"`
	UnreadNotifications int64           `json:"unreadNotifications"`
}

type sums struct {
	Total decimal.Decimal
}

func (r *Repo) LibraryStats(ctx context.Context) (*LibraryStats, error) {
	db := r.DB.WithContext(ctx)
	var s LibraryStats

	var copies struct {
		Copies    int64
		Available int64
	}
	if err := db.Model(&models.Book{}).
		Select("COALESCE(SUM(total_quantity), 0) AS copies, COALESCE(SUM(available_quantity), 0) AS available").
		Scan(&copies).Error; err != nil {
		return nil, err
	}
	s.Copies, s.CopiesAvailable = copies.Copies, copies.Available

	if err := db.Model(&models.Book{}).Count(&s.Books).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Loan{}).Where("status IN ?", models.ActiveLoanStatuses).Count(&s.ActiveLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Loan{}).Where("status = ?", models.LoanOverdue).Count(&s.OverdueLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Fine{}).Where("status = ?", models.FinePending).Count(&s.PendingFines).Error; err != nil {
		return nil, err
	}
	var fines sums
	if err := db.Model(&models.Fine{}).Select("COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", models.FinePending).Scan(&fines).Error; err != nil {
		return nil, err
	}
	s.PendingFineTotal = fines.Total
	if err := db.Model(&models.EBookRequest{}).Where("status = ?", models.EBookRequestPending).Count(&s.PendingEBooks).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) PatronStats(ctx context.Context, userID string) (*PatronStats, error) {
	db := r.DB.WithContext(ctx)
	var s PatronStats

	if err := db.Model(&models.Loan{}).Where("user_id = ? AND status IN ?", userID, models.ActiveLoanStatuses).Count(&s.ActiveLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Loan{}).Where("user_id = ? AND status = ?", userID, models.LoanOverdue).Count(&s.OverdueLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Fine{}).Where("user_id = ? AND status = ?", userID, models.FinePending).Count(&s.UnpaidFines).Error; err != nil {
		return nil, err
	}
	var fines sums
	if err := db.Model(&models.Fine{}).Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND status = ?", userID, models.FinePending).Scan(&fines).Error; err != nil {
		return nil, err
	}
	s.UnpaidFineTotal = fines.Total
	unread, err := r.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.UnreadNotifications = unread
	return &s, nil
}
