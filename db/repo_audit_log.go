package db

import (
	"context"
	"fmt"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
)

func (r *Repo) LogAudit(ctx context.Context, action, actorID, actorUsername string, loanID, reason *string) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		ID:            uuid.NewString(),
		Action:        action,
		LoanID:        loanID,
		ActorID:       actorID,
		ActorUsername: actorUsername,
		Reason:        reason,
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// ListAudit returns the newest entries first, optionally only those for one loan.
func (r *Repo) ListAudit(ctx context.Context, loanID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if loanID != "" {
		q = q.Where("loan_id = ?", loanID)
	}
	var out []models.AuditLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
