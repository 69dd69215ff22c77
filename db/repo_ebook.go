package db

import (
	"context"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
)

func (r *Repo) CreateEBookRequest(ctx context.Context, req *models.EBookRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.EBookRequestPending
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *Repo) ListEBookRequests(ctx context.Context, userID string, status models.EBookRequestStatus) ([]models.EBookRequest, error) {
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.EBookRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DecideEBookRequest approves or rejects a pending request exactly once.
func (r *Repo) DecideEBookRequest(ctx context.Context, id string, approve bool, deciderID string, at time.Time) (*models.EBookRequest, error) {
	status := models.EBookRequestRejected
	if approve {
		status = models.EBookRequestApproved
	}
	res := r.DB.WithContext(ctx).Model(&models.EBookRequest{}).
		Where("id = ? AND status = ?", id, models.EBookRequestPending).
		Updates(map[string]any{"status": status, "decided_by": deciderID, "decided_at": at})
	if res.Error != nil {
		return nil, res.Error
	}
	var req models.EBookRequest
	if err := r.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return &req, ErrAlreadyDecided
	}
	return &req, nil
}
