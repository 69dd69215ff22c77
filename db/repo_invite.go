package db

import (
	"context"
	"time"

	"Gin_postgres_redis_library/models"
)

func (r *Repo) CreateInvite(ctx context.Context, email, token string, role models.Role, expiresAt time.Time, createdBy string) (*models.Invite, error) {
	if role == "" {
		role = models.RolePatron
	}
	inv := &models.Invite{Email: email, Token: token, Role: role, ExpiresAt: expiresAt, CreatedBy: createdBy}
	return inv, r.DB.WithContext(ctx).Create(inv).Error
}

func (r *Repo) GetInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// HasOpenInvite reports whether email has an unused, unexpired invite.
func (r *Repo) HasOpenInvite(ctx context.Context, email string, now time.Time) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Invite{}).
		Where("email = ? AND used_at IS NULL AND expires_at > ?", email, now).
		Count(&n).Error
	return n > 0, err
}

func (r *Repo) MarkInviteUsed(ctx context.Context, token string) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&models.Invite{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInviteUsed
	}
	return nil
}
