package db

import (
	"context"

	"Gin_postgres_redis_library/models"
)

func (r *Repo) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	return r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

func (r *Repo) CountLibrarians(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleLibrarian).
		Count(&n).Error
	return n, err
}
