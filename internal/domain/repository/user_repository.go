package repository

import (
	"context"

	"clubportal/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.UserProfile, error)
	ListByRole(ctx context.Context, role string, limit int) ([]*entity.UserProfile, error)
}
