package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"gorm.io/gorm"
)

type GreetingRepo interface {
	Create(ctx context.Context, g *model.Greeting) error
	ExistsByTaskID(ctx context.Context, taskID string) (bool, error)
	GetByTaskID(ctx context.Context, taskID string) (*model.Greeting, error)
	ListWithCursor(ctx context.Context, userEmail string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Greeting, error)
}

type greetingRepo struct{ db *gorm.DB }

func NewGreetingRepo(db *gorm.DB) GreetingRepo {
	return &greetingRepo{db: db}
}

func (r *greetingRepo) Create(ctx context.Context, g *model.Greeting) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *greetingRepo) ExistsByTaskID(ctx context.Context, taskID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Greeting{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count > 0, err
}

func (r *greetingRepo) GetByTaskID(ctx context.Context, taskID string) (*model.Greeting, error) {
	var g model.Greeting
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *greetingRepo) ListWithCursor(ctx context.Context, userEmail string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Greeting, error) {
	q := r.db.WithContext(ctx).Model(&model.Greeting{})
	if userEmail != "" {
		q = q.Where("user_email = ?", userEmail)
	}

	// (created_at, id) composite cursor; an empty cursor starts from the edge
	if !afterCreatedAt.IsZero() && afterID != uuid.Nil {
		comparisonOp := ">"
		if timeDesc {
			comparisonOp = "<"
		}
		q = q.Where(
			"(created_at "+comparisonOp+" ?) OR (created_at = ? AND id "+comparisonOp+" ?)",
			afterCreatedAt, afterCreatedAt, afterID,
		)
	}

	orderBy := "created_at ASC, id ASC"
	if timeDesc {
		orderBy = "created_at DESC, id DESC"
	}

	var items []*model.Greeting
	return items, q.Order(orderBy).Limit(limit).Find(&items).Error
}
