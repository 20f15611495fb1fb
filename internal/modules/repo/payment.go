package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"gorm.io/gorm"
)

type PaymentRepo interface {
	Create(ctx context.Context, p *model.Payment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status, providerRef string) error
	Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	ListWithCursor(ctx context.Context, status string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Payment, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepo(db *gorm.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status, providerRef string) error {
	updates := map[string]interface{}{"status": status}
	if providerRef != "" {
		updates["provider_ref"] = providerRef
	}
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *paymentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) ListWithCursor(ctx context.Context, status string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Payment, error) {
	q := r.db.WithContext(ctx).Model(&model.Payment{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if !afterCreatedAt.IsZero() && afterID != uuid.Nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", afterCreatedAt, afterCreatedAt, afterID)
	}
	var items []*model.Payment
	return items, q.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
}
