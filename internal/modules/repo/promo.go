package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"gorm.io/gorm"
)

var ErrPromoExhausted = errors.New("promo code exhausted")

type PromoRepo interface {
	Create(ctx context.Context, p *model.PromoCode) error
	Update(ctx context.Context, p *model.PromoCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)
	List(ctx context.Context, limit int) ([]*model.PromoCode, error)
	Redeem(ctx context.Context, code string) (*model.PromoCode, error)
}

type promoRepo struct{ db *gorm.DB }

func NewPromoRepo(db *gorm.DB) PromoRepo {
	return &promoRepo{db: db}
}

func (r *promoRepo) Create(ctx context.Context, p *model.PromoCode) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *promoRepo) Update(ctx context.Context, p *model.PromoCode) error {
	return r.db.WithContext(ctx).Where(&model.PromoCode{ID: p.ID}).Updates(p).Error
}

func (r *promoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.PromoCode{}, "id = ?", id).Error
}

func (r *promoRepo) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	var p model.PromoCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promoRepo) List(ctx context.Context, limit int) ([]*model.PromoCode, error) {
	var items []*model.PromoCode
	return items, r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&items).Error
}

// Redeem atomically increments the use counter of an active, unexhausted,
// unexpired code.
func (r *promoRepo) Redeem(ctx context.Context, code string) (*model.PromoCode, error) {
	var p model.PromoCode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ? AND active", code).First(&p).Error; err != nil {
			return err
		}
		if p.MaxUses > 0 && p.Uses >= p.MaxUses {
			return ErrPromoExhausted
		}
		res := tx.Model(&model.PromoCode{}).
			Where("id = ? AND (max_uses = 0 OR uses < max_uses)", p.ID).
			Update("uses", gorm.Expr("uses + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPromoExhausted
		}
		p.Uses++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
