package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
	"github.com/spivanka/spivanka/internal/pkg/utils"
	"gorm.io/datatypes"
)

// AdminService backs the back-office CRUD screens: promo codes, text blocks,
// settings and payment browsing.
type AdminService interface {
	CreatePromo(ctx context.Context, discountPercent, maxUses int, expiresAt *time.Time) (*model.PromoCode, error)
	UpdatePromo(ctx context.Context, p *model.PromoCode) error
	DeletePromo(ctx context.Context, id uuid.UUID) error
	ListPromos(ctx context.Context, limit int) ([]*model.PromoCode, error)
	RedeemPromo(ctx context.Context, code string) (*model.PromoCode, error)

	UpsertTextBlock(ctx context.Context, b *model.TextBlock) error
	DeleteTextBlock(ctx context.Context, id uuid.UUID) error
	ListTextBlocks(ctx context.Context, language string) ([]*model.TextBlock, error)

	UpsertSetting(ctx context.Context, key string, value map[string]interface{}) (*model.Setting, error)
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	ListSettings(ctx context.Context) ([]*model.Setting, error)

	ListPayments(ctx context.Context, status string, limit int, cursor string) ([]*model.Payment, string, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status, providerRef string) error
}

type adminService struct {
	promos   repo.PromoRepo
	blocks   repo.TextBlockRepo
	settings repo.SettingRepo
	payments repo.PaymentRepo
}

func NewAdminService(promos repo.PromoRepo, blocks repo.TextBlockRepo,
	settings repo.SettingRepo, payments repo.PaymentRepo) AdminService {
	return &adminService{
		promos:   promos,
		blocks:   blocks,
		settings: settings,
		payments: payments,
	}
}

func (s *adminService) CreatePromo(ctx context.Context, discountPercent, maxUses int, expiresAt *time.Time) (*model.PromoCode, error) {
	code, err := utils.GenerateCode("SPIV-", 8)
	if err != nil {
		return nil, fmt.Errorf("generate promo code: %w", err)
	}
	p := &model.PromoCode{
		Code:            code,
		DiscountPercent: discountPercent,
		MaxUses:         maxUses,
		Active:          true,
		ExpiresAt:       expiresAt,
	}
	if err := s.promos.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *adminService) UpdatePromo(ctx context.Context, p *model.PromoCode) error {
	return s.promos.Update(ctx, p)
}

func (s *adminService) DeletePromo(ctx context.Context, id uuid.UUID) error {
	return s.promos.Delete(ctx, id)
}

func (s *adminService) ListPromos(ctx context.Context, limit int) ([]*model.PromoCode, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.promos.List(ctx, limit)
}

func (s *adminService) RedeemPromo(ctx context.Context, code string) (*model.PromoCode, error) {
	p, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
		return nil, repo.ErrPromoExhausted
	}
	return s.promos.Redeem(ctx, code)
}

func (s *adminService) UpsertTextBlock(ctx context.Context, b *model.TextBlock) error {
	if b.Language == "" {
		b.Language = "uk"
	}
	return s.blocks.Upsert(ctx, b)
}

func (s *adminService) DeleteTextBlock(ctx context.Context, id uuid.UUID) error {
	return s.blocks.Delete(ctx, id)
}

func (s *adminService) ListTextBlocks(ctx context.Context, language string) ([]*model.TextBlock, error) {
	return s.blocks.List(ctx, language)
}

func (s *adminService) UpsertSetting(ctx context.Context, key string, value map[string]interface{}) (*model.Setting, error) {
	st := &model.Setting{Key: key, Value: datatypes.JSONMap(value)}
	if err := s.settings.Upsert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *adminService) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	return s.settings.Get(ctx, key)
}

func (s *adminService) ListSettings(ctx context.Context) ([]*model.Setting, error) {
	return s.settings.List(ctx)
}

func (s *adminService) ListPayments(ctx context.Context, status string, limit int, cursor string) ([]*model.Payment, string, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	afterCreatedAt, afterID, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("invalid cursor: %w", err)
	}
	items, err := s.payments.ListWithCursor(ctx, status, afterCreatedAt, afterID, limit)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(items) == limit {
		last := items[len(items)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return items, next, nil
}

func (s *adminService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status, providerRef string) error {
	switch status {
	case model.PaymentPending, model.PaymentPaid, model.PaymentFailed, model.PaymentRefunded:
	default:
		return fmt.Errorf("unknown payment status %q", status)
	}
	return s.payments.UpdateStatus(ctx, id, status, providerRef)
}
