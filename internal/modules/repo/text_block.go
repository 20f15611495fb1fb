package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TextBlockRepo interface {
	Upsert(ctx context.Context, b *model.TextBlock) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByKey(ctx context.Context, key, language string) (*model.TextBlock, error)
	List(ctx context.Context, language string) ([]*model.TextBlock, error)
}

type textBlockRepo struct{ db *gorm.DB }

func NewTextBlockRepo(db *gorm.DB) TextBlockRepo {
	return &textBlockRepo{db: db}
}

func (r *textBlockRepo) Upsert(ctx context.Context, b *model.TextBlock) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "body", "updated_at"}),
	}).Create(b).Error
}

func (r *textBlockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.TextBlock{}, "id = ?", id).Error
}

func (r *textBlockRepo) GetByKey(ctx context.Context, key, language string) (*model.TextBlock, error) {
	var b model.TextBlock
	if err := r.db.WithContext(ctx).Where("key = ? AND language = ?", key, language).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *textBlockRepo) List(ctx context.Context, language string) ([]*model.TextBlock, error) {
	q := r.db.WithContext(ctx).Model(&model.TextBlock{})
	if language != "" {
		q = q.Where("language = ?", language)
	}
	var items []*model.TextBlock
	return items, q.Order("key ASC").Find(&items).Error
}
