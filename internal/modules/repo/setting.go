package repo

import (
	"context"

	"github.com/spivanka/spivanka/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepo interface {
	Upsert(ctx context.Context, s *model.Setting) error
	Get(ctx context.Context, key string) (*model.Setting, error)
	List(ctx context.Context) ([]*model.Setting, error)
	Delete(ctx context.Context, key string) error
}

type settingRepo struct{ db *gorm.DB }

func NewSettingRepo(db *gorm.DB) SettingRepo {
	return &settingRepo{db: db}
}

func (r *settingRepo) Upsert(ctx context.Context, s *model.Setting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(s).Error
}

func (r *settingRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingRepo) List(ctx context.Context) ([]*model.Setting, error) {
	var items []*model.Setting
	return items, r.db.WithContext(ctx).Order("key ASC").Find(&items).Error
}

func (r *settingRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&model.Setting{}, "key = ?", key).Error
}
