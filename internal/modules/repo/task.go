package repo

import (
	"context"
	"errors"

	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepo is the authoritative status store for generation tasks. Snapshot
// reads/writes satisfy the poller's Store contract: a missing task reads as
// (nil, nil), and a save is an upsert keyed by task id.
type TaskRepo interface {
	Create(ctx context.Context, t *model.GenerationTask) error
	Get(ctx context.Context, taskID string) (*model.GenerationTask, error)
	UpdateText(ctx context.Context, taskID string, text string) error
	GetSnapshot(ctx context.Context, taskID string) (*normalizer.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *normalizer.Snapshot) error
}

type taskRepo struct{ db *gorm.DB }

func NewTaskRepo(db *gorm.DB) TaskRepo {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, t *model.GenerationTask) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *taskRepo) Get(ctx context.Context, taskID string) (*model.GenerationTask, error) {
	var t model.GenerationTask
	if err := r.db.WithContext(ctx).Where(&model.GenerationTask{TaskID: taskID}).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) UpdateText(ctx context.Context, taskID string, text string) error {
	return r.db.WithContext(ctx).
		Model(&model.GenerationTask{}).
		Where("task_id = ?", taskID).
		Update("text", text).Error
}

func (r *taskRepo) GetSnapshot(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	t, err := r.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	status, ok := genstatus.Parse(t.Status)
	if !ok {
		status = genstatus.Pending
	}
	return &normalizer.Snapshot{
		TaskID:         t.TaskID,
		Status:         status,
		Text:           t.Text,
		MusicURL:       t.MusicURL,
		SecondMusicURL: t.SecondMusicURL,
		CoverURL:       t.CoverURL,
	}, nil
}

func (r *taskRepo) SaveSnapshot(ctx context.Context, snap *normalizer.Snapshot) error {
	row := model.GenerationTask{
		TaskID:         snap.TaskID,
		Status:         snap.Status.String(),
		Text:           snap.Text,
		MusicURL:       snap.MusicURL,
		SecondMusicURL: snap.SecondMusicURL,
		CoverURL:       snap.CoverURL,
	}
	// plan/form_data/user_email belong to the submit path and are left alone
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "text", "music_url", "second_music_url", "cover_url", "updated_at",
		}),
	}).Create(&row).Error
}
