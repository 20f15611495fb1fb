package service

import (
	"context"
	"fmt"

	"github.com/spivanka/spivanka/internal/infra/blob"
	"github.com/spivanka/spivanka/internal/infra/coverart"
	"github.com/spivanka/spivanka/internal/infra/queue"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"go.uber.org/zap"
)

// GenerationEffects implements the polling loop's side effects: the premium
// cover-art trigger on TEXT_SUCCESS and the exactly-once finalize on SUCCESS.
type GenerationEffects struct {
	tasks     repo.TaskRepo
	greetings repo.GreetingRepo
	cover     *coverart.Client
	mq        *queue.Publisher // optional
	blob      *blob.S3Deps     // optional
	log       *zap.Logger
}

func NewGenerationEffects(tasks repo.TaskRepo, greetings repo.GreetingRepo,
	cover *coverart.Client, mq *queue.Publisher, s3 *blob.S3Deps, log *zap.Logger) *GenerationEffects {
	return &GenerationEffects{
		tasks:     tasks,
		greetings: greetings,
		cover:     cover,
		mq:        mq,
		blob:      s3,
		log:       log,
	}
}

// OnTextReady schedules cover-art generation for premium tasks that have no
// cover yet. Fire-and-forget: the artwork URL surfaces on a later poll of the
// provider's task record, never synchronously.
func (e *GenerationEffects) OnTextReady(ctx context.Context, snap *normalizer.Snapshot) {
	if e.cover == nil || !e.cover.Enabled() || snap.CoverURL != "" {
		return
	}

	task, err := e.tasks.Get(ctx, snap.TaskID)
	if err != nil {
		e.log.Sugar().Warnw("cover trigger: task lookup failed", "taskId", snap.TaskID, "err", err)
		return
	}
	if task.Plan != model.PlanPremium || task.CoverURL != "" {
		return
	}

	form := task.FormData.Data()
	req := coverart.GenerateRequest{
		TaskID:    task.TaskID,
		Recipient: form.Recipient,
		Occasion:  form.Occasion,
		Style:     form.Style,
		Mood:      form.Mood,
	}

	// outlives the poll attempt that triggered it
	go func(ctx context.Context) {
		if err := e.cover.Generate(ctx, req); err != nil {
			e.log.Sugar().Warnw("cover generation request failed", "taskId", req.TaskID, "err", err)
		}
	}(context.WithoutCancel(ctx))
}

// Finalize persists the durable Greeting for a SUCCESS snapshot exactly once,
// archives the media when a bucket is configured and announces the result on
// the event exchange. Safe to call repeatedly for the same task id.
func (e *GenerationEffects) Finalize(ctx context.Context, snap *normalizer.Snapshot) error {
	exists, err := e.greetings.ExistsByTaskID(ctx, snap.TaskID)
	if err != nil {
		return fmt.Errorf("finalize existence check: %w", err)
	}
	if exists {
		return nil
	}

	g := &model.Greeting{
		TaskID:         snap.TaskID,
		Text:           snap.Text,
		MusicURL:       snap.MusicURL,
		SecondMusicURL: snap.SecondMusicURL,
		CoverURL:       snap.CoverURL,
		Plan:           model.PlanBasic,
	}

	if task, err := e.tasks.Get(ctx, snap.TaskID); err == nil {
		form := task.FormData.Data()
		g.UserEmail = task.UserEmail
		g.Recipient = form.Recipient
		g.Occasion = form.Occasion
		g.Plan = task.Plan
	} else {
		e.log.Sugar().Warnw("finalize: task lookup failed, greeting keeps snapshot data only",
			"taskId", snap.TaskID, "err", err)
	}

	if e.blob != nil {
		if snap.MusicURL != "" {
			key := "greetings/" + snap.TaskID + "/music.mp3"
			if _, err := e.blob.ArchiveFromURL(ctx, key, snap.MusicURL); err != nil {
				e.log.Sugar().Warnw("music archive failed", "taskId", snap.TaskID, "err", err)
			} else {
				g.MusicArchiveKey = key
			}
		}
		if snap.CoverURL != "" {
			key := "greetings/" + snap.TaskID + "/cover.jpg"
			if _, err := e.blob.ArchiveFromURL(ctx, key, snap.CoverURL); err != nil {
				e.log.Sugar().Warnw("cover archive failed", "taskId", snap.TaskID, "err", err)
			} else {
				g.CoverArchiveKey = key
			}
		}
	}

	if err := e.greetings.Create(ctx, g); err != nil {
		return fmt.Errorf("create greeting: %w", err)
	}

	if e.mq != nil {
		if err := e.mq.PublishJSON(ctx, "greeting.finalized", g); err != nil {
			e.log.Sugar().Warnw("finalize event publish failed", "taskId", snap.TaskID, "err", err)
		}
	}

	e.log.Sugar().Infow("greeting finalized", "taskId", snap.TaskID, "greetingId", g.ID)
	return nil
}
