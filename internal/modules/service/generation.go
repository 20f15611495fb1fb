package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spivanka/spivanka/internal/infra/suno"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
	"github.com/spivanka/spivanka/internal/pkg/poller"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrTextLocked means the lyric can no longer be edited because audio
// generation has already started.
var ErrTextLocked = errors.New("lyric is locked once audio generation begins")

// ErrNotRetriable means retry was requested for a task that is not in a
// terminal failure state.
var ErrNotRetriable = errors.New("task is not in a failed state")

type SubmitInput struct {
	Form      model.FormData
	Plan      string
	UserEmail string
}

type GenerationService interface {
	Submit(ctx context.Context, in SubmitInput) (*model.GenerationTask, error)
	GetTask(ctx context.Context, taskID string) (*model.GenerationTask, error)
	UpdateText(ctx context.Context, taskID, text string) error
	Retry(ctx context.Context, taskID string) (*model.GenerationTask, error)
}

type generationService struct {
	tasks    repo.TaskRepo
	provider *suno.Client
	poll     *poller.Poller
	log      *zap.Logger
}

func NewGenerationService(tasks repo.TaskRepo, provider *suno.Client, poll *poller.Poller, log *zap.Logger) GenerationService {
	return &generationService{
		tasks:    tasks,
		provider: provider,
		poll:     poll,
		log:      log,
	}
}

// Submit mints a provider task for the form, persists the PENDING record and
// starts the background polling loop for it.
func (s *generationService) Submit(ctx context.Context, in SubmitInput) (*model.GenerationTask, error) {
	plan := in.Plan
	if plan != model.PlanPremium {
		plan = model.PlanBasic
	}

	taskID, err := s.provider.Submit(ctx, buildSubmitRequest(in.Form))
	if err != nil {
		return nil, fmt.Errorf("submit to provider: %w", err)
	}

	task := &model.GenerationTask{
		TaskID:    taskID,
		Status:    genstatus.Pending.String(),
		Plan:      plan,
		UserEmail: in.UserEmail,
		FormData:  datatypes.NewJSONType(in.Form),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	s.startPolling(ctx, taskID)
	return task, nil
}

func (s *generationService) startPolling(ctx context.Context, taskID string) {
	// the loop outlives the submit request; bounded by the attempt budget
	go s.poll.PollUntilTerminal(context.WithoutCancel(ctx), taskID)
}

func (s *generationService) GetTask(ctx context.Context, taskID string) (*model.GenerationTask, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// UpdateText lets the user edit the generated lyric, but only while the task
// has not progressed past the text stage.
func (s *generationService) UpdateText(ctx context.Context, taskID, text string) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	switch genstatus.Status(task.Status) {
	case genstatus.Pending, genstatus.TextSuccess:
		return s.tasks.UpdateText(ctx, taskID, text)
	default:
		return ErrTextLocked
	}
}

// Retry resubmits a terminally failed task with its original form data. The
// provider mints a fresh task id; the failed record stays as-is.
func (s *generationService) Retry(ctx context.Context, taskID string) (*model.GenerationTask, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	status := genstatus.Status(task.Status)
	if status != genstatus.Failed && status != genstatus.GenerateAudioFailed {
		return nil, ErrNotRetriable
	}

	return s.Submit(ctx, SubmitInput{
		Form:      task.FormData.Data(),
		Plan:      task.Plan,
		UserEmail: task.UserEmail,
	})
}

// buildSubmitRequest turns the user's form into the provider prompt. Lyric
// writing itself is the provider's job; we only describe the person and the
// occasion.
func buildSubmitRequest(form model.FormData) suno.SubmitRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "A personalized %s song for %s", form.Occasion, form.Recipient)
	if form.Relationship != "" {
		fmt.Fprintf(&b, ", my %s", form.Relationship)
	}
	if form.Mood != "" {
		fmt.Fprintf(&b, ". Mood: %s", form.Mood)
	}
	if form.Language != "" {
		fmt.Fprintf(&b, ". Language: %s", form.Language)
	}
	if form.VoiceType != "" {
		fmt.Fprintf(&b, ". Voice: %s", form.VoiceType)
	}

	return suno.SubmitRequest{
		Prompt: b.String(),
		Style:  form.Style,
		Title:  fmt.Sprintf("For %s", form.Recipient),
	}
}
