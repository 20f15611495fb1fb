package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockTaskRepo is a mock implementation of TaskRepo
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) Create(ctx context.Context, t *model.GenerationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepo) Get(ctx context.Context, taskID string) (*model.GenerationTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GenerationTask), args.Error(1)
}

func (m *MockTaskRepo) UpdateText(ctx context.Context, taskID string, text string) error {
	args := m.Called(ctx, taskID, text)
	return args.Error(0)
}

func (m *MockTaskRepo) GetSnapshot(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*normalizer.Snapshot), args.Error(1)
}

func (m *MockTaskRepo) SaveSnapshot(ctx context.Context, snap *normalizer.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

// MockGreetingRepo is a mock implementation of GreetingRepo
type MockGreetingRepo struct {
	mock.Mock
}

func (m *MockGreetingRepo) Create(ctx context.Context, g *model.Greeting) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGreetingRepo) ExistsByTaskID(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGreetingRepo) GetByTaskID(ctx context.Context, taskID string) (*model.Greeting, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Greeting), args.Error(1)
}

func (m *MockGreetingRepo) ListWithCursor(ctx context.Context, userEmail string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Greeting, error) {
	args := m.Called(ctx, userEmail, afterCreatedAt, afterID, limit, timeDesc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Greeting), args.Error(1)
}

func TestGenerationService_GetTask_NotFoundIsNil(t *testing.T) {
	ctx := context.Background()
	tasks := &MockTaskRepo{}
	tasks.On("Get", ctx, "t-missing").Return(nil, gorm.ErrRecordNotFound)

	svc := NewGenerationService(tasks, nil, nil, zap.NewNop())
	task, err := svc.GetTask(ctx, "t-missing")

	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestGenerationService_UpdateText(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		status  string
		setup   func(*MockTaskRepo)
		wantErr error
	}{
		{
			name:   "editable while pending",
			status: "PENDING",
			setup: func(tasks *MockTaskRepo) {
				tasks.On("UpdateText", ctx, "t-1", "new lyric").Return(nil)
			},
		},
		{
			name:   "editable after text stage",
			status: "TEXT_SUCCESS",
			setup: func(tasks *MockTaskRepo) {
				tasks.On("UpdateText", ctx, "t-1", "new lyric").Return(nil)
			},
		},
		{
			name:    "locked once audio started",
			status:  "FIRST_SUCCESS",
			wantErr: ErrTextLocked,
		},
		{
			name:    "locked after success",
			status:  "SUCCESS",
			wantErr: ErrTextLocked,
		},
		{
			name:    "locked after failure",
			status:  "FAILED",
			wantErr: ErrTextLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &MockTaskRepo{}
			tasks.On("Get", ctx, "t-1").Return(&model.GenerationTask{TaskID: "t-1", Status: tt.status}, nil)
			if tt.setup != nil {
				tt.setup(tasks)
			}

			svc := NewGenerationService(tasks, nil, nil, zap.NewNop())
			err := svc.UpdateText(ctx, "t-1", "new lyric")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				tasks.AssertNotCalled(t, "UpdateText", mock.Anything, mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
			tasks.AssertExpectations(t)
		})
	}
}

func TestGenerationService_Retry_OnlyForTerminalFailures(t *testing.T) {
	ctx := context.Background()

	for _, status := range []string{"PENDING", "TEXT_SUCCESS", "FIRST_SUCCESS", "SUCCESS"} {
		t.Run(status, func(t *testing.T) {
			tasks := &MockTaskRepo{}
			tasks.On("Get", ctx, "t-1").Return(&model.GenerationTask{TaskID: "t-1", Status: status}, nil)

			svc := NewGenerationService(tasks, nil, nil, zap.NewNop())
			_, err := svc.Retry(ctx, "t-1")

			assert.ErrorIs(t, err, ErrNotRetriable)
		})
	}
}

func TestBuildSubmitRequest(t *testing.T) {
	req := buildSubmitRequest(model.FormData{
		Recipient:    "Olena",
		Occasion:     "birthday",
		Relationship: "sister",
		Style:        "pop",
		Mood:         "joyful",
		Language:     "Ukrainian",
	})

	assert.Contains(t, req.Prompt, "Olena")
	assert.Contains(t, req.Prompt, "birthday")
	assert.Contains(t, req.Prompt, "sister")
	assert.Contains(t, req.Prompt, "joyful")
	assert.Contains(t, req.Prompt, "Ukrainian")
	assert.Equal(t, "pop", req.Style)
	assert.Equal(t, "For Olena", req.Title)
}
