package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/internal/pkg/stream"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProvider is a mock implementation of Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Query(ctx context.Context, taskID string) (*normalizer.RawTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*normalizer.RawTask), args.Error(1)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSnapshot(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*normalizer.Snapshot), args.Error(1)
}

func (m *MockStore) SaveSnapshot(ctx context.Context, snap *normalizer.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

// MockSnapshotCache is a mock implementation of SnapshotCache
type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) Get(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*normalizer.Snapshot), args.Error(1)
}

func (m *MockSnapshotCache) Set(ctx context.Context, snap *normalizer.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotCache) Delete(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// MockEffects is a mock implementation of Effects
type MockEffects struct {
	mock.Mock
}

func (m *MockEffects) OnTextReady(ctx context.Context, snap *normalizer.Snapshot) {
	m.Called(ctx, snap)
}

func (m *MockEffects) Finalize(ctx context.Context, snap *normalizer.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

// recordingNotifier captures published events in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []stream.Event
}

func (n *recordingNotifier) Publish(e stream.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) all() []stream.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]stream.Event, len(n.events))
	copy(out, n.events)
	return out
}

func rawWithStatus(taskID, status string, tracks ...normalizer.RawTrack) *normalizer.RawTask {
	return &normalizer.RawTask{
		TaskID:   taskID,
		Status:   status,
		Response: normalizer.RawResponse{SunoData: tracks},
	}
}

func newTestPoller(provider Provider, store Store, cache SnapshotCache,
	effects Effects, notifier Notifier, opts Options) *Poller {
	return New(provider, store, cache, NewRateLimiter(0), notifier, effects, opts, zap.NewNop())
}

func TestPoller_PollOnce_FirstDelta(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}

	provider.On("Query", ctx, "t-1").Return(rawWithStatus("t-1", "PENDING"), nil)
	store.On("GetSnapshot", ctx, "t-1").Return(nil, nil)
	store.On("SaveSnapshot", ctx, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", ctx, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, &MockEffects{}, &recordingNotifier{}, Options{})
	delta, err := p.PollOnce(ctx, "t-1")

	require.NoError(t, err)
	require.NotNil(t, delta)
	assert.Equal(t, genstatus.Pending, delta.Status)
	assert.Equal(t, "t-1", delta.TaskID)
	store.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestPoller_PollOnce_NoChangeSuppressed(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}

	stored := &normalizer.Snapshot{TaskID: "t-1", Status: genstatus.Pending}
	provider.On("Query", ctx, "t-1").Return(rawWithStatus("t-1", "PENDING"), nil)
	store.On("GetSnapshot", ctx, "t-1").Return(stored, nil)

	p := newTestPoller(provider, store, cache, &MockEffects{}, &recordingNotifier{}, Options{})
	delta, err := p.PollOnce(ctx, "t-1")

	require.NoError(t, err)
	assert.Nil(t, delta)
	store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
}

func TestPoller_PollOnce_RateLimitedServesCache(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}

	provider.On("Query", ctx, "t-1").Return(nil, ErrRateLimited)
	cache.On("Get", ctx, "t-1").Return(&normalizer.Snapshot{TaskID: "t-1", Status: genstatus.TextSuccess}, nil)

	p := newTestPoller(provider, store, cache, &MockEffects{}, &recordingNotifier{}, Options{})
	delta, err := p.PollOnce(ctx, "t-1")

	require.NoError(t, err)
	assert.Nil(t, delta, "rate-limited polls must not produce a delta")
	store.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
}

func TestPoller_PollOnce_RateLimitedNothingCached(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{}
	cache := &MockSnapshotCache{}

	provider.On("Query", ctx, "t-1").Return(nil, ErrRateLimited)
	cache.On("Get", ctx, "t-1").Return(nil, nil)

	p := newTestPoller(provider, &MockStore{}, cache, &MockEffects{}, &recordingNotifier{}, Options{})
	_, err := p.PollOnce(ctx, "t-1")

	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestPoller_PollOnce_ProviderError(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{}

	provider.On("Query", ctx, "t-1").Return(nil, errors.New("upstream 500"))

	p := newTestPoller(provider, &MockStore{}, &MockSnapshotCache{}, &MockEffects{}, &recordingNotifier{}, Options{})
	_, err := p.PollOnce(ctx, "t-1")

	assert.Error(t, err)
}

func TestPoller_PollUntilTerminal_SuccessFinalizesOnce(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	effects := &MockEffects{}
	notifier := &recordingNotifier{}

	raw := rawWithStatus("t-1", "SUCCESS",
		normalizer.RawTrack{Prompt: "text", AudioURL: "https://cdn/track1.mp3"},
		normalizer.RawTrack{StreamAudioURL: "https://cdn/track2.mp3"},
	)
	provider.On("Query", mock.Anything, "t-1").Return(raw, nil)
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Delete", mock.Anything, "t-1").Return(nil)
	effects.On("Finalize", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, effects, notifier, Options{Interval: time.Millisecond, MaxAttempts: 5})
	p.PollUntilTerminal(context.Background(), "t-1")

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventComplete, events[0].Type)
	assert.Equal(t, genstatus.Success, events[0].Status)
	require.NotNil(t, events[0].Data)
	assert.Equal(t, "https://cdn/track2.mp3", events[0].Data.SecondMusicURL)

	effects.AssertNumberOfCalls(t, "Finalize", 1)
	cache.AssertCalled(t, "Delete", mock.Anything, "t-1")
}

func TestPoller_PollUntilTerminal_FailureStopsWithoutFinalize(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	effects := &MockEffects{}
	notifier := &recordingNotifier{}

	provider.On("Query", mock.Anything, "t-1").Return(rawWithStatus("t-1", "GENERATE_AUDIO_FAILED"), nil)
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, effects, notifier, Options{Interval: time.Millisecond, MaxAttempts: 5})
	p.PollUntilTerminal(context.Background(), "t-1")

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventFailed, events[0].Type)
	assert.Equal(t, genstatus.GenerateAudioFailed, events[0].Status)
	effects.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
}

func TestPoller_PollUntilTerminal_TimeoutIsNotFailure(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	effects := &MockEffects{}
	notifier := &recordingNotifier{}

	pending := &normalizer.Snapshot{TaskID: "t-1", Status: genstatus.Pending}
	provider.On("Query", mock.Anything, "t-1").Return(rawWithStatus("t-1", "PENDING"), nil)
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil).Once()
	store.On("GetSnapshot", mock.Anything, "t-1").Return(pending, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, effects, notifier, Options{Interval: time.Millisecond, MaxAttempts: 3})
	p.PollUntilTerminal(context.Background(), "t-1")

	events := notifier.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventTimeout, last.Type)
	assert.Equal(t, "generation is taking too long", last.Message)
	for _, ev := range events {
		assert.NotEqual(t, stream.EventFailed, ev.Type, "exhaustion must never surface as a failure")
	}
	effects.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
}

func TestPoller_PollUntilTerminal_TextTriggersCoverHook(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	effects := &MockEffects{}
	notifier := &recordingNotifier{}

	textRaw := rawWithStatus("t-1", "TEXT_SUCCESS", normalizer.RawTrack{Prompt: "Happy Birthday Olena"})
	successRaw := rawWithStatus("t-1", "SUCCESS", normalizer.RawTrack{Prompt: "Happy Birthday Olena", AudioURL: "https://cdn/track1.mp3"})
	provider.On("Query", mock.Anything, "t-1").Return(textRaw, nil).Once()
	provider.On("Query", mock.Anything, "t-1").Return(successRaw, nil)

	textSnap := &normalizer.Snapshot{TaskID: "t-1", Status: genstatus.TextSuccess, Text: "Happy Birthday Olena"}
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil).Once()
	store.On("GetSnapshot", mock.Anything, "t-1").Return(textSnap, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Delete", mock.Anything, "t-1").Return(nil)
	effects.On("OnTextReady", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return()
	effects.On("Finalize", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, effects, notifier, Options{Interval: time.Millisecond, MaxAttempts: 5})
	p.PollUntilTerminal(context.Background(), "t-1")

	events := notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, stream.EventStatusUpdate, events[0].Type)
	assert.Equal(t, genstatus.TextSuccess, events[0].Status)
	assert.Equal(t, stream.EventComplete, events[1].Type)

	effects.AssertNumberOfCalls(t, "OnTextReady", 1)
	effects.AssertNumberOfCalls(t, "Finalize", 1)
}

func TestPoller_PollUntilTerminal_TransientErrorRetried(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	effects := &MockEffects{}
	notifier := &recordingNotifier{}

	provider.On("Query", mock.Anything, "t-1").Return(nil, errors.New("upstream 503")).Once()
	provider.On("Query", mock.Anything, "t-1").Return(rawWithStatus("t-1", "FAILED"), nil)
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	p := newTestPoller(provider, store, cache, effects, notifier, Options{Interval: time.Millisecond, MaxAttempts: 5})
	p.PollUntilTerminal(context.Background(), "t-1")

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventFailed, events[0].Type)
	provider.AssertNumberOfCalls(t, "Query", 2)
}

func TestPoller_PollUntilTerminal_CancelStopsLoop(t *testing.T) {
	provider := &MockProvider{}
	store := &MockStore{}
	cache := &MockSnapshotCache{}
	notifier := &recordingNotifier{}

	provider.On("Query", mock.Anything, "t-1").Return(rawWithStatus("t-1", "PENDING"), nil)
	store.On("GetSnapshot", mock.Anything, "t-1").Return(nil, nil).Once()
	store.On("GetSnapshot", mock.Anything, "t-1").Return(&normalizer.Snapshot{TaskID: "t-1", Status: genstatus.Pending}, nil)
	store.On("SaveSnapshot", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("*normalizer.Snapshot")).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	p := newTestPoller(provider, store, cache, &MockEffects{}, notifier, Options{Interval: 5 * time.Millisecond, MaxAttempts: 1000})
	p.PollUntilTerminal(ctx, "t-1")

	// no timeout event on cancellation; the loop just stops
	for _, ev := range notifier.all() {
		assert.NotEqual(t, stream.EventTimeout, ev.Type)
	}
}
