package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource scripts the server side of a restore run.
type stubSource struct {
	mu         sync.Mutex
	fetchView  *View
	fetchErr   error
	fetchCalls int

	events      []Event
	listenErr   error
	listenCalls int
	keepOpen    bool          // leave the channel open with no terminal event
	release     chan struct{} // when set, events flow only after it is closed
	gotCtx      context.Context
}

func (s *stubSource) Fetch(ctx context.Context, taskID string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	v := *s.fetchView
	return &v, nil
}

func (s *stubSource) Listen(ctx context.Context, taskID string) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenCalls++
	s.gotCtx = ctx
	if s.listenErr != nil {
		return nil, s.listenErr
	}

	ch := make(chan Event, len(s.events)+1)
	events := s.events
	keepOpen := s.keepOpen
	release := s.release
	go func() {
		if release != nil {
			<-release
		}
		for _, ev := range events {
			ch <- ev
		}
		if !keepOpen {
			close(ch)
		}
	}()
	return ch, nil
}

func (s *stubSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func cacheWith(t *testing.T, v View) *MemoryCache {
	t.Helper()
	c := NewMemoryCache()
	raw, err := sonic.Marshal(v)
	require.NoError(t, err)
	c.Set(v.TaskID, raw)
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRestore_CachedTerminalSkipsNetwork(t *testing.T) {
	cached := View{TaskID: "t-1", Status: genstatus.Success, MusicURL: "https://cdn/track1.mp3"}
	src := &stubSource{}
	r := New(src, cacheWith(t, cached), nil)

	view, listening, err := r.Restore(context.Background(), "t-1")

	require.NoError(t, err)
	assert.False(t, listening)
	assert.Equal(t, cached, view)
	assert.Equal(t, 0, src.fetches(), "settled tasks need no network")
	assert.Equal(t, StateSettled, r.State("t-1"))
}

func TestRestore_ServerWinsOverCache(t *testing.T) {
	cached := View{TaskID: "t-1", Status: genstatus.FirstSuccess, MusicURL: "https://cdn/stream.mp3"}
	server := View{TaskID: "t-1", Status: genstatus.Success,
		MusicURL: "https://cdn/track1.mp3", SecondMusicURL: "https://cdn/track2.mp3"}
	cache := cacheWith(t, cached)
	src := &stubSource{fetchView: &server}
	r := New(src, cache, nil)

	view, listening, err := r.Restore(context.Background(), "t-1")

	require.NoError(t, err)
	assert.False(t, listening)
	assert.Equal(t, genstatus.Success, view.Status)
	assert.Equal(t, "https://cdn/track1.mp3", view.MusicURL)

	// terminal restore clears the ephemeral entry
	_, ok := cache.Get("t-1")
	assert.False(t, ok)
}

func TestRestore_UnknownTask(t *testing.T) {
	src := &stubSource{fetchErr: ErrTaskNotFound}
	r := New(src, NewMemoryCache(), nil)

	_, listening, err := r.Restore(context.Background(), "t-404")

	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.False(t, listening)
	assert.Equal(t, StateUnknown, r.State("t-404"))
}

func TestRestore_CorruptCacheFallsBackToServer(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("t-1", []byte("{not json"))
	server := View{TaskID: "t-1", Status: genstatus.Pending}
	src := &stubSource{fetchView: &server, keepOpen: true}
	r := New(src, cache, nil)
	defer r.Teardown("t-1")

	view, listening, err := r.Restore(context.Background(), "t-1")

	require.NoError(t, err)
	assert.True(t, listening)
	assert.Equal(t, genstatus.Pending, view.Status)
	assert.Equal(t, 1, src.fetches())
}

func TestRestore_IncompleteCacheEntryDiscarded(t *testing.T) {
	// decodes fine but has no task id; must count as a miss
	cache := NewMemoryCache()
	cache.Set("t-1", []byte(`{"status":"SUCCESS"}`))
	server := View{TaskID: "t-1", Status: genstatus.Success}
	src := &stubSource{fetchView: &server}
	r := New(src, cache, nil)

	view, _, err := r.Restore(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, 1, src.fetches())
	assert.Equal(t, "t-1", view.TaskID)
}

func TestRestore_ListensAndAppliesDeltas(t *testing.T) {
	server := View{TaskID: "t-1", Status: genstatus.Pending}
	src := &stubSource{
		fetchView: &server,
		events: []Event{
			{
				Type: EventStatusUpdate, TaskID: "t-1", Status: genstatus.TextSuccess,
				Data: &View{TaskID: "t-1", Status: genstatus.TextSuccess, Text: "Happy Birthday Olena"},
			},
			{
				Type: EventComplete, TaskID: "t-1", Status: genstatus.Success,
				Data: &View{TaskID: "t-1", Status: genstatus.Success, Text: "Happy Birthday Olena",
					MusicURL: "https://cdn/track1.mp3"},
			},
		},
	}
	src.release = make(chan struct{})
	cache := NewMemoryCache()
	r := New(src, cache, nil)

	var mu sync.Mutex
	var seen []View
	view, listening, err := r.Restore(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, listening)
	assert.Equal(t, genstatus.Pending, view.Status)

	r.OnUpdate("t-1", func(v View) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	close(src.release)

	waitFor(t, func() bool { return r.State("t-1") == StateSettled }, "task never settled")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)

	// intermediate view shows the lyric while audio is still empty
	first := seen[0]
	assert.Equal(t, genstatus.TextSuccess, first.Status)
	assert.Equal(t, "Happy Birthday Olena", first.Text)
	assert.Empty(t, first.MusicURL)

	last := seen[len(seen)-1]
	assert.Equal(t, genstatus.Success, last.Status)
	assert.Equal(t, "https://cdn/track1.mp3", last.MusicURL)

	// terminal side effect: ephemeral entry is gone
	_, ok := cache.Get("t-1")
	assert.False(t, ok)
}

func TestRestore_DuplicateDeltaDiscarded(t *testing.T) {
	delta := &View{TaskID: "t-1", Status: genstatus.TextSuccess, Text: "text"}
	src := &stubSource{
		fetchView: &View{TaskID: "t-1", Status: genstatus.Pending},
		events: []Event{
			{Type: EventStatusUpdate, TaskID: "t-1", Status: genstatus.TextSuccess, Data: delta},
			{Type: EventStatusUpdate, TaskID: "t-1", Status: genstatus.TextSuccess, Data: delta},
			{Type: EventComplete, TaskID: "t-1", Status: genstatus.Success,
				Data: &View{TaskID: "t-1", Status: genstatus.Success}},
		},
	}
	src.release = make(chan struct{})
	r := New(src, NewMemoryCache(), nil)

	var mu sync.Mutex
	updates := 0
	_, _, err := r.Restore(context.Background(), "t-1")
	require.NoError(t, err)
	r.OnUpdate("t-1", func(View) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	close(src.release)

	waitFor(t, func() bool { return r.State("t-1") == StateSettled }, "task never settled")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, updates, "replayed identical delta must not fire the callback")
}

func TestRestore_TimeoutKeepsPartialData(t *testing.T) {
	src := &stubSource{
		fetchView: &View{TaskID: "t-1", Status: genstatus.TextSuccess, Text: "text so far"},
		events: []Event{
			{Type: EventTimeout, TaskID: "t-1", Message: "generation is taking too long"},
		},
	}
	r := New(src, NewMemoryCache(), nil)

	_, _, err := r.Restore(context.Background(), "t-1")
	require.NoError(t, err)

	waitFor(t, func() bool { return r.State("t-1") == StateSettled }, "task never settled")

	view, ok := r.CurrentView("t-1")
	require.True(t, ok)
	assert.Equal(t, "text so far", view.Text, "timeout must retain captured data")
	assert.Equal(t, genstatus.TextSuccess, view.Status)
}

func TestRestore_ChannelDropSurfacesError(t *testing.T) {
	src := &stubSource{
		fetchView: &View{TaskID: "t-1", Status: genstatus.Pending},
		// closed immediately with no terminal event
	}
	r := New(src, NewMemoryCache(), nil)

	errCh := make(chan error, 1)
	_, _, err := r.Restore(context.Background(), "t-1")
	require.NoError(t, err)
	r.OnError("t-1", func(e error) { errCh <- e })

	select {
	case e := <-errCh:
		assert.Error(t, e)
	case <-time.After(2 * time.Second):
		t.Fatal("connection error never surfaced")
	}
}

func TestRestore_VerificationFailureKeepsCachedView(t *testing.T) {
	cached := View{TaskID: "t-1", Status: genstatus.FirstSuccess, MusicURL: "https://cdn/stream.mp3"}
	src := &stubSource{fetchErr: errors.New("server unreachable"), keepOpen: true}
	src.listenErr = errors.New("server unreachable")
	r := New(src, cacheWith(t, cached), nil)

	view, listening, err := r.Restore(context.Background(), "t-1")

	// cached provisional view survives a failed verification
	require.NoError(t, err)
	assert.False(t, listening)
	assert.Equal(t, cached.MusicURL, view.MusicURL)
}

func TestTeardown_CancelsListening(t *testing.T) {
	src := &stubSource{
		fetchView: &View{TaskID: "t-1", Status: genstatus.Pending},
		keepOpen:  true,
	}
	r := New(src, NewMemoryCache(), nil)

	_, listening, err := r.Restore(context.Background(), "t-1")
	require.NoError(t, err)
	require.True(t, listening)

	r.Teardown("t-1")

	src.mu.Lock()
	ctx := src.gotCtx
	src.mu.Unlock()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("teardown did not cancel the listen context")
	}

	// idempotent, including for ids never restored
	r.Teardown("t-1")
	r.Teardown("never-seen")
	assert.Equal(t, StateInit, r.State("t-1"))
}
