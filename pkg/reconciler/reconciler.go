// Package reconciler restores the current view of a generation task from the
// client side. It merges the ephemeral client cache with the server status
// store, keeps the view live over the update channel until a terminal state,
// and clears the cache once a task settles. Server status is authoritative
// whenever the two disagree.
package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"go.uber.org/zap"
)

// ErrTaskNotFound marks a task id unknown to every source. Distinct from a
// failed or timed-out generation.
var ErrTaskNotFound = errors.New("reconciler: task not found")

// View is the reconciled presentation of one task.
type View struct {
	TaskID         string           `json:"task_id"`
	Status         genstatus.Status `json:"status"`
	Text           string           `json:"text,omitempty"`
	MusicURL       string           `json:"music_url,omitempty"`
	SecondMusicURL string           `json:"second_music_url,omitempty"`
	CoverURL       string           `json:"cover_url,omitempty"`
}

// Event mirrors the server's live-channel message format.
type Event struct {
	Type    string           `json:"type"`
	TaskID  string           `json:"task_id"`
	Status  genstatus.Status `json:"status,omitempty"`
	Data    *View            `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

const (
	EventStatusUpdate = "status_update"
	EventComplete     = "generation_complete"
	EventFailed       = "generation_failed"
	EventTimeout      = "timeout"
	EventError        = "error"
)

func (e Event) Terminal() bool { return e.Type != EventStatusUpdate }

// State of the per-task restore machine.
type State string

const (
	StateInit      State = "init"
	StateFetching  State = "fetching"
	StateVerifying State = "verifying"
	StateListening State = "listening"
	StateSettled   State = "settled"
	StateUnknown   State = "unknown"
)

type taskState struct {
	state    State
	view     View
	cancel   context.CancelFunc
	lastErr  error
	onUpdate []func(View)
	onError  []func(error)
}

// Reconciler runs the restore state machine, one instance shared by all task
// ids of a client session.
type Reconciler struct {
	src   Source
	cache Cache
	log   *zap.Logger

	mu    sync.Mutex
	tasks map[string]*taskState
}

func New(src Source, cache Cache, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		src:   src,
		cache: cache,
		log:   log,
		tasks: make(map[string]*taskState),
	}
}

// Restore establishes the single current view for a task id. It returns the
// best-known view, whether a live channel was opened, and an error only for
// unknown task ids or an unreachable server with nothing cached.
func (r *Reconciler) Restore(ctx context.Context, taskID string) (View, bool, error) {
	r.Teardown(taskID)

	ts := &taskState{state: StateInit}
	r.mu.Lock()
	r.tasks[taskID] = ts
	r.mu.Unlock()

	cached, fromCache := r.loadCached(taskID)

	switch {
	case fromCache && cached.Status.Terminal():
		// settled offline, no network needed
		r.setView(taskID, ts, *cached, StateSettled)
		return *cached, false, nil

	case fromCache:
		// provisional adoption, then verify against the server
		r.setView(taskID, ts, *cached, StateVerifying)
		server, err := r.src.Fetch(ctx, taskID)
		switch {
		case errors.Is(err, ErrTaskNotFound):
			// server lost it; the cache entry is all we have
			r.log.Warn("cached task unknown to server", zap.String("task_id", taskID))
		case err != nil:
			// verification races are best-effort; keep the cached view live
			r.log.Warn("status verification failed", zap.String("task_id", taskID), zap.Error(err))
		case server != nil:
			r.setView(taskID, ts, *server, StateVerifying)
			if server.Status.Terminal() {
				return r.settle(taskID, ts, *server), false, nil
			}
		}

	default:
		ts.state = StateFetching
		server, err := r.src.Fetch(ctx, taskID)
		if errors.Is(err, ErrTaskNotFound) {
			ts.state = StateUnknown
			return View{TaskID: taskID}, false, ErrTaskNotFound
		}
		if err != nil {
			ts.state = StateUnknown
			return View{TaskID: taskID}, false, err
		}
		r.setView(taskID, ts, *server, StateFetching)
		if server.Status.Terminal() {
			return r.settle(taskID, ts, *server), false, nil
		}
	}

	listening := r.listen(taskID, ts)
	return r.currentView(ts), listening, nil
}

// OnUpdate registers a callback for further deltas of a task. The callback
// receives the merged view after each applied delta, including the terminal one.
func (r *Reconciler) OnUpdate(taskID string, cb func(View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.tasks[taskID]; ok {
		ts.onUpdate = append(ts.onUpdate, cb)
	}
}

// OnError registers a callback for live-channel connection errors. The
// reconciler does not retry on its own; the caller decides whether to call
// Restore again.
func (r *Reconciler) OnError(taskID string, cb func(error)) {
	r.mu.Lock()
	ts, ok := r.tasks[taskID]
	var replay error
	if ok {
		ts.onError = append(ts.onError, cb)
		replay = ts.lastErr
	}
	r.mu.Unlock()

	// a connection error that happened before registration is replayed so the
	// caller never misses it
	if replay != nil {
		cb(replay)
	}
}

// Teardown closes the task's live channel and forgets its state. Safe to call
// for unknown task ids and more than once.
func (r *Reconciler) Teardown(taskID string) {
	r.mu.Lock()
	ts, ok := r.tasks[taskID]
	if ok {
		delete(r.tasks, taskID)
	}
	r.mu.Unlock()

	if ok && ts.cancel != nil {
		ts.cancel()
	}
}

// State reports the machine state for a task id, StateInit when untracked.
func (r *Reconciler) State(taskID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.tasks[taskID]; ok {
		return ts.state
	}
	return StateInit
}

// CurrentView returns the latest merged view for a tracked task.
func (r *Reconciler) CurrentView(taskID string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.tasks[taskID]
	if !ok {
		return View{}, false
	}
	return ts.view, true
}

// loadCached decodes the cache entry for a task id. Corrupt or incomplete
// entries count as a miss so the caller re-fetches from the server instead of
// failing outright.
func (r *Reconciler) loadCached(taskID string) (*View, bool) {
	raw, ok := r.cache.Get(taskID)
	if !ok {
		return nil, false
	}
	var v View
	if err := sonic.Unmarshal(raw, &v); err != nil {
		r.log.Warn("dropping corrupt cache entry", zap.String("task_id", taskID), zap.Error(err))
		r.cache.Delete(taskID)
		return nil, false
	}
	if _, known := genstatus.Parse(string(v.Status)); !known || v.TaskID == "" {
		r.cache.Delete(taskID)
		return nil, false
	}
	return &v, true
}

func (r *Reconciler) setView(taskID string, ts *taskState, v View, st State) {
	r.mu.Lock()
	ts.view = mergeView(ts.view, v)
	ts.state = st
	merged := ts.view
	r.mu.Unlock()

	if raw, err := sonic.Marshal(merged); err == nil {
		r.cache.Set(taskID, raw)
	}
}

func (r *Reconciler) currentView(ts *taskState) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ts.view
}

func (r *Reconciler) settle(taskID string, ts *taskState, v View) View {
	r.mu.Lock()
	ts.view = mergeView(ts.view, v)
	ts.state = StateSettled
	out := ts.view
	r.mu.Unlock()

	r.cache.Delete(taskID)
	return out
}

func (r *Reconciler) listen(taskID string, ts *taskState) bool {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	ts.cancel = cancel
	ts.state = StateListening
	r.mu.Unlock()

	ch, err := r.src.Listen(ctx, taskID)
	if err != nil {
		cancel()
		r.notifyError(ts, err)
		return false
	}

	go func() {
		defer cancel()
		sawTerminal := false
		for ev := range ch {
			if r.apply(taskID, ts, ev) {
				sawTerminal = true
			}
		}
		if !sawTerminal && ctx.Err() == nil {
			// server dropped the channel before a terminal event; surface it
			// once and leave reconnection to the caller
			r.notifyError(ts, errors.New("reconciler: update channel closed before terminal event"))
		}
	}()
	return true
}

// apply folds one live-channel event into the task view. Returns true for a
// terminal event.
func (r *Reconciler) apply(taskID string, ts *taskState, ev Event) bool {
	r.mu.Lock()
	prev := ts.view
	next := prev
	if ev.Data != nil {
		next = mergeView(prev, *ev.Data)
	} else if ev.Status != "" {
		next.Status = ev.Status
	}

	terminal := ev.Terminal()
	if !terminal && next == prev {
		// duplicate delta, no view change and no callback
		r.mu.Unlock()
		return false
	}

	ts.view = next
	if terminal {
		ts.state = StateSettled
	}
	cbs := make([]func(View), len(ts.onUpdate))
	copy(cbs, ts.onUpdate)
	r.mu.Unlock()

	if terminal {
		r.cache.Delete(taskID)
	} else if raw, err := sonic.Marshal(next); err == nil {
		r.cache.Set(taskID, raw)
	}

	for _, cb := range cbs {
		cb(next)
	}
	if ev.Type == EventTimeout || ev.Type == EventError {
		r.log.Warn("generation did not complete",
			zap.String("task_id", taskID),
			zap.String("event", ev.Type),
			zap.String("message", ev.Message))
	}
	return terminal
}

func (r *Reconciler) notifyError(ts *taskState, err error) {
	r.mu.Lock()
	ts.lastErr = err
	cbs := make([]func(error), len(ts.onError))
	copy(cbs, ts.onError)
	r.mu.Unlock()
	for _, cb := range cbs {
		cb(err)
	}
}

// mergeView applies the status-store merge rules locally: a terminal status
// never regresses and known fields are never cleared by a sparser delta.
func mergeView(prev, next View) View {
	out := prev
	if out.TaskID == "" {
		out.TaskID = next.TaskID
	}

	if next.Status != "" {
		if prev.Status.Terminal() && next.Status != prev.Status {
			// keep the terminal status, still absorb late fields below
		} else {
			out.Status = next.Status
		}
	}

	if next.Text != "" {
		out.Text = next.Text
	}
	if next.MusicURL != "" {
		out.MusicURL = next.MusicURL
	}
	if next.SecondMusicURL != "" {
		out.SecondMusicURL = next.SecondMusicURL
	}
	if next.CoverURL != "" {
		out.CoverURL = next.CoverURL
	}
	return out
}
