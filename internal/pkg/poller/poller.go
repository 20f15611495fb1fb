// Package poller owns the authoritative polling cadence against the music
// provider. One loop per in-flight task, sequential within a task, bounded
// globally by a shared RateLimiter.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/internal/pkg/stream"
	"github.com/spivanka/spivanka/pkg/genstatus"
	"go.uber.org/zap"
)

// ErrRateLimited is returned by Provider implementations when the provider
// rejects a query for quota reasons. The poller serves the last good cached
// snapshot instead of failing the poll.
var ErrRateLimited = errors.New("provider rate limited")

// ErrTaskNotFound is returned by Provider implementations when the provider
// does not know the task id.
var ErrTaskNotFound = errors.New("task not found at provider")

// Provider is the music-provider query boundary.
type Provider interface {
	Query(ctx context.Context, taskID string) (*normalizer.RawTask, error)
}

// Store is the authoritative status store. GetSnapshot returns (nil, nil)
// when the task is unknown.
type Store interface {
	GetSnapshot(ctx context.Context, taskID string) (*normalizer.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *normalizer.Snapshot) error
}

// SnapshotCache holds the last-known-good snapshot per task (served on
// provider rate limits) plus the ephemeral mirror dropped after finalize.
type SnapshotCache interface {
	Get(ctx context.Context, taskID string) (*normalizer.Snapshot, error)
	Set(ctx context.Context, snap *normalizer.Snapshot) error
	Delete(ctx context.Context, taskID string) error
}

// Effects hosts the side effects the polling loop triggers. Finalize must be
// idempotent per task id; the poller may call it on a replayed terminal poll.
// OnTextReady fires when a delta carries TEXT_SUCCESS (premium cover-art
// trigger lives behind it); implementations decide whether anything happens.
type Effects interface {
	OnTextReady(ctx context.Context, snap *normalizer.Snapshot)
	Finalize(ctx context.Context, snap *normalizer.Snapshot) error
}

// Notifier fans deltas out to live subscribers.
type Notifier interface {
	Publish(e stream.Event)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

type Poller struct {
	provider Provider
	store    Store
	cache    SnapshotCache
	limiter  *RateLimiter
	notifier Notifier
	effects  Effects
	opts     Options
	log      *zap.Logger
}

func New(provider Provider, store Store, cache SnapshotCache, limiter *RateLimiter,
	notifier Notifier, effects Effects, opts Options, log *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 60
	}
	return &Poller{
		provider: provider,
		store:    store,
		cache:    cache,
		limiter:  limiter,
		notifier: notifier,
		effects:  effects,
		opts:     opts,
		log:      log,
	}
}

// PollOnce issues one provider query, normalizes the result and persists it
// if it differs from the stored state. Returns the merged snapshot as the
// delta, or nil when nothing changed. A provider rate limit is not an error
// when a cached snapshot exists: the call reports no delta, with no store
// write and no event, and the caller keeps its last known state.
func (p *Poller) PollOnce(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := p.provider.Query(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			cached, cerr := p.cache.Get(ctx, taskID)
			if cerr != nil || cached == nil {
				return nil, err
			}
			p.log.Sugar().Debugw("provider rate limited, serving cached snapshot", "taskId", taskID)
			return nil, nil
		}
		return nil, err
	}

	next, err := normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	next.TaskID = taskID

	prev, err := p.store.GetSnapshot(ctx, taskID)
	if err != nil {
		return nil, err
	}

	merged := normalizer.Merge(prev, next)
	if merged.Equal(prev) {
		return nil, nil
	}

	if err := p.store.SaveSnapshot(ctx, merged); err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, merged); err != nil {
		p.log.Sugar().Warnw("snapshot cache write failed", "taskId", taskID, "err", err)
	}

	return merged, nil
}

// PollUntilTerminal drives the polling loop for one task until a terminal
// status is stored, the attempt budget is exhausted, or ctx is cancelled.
// Exhaustion is reported to listeners as a distinct timeout event, never as
// a failure. Intended to run on its own goroutine, one per generation.
func (p *Poller) PollUntilTerminal(ctx context.Context, taskID string) {
	log := p.log.Sugar().With("taskId", taskID)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		delta, err := p.PollOnce(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				log.Infow("polling cancelled", "attempt", attempt)
				return
			}
			// transient: retried on the next scheduled attempt
			log.Warnw("poll attempt failed", "attempt", attempt, "err", err)
		}

		if delta != nil {
			p.emit(ctx, delta)
			if delta.Status.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			log.Infow("polling cancelled", "attempt", attempt)
			return
		case <-ticker.C:
		}
	}

	log.Warnw("polling attempts exhausted", "maxAttempts", p.opts.MaxAttempts)
	p.notifier.Publish(stream.Event{
		Type:    stream.EventTimeout,
		TaskID:  taskID,
		Message: "generation is taking too long",
	})
}

// emit publishes the delta and, on terminal SUCCESS, runs the finalize side
// effect before notifying listeners so a client reacting to the terminal
// event already observes the durable record.
func (p *Poller) emit(ctx context.Context, delta *normalizer.Snapshot) {
	switch {
	case delta.Status == genstatus.Success:
		if err := p.effects.Finalize(ctx, delta); err != nil {
			p.log.Sugar().Errorw("finalize failed", "taskId", delta.TaskID, "err", err)
		}
		if err := p.cache.Delete(ctx, delta.TaskID); err != nil {
			p.log.Sugar().Warnw("snapshot cache drop failed", "taskId", delta.TaskID, "err", err)
		}
		p.notifier.Publish(stream.Event{
			Type:   stream.EventComplete,
			TaskID: delta.TaskID,
			Status: delta.Status,
			Data:   delta.Clone(),
		})

	case delta.Status.Terminal():
		p.notifier.Publish(stream.Event{
			Type:   stream.EventFailed,
			TaskID: delta.TaskID,
			Status: delta.Status,
			Data:   delta.Clone(),
		})

	default:
		if delta.Status == genstatus.TextSuccess {
			p.effects.OnTextReady(ctx, delta)
		}
		p.notifier.Publish(stream.Event{
			Type:   stream.EventStatusUpdate,
			TaskID: delta.TaskID,
			Status: delta.Status,
			Data:   delta.Clone(),
		})
	}
}
