// Package stream fans generation deltas out to live subscribers. One producer
// per task id (the poller loop), so delivery order matches production order.
package stream

import (
	"sync"

	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/pkg/genstatus"
)

type EventType string

const (
	EventStatusUpdate EventType = "status_update"
	EventComplete     EventType = "generation_complete"
	EventFailed       EventType = "generation_failed"
	EventTimeout      EventType = "timeout"
	EventError        EventType = "error"
)

// Event is one message on a task's live channel.
type Event struct {
	Type    EventType            `json:"type"`
	TaskID  string               `json:"task_id"`
	Status  genstatus.Status     `json:"status,omitempty"`
	Data    *normalizer.Snapshot `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
}

// Terminal reports whether the server closes the channel after this event.
func (e Event) Terminal() bool {
	return e.Type != EventStatusUpdate
}

// subscriber channels are buffered; a subscriber that falls this far behind
// loses intermediate status_update events but never the terminal one.
const subscriberBuffer = 16

type subscriber struct {
	id int
	ch chan Event
}

// Hub is the per-process subscriber registry.
type Hub struct {
	mu     sync.Mutex
	subs   map[string][]*subscriber
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*subscriber)}
}

// Subscribe registers for a task's events. The returned cancel func is safe
// to call more than once and after the hub has already closed the channel.
func (h *Hub) Subscribe(taskID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{id: h.nextID, ch: make(chan Event, subscriberBuffer)}
	h.subs[taskID] = append(h.subs[taskID], sub)

	cancel := func() { h.remove(taskID, sub.id) }
	return sub.ch, cancel
}

func (h *Hub) remove(taskID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[taskID]
	for i, s := range list {
		if s.id == id {
			h.subs[taskID] = append(list[:i], list[i+1:]...)
			close(s.ch)
			break
		}
	}
	if len(h.subs[taskID]) == 0 {
		delete(h.subs, taskID)
	}
}

// Publish delivers an event to every subscriber of its task. A terminal
// event also closes and drops all subscriber channels for that task.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs[e.TaskID] {
		select {
		case s.ch <- e:
		default:
			// slow subscriber: make room so the newest event still lands
			select {
			case <-s.ch:
			default:
			}
			s.ch <- e
		}
	}

	if e.Terminal() {
		for _, s := range h.subs[e.TaskID] {
			close(s.ch)
		}
		delete(h.subs, e.TaskID)
	}
}

// Subscribers reports the current subscriber count for a task.
func (h *Hub) Subscribers(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}
