// Package events carries entity deletion events to the components that own
// data derived from the deleted entity, replacing cascade-delete scripts.
package events

import (
	"context"
	"log"
	"sync"
)

// Kind of deleted entity.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
)

// EntityDeleted is published after the deleting transaction commits.
type EntityDeleted struct {
	Kind Kind `json:"kind"`
	ID   int  `json:"id"`

	// QuestionID is the parent question of a deleted answer, or the
	// question itself.
	QuestionID int `json:"question_id"`

	// AnswerIDs lists the answers removed together with a question.
	AnswerIDs []int `json:"answer_ids,omitempty"`

	// Origin identifies the publishing instance.
	Origin string `json:"origin,omitempty"`
}

// Handler reacts to a deletion. Errors are logged by the bus.
type Handler func(ctx context.Context, evt EntityDeleted) error

// Broadcaster forwards local events to other instances.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt EntityDeleted) error
}

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	broadcaster Broadcaster
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn under a name used in logs.
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, fn: fn})
}

// SetBroadcaster enables cross-instance delivery of published events.
func (b *Bus) SetBroadcaster(br Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcaster = br
}

// Publish delivers evt to every local subscriber and then to the
// broadcaster, if any.
func (b *Bus) Publish(ctx context.Context, evt EntityDeleted) {
	b.Deliver(ctx, evt)

	b.mu.RLock()
	br := b.broadcaster
	b.mu.RUnlock()
	if br != nil {
		if err := br.Broadcast(ctx, evt); err != nil {
			log.Printf("⚠️ Broadcast of %s %d failed: %v", evt.Kind, evt.ID, err)
		}
	}
}

// Deliver runs local subscribers only. Used for events received from other
// instances.
func (b *Bus) Deliver(ctx context.Context, evt EntityDeleted) {
	b.mu.RLock()
	subs := append([]namedHandler(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.fn(ctx, evt); err != nil {
			log.Printf("⚠️ %s failed on %s %d deletion: %v", s.name, evt.Kind, evt.ID, err)
		}
	}
}
