package telegram

import (
	"context"
	"sync"

	"github.com/ggonzalez94/bark-bot/internal/model"
)

type queuedEvent struct {
	ev     model.Event
	chatID int64
}

type userQueue struct {
	pending []queuedEvent
	active  bool
}

// sequencer runs process once per event: events for the same user strictly
// in enqueue order, one at a time; events for different users concurrently.
type sequencer struct {
	process func(ctx context.Context, ev model.Event, chatID int64)

	mu     sync.Mutex
	queues map[model.UserID]*userQueue
}

func newSequencer(process func(ctx context.Context, ev model.Event, chatID int64)) *sequencer {
	return &sequencer{
		process: process,
		queues:  make(map[model.UserID]*userQueue),
	}
}

// Enqueue appends the event to the user's queue and starts a drain worker
// if none is running. It never blocks on process.
func (s *sequencer) Enqueue(ctx context.Context, ev model.Event, chatID int64) {
	s.mu.Lock()
	q, ok := s.queues[ev.UserID]
	if !ok {
		q = &userQueue{}
		s.queues[ev.UserID] = q
	}
	q.pending = append(q.pending, queuedEvent{ev: ev, chatID: chatID})
	if !q.active {
		q.active = true
		go s.drain(ctx, q)
	}
	s.mu.Unlock()
}

func (s *sequencer) drain(ctx context.Context, q *userQueue) {
	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			s.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		s.mu.Unlock()

		s.process(ctx, next.ev, next.chatID)
	}
}
