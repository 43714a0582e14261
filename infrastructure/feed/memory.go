package feed

import (
	"context"
	"sync"

	"github.com/hilthontt/lobby/domain/repository"
)

// MemoryFeed is an in-process ChangeFeed and ChangePublisher. Events are
// delivered to every open subscription of the room without blocking the
// publisher; a full buffer drops the event since a refetch is already queued.
type MemoryFeed struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[string]map[*memorySubscription]struct{}
}

var (
	_ repository.ChangeFeed      = (*MemoryFeed)(nil)
	_ repository.ChangePublisher = (*MemoryFeed)(nil)
)

func NewMemoryFeed(bufferSize int) *MemoryFeed {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &MemoryFeed{
		bufferSize: bufferSize,
		subs:       make(map[string]map[*memorySubscription]struct{}),
	}
}

func (f *MemoryFeed) Publish(_ context.Context, event repository.ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs[event.RoomID] {
		sub.deliver(event)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, roomID string) (repository.FeedSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		feed:   f,
		roomID: roomID,
		events: make(chan repository.ChangeEvent, f.bufferSize),
	}

	f.mu.Lock()
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[*memorySubscription]struct{})
	}
	f.subs[roomID][sub] = struct{}{}
	f.mu.Unlock()

	return sub, nil
}

// Subscribers returns the number of open subscriptions for a room.
func (f *MemoryFeed) Subscribers(roomID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[roomID])
}

func (f *MemoryFeed) remove(sub *memorySubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room := f.subs[sub.roomID]
	delete(room, sub)
	if len(room) == 0 {
		delete(f.subs, sub.roomID)
	}
}

type memorySubscription struct {
	feed   *MemoryFeed
	roomID string
	events chan repository.ChangeEvent

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Events() <-chan repository.ChangeEvent {
	return s.events
}

func (s *memorySubscription) deliver(event repository.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.feed.remove(s)
	return nil
}
