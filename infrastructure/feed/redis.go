package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "lobby:changes:"

// RedisFeed carries change notifications over Redis pub/sub, one channel per
// room. Repositories publish after a successful write; subscribers receive
// a hint to re-fetch.
type RedisFeed struct {
	client     *redis.Client
	prefix     string
	bufferSize int
	logger     *logger.Logger
}

var (
	_ repository.ChangeFeed      = (*RedisFeed)(nil)
	_ repository.ChangePublisher = (*RedisFeed)(nil)
)

func NewRedisFeed(client *redis.Client, prefix string, bufferSize int, log *logger.Logger) *RedisFeed {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &RedisFeed{
		client:     client,
		prefix:     prefix,
		bufferSize: bufferSize,
		logger:     log,
	}
}

func (f *RedisFeed) Channel(roomID string) string {
	return f.prefix + roomID
}

func (f *RedisFeed) Publish(ctx context.Context, event repository.ChangeEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal change event")
	}

	if err := f.client.Publish(ctx, f.Channel(event.RoomID), payload).Err(); err != nil {
		return errors.Wrapf(err, "publish change for room %s", event.RoomID)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so no change
// published after Subscribe returns can be missed.
func (f *RedisFeed) Subscribe(ctx context.Context, roomID string) (repository.FeedSubscription, error) {
	pubsub := f.client.Subscribe(ctx, f.Channel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "subscribe to room %s", roomID)
	}

	sub := &redisSubscription{
		roomID: roomID,
		pubsub: pubsub,
		events: make(chan repository.ChangeEvent, f.bufferSize),
		logger: f.logger,
		done:   make(chan struct{}),
	}
	go sub.run()

	return sub, nil
}

type redisSubscription struct {
	roomID string
	pubsub *redis.PubSub
	events chan repository.ChangeEvent
	logger *logger.Logger

	once sync.Once
	done chan struct{}
}

func (s *redisSubscription) Events() <-chan repository.ChangeEvent {
	return s.events
}

func (s *redisSubscription) run() {
	defer close(s.events)

	for msg := range s.pubsub.ChannelWithSubscriptions() {
		var event repository.ChangeEvent

		switch m := msg.(type) {
		case *redis.Subscription:
			// Only seen again after go-redis reconnected and resubscribed.
			if m.Kind != "subscribe" {
				continue
			}
			event = repository.ChangeEvent{RoomID: s.roomID, Op: repository.ChangeResync, At: time.Now().UTC()}
		case *redis.Message:
			if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
				if s.logger != nil {
					s.logger.Warn("undecodable change payload, treating as bare notification",
						zap.String("roomID", s.roomID), zap.Error(err))
				}
				event = repository.ChangeEvent{RoomID: s.roomID, At: time.Now().UTC()}
			}
			if event.RoomID == "" {
				event.RoomID = s.roomID
			}
		default:
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		default:
			// buffer full: a refetch is already pending
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
