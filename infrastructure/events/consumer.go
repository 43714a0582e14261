package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventHandler is a function that handles a specific event type
type EventHandler func(ctx context.Context, event *Event) error

// EventConsumer reads events from the Redis channel and dispatches them by type.
type EventConsumer struct {
	client   *redis.Client
	channel  string
	logger   *logger.Logger
	handlers map[EventType]EventHandler

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventConsumer(client *redis.Client, channel string, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		client:   client,
		channel:  channel,
		logger:   log,
		handlers: make(map[EventType]EventHandler),
	}
}

// RegisterHandler registers a handler for a specific event type
func (ec *EventConsumer) RegisterHandler(eventType EventType, handler EventHandler) {
	ec.handlers[eventType] = handler
}

// RegisterAuditHandlers stores every known event type in the audit log.
func (ec *EventConsumer) RegisterAuditHandlers(repo repository.AuditLogRepository) {
	handler := AuditHandler(repo)
	for _, t := range []EventType{
		EventRoomCreated,
		EventRoomDeleted,
		EventJoinRequested,
		EventRequestApproved,
		EventRequestRejected,
		EventMemberLeft,
	} {
		ec.RegisterHandler(t, handler)
	}
}

// Start subscribes and blocks, dispatching events until ctx is done or Stop
// is called.
func (ec *EventConsumer) Start(ctx context.Context) error {
	pubsub := ec.client.Subscribe(ctx, ec.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", ec.channel, err)
	}

	ec.mu.Lock()
	ec.pubsub = pubsub
	ec.mu.Unlock()

	ec.logger.Info("Event consumer started", zap.String("channel", ec.channel))
	defer ec.logger.Info("Event consumer stopped")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			ec.Stop()
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := ec.process(ctx, []byte(msg.Payload)); err != nil {
				ec.logger.Error("Error processing event", zap.Error(err))
			}
		}
	}
}

func (ec *EventConsumer) Stop() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.pubsub != nil {
		_ = ec.pubsub.Close()
		ec.pubsub = nil
	}
}

func (ec *EventConsumer) process(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	handler, exists := ec.handlers[event.Type]
	if !exists {
		ec.logger.Debug("No handler registered for event type", zap.String("type", string(event.Type)))
		return nil
	}

	if err := handler(ctx, &event); err != nil {
		return fmt.Errorf("handler failed for event %s: %w", event.Type, err)
	}
	return nil
}

// AuditHandler writes the event into the audit log.
func AuditHandler(repo repository.AuditLogRepository) EventHandler {
	return func(ctx context.Context, event *Event) error {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return err
		}
		if event.Data == nil {
			payload = []byte("{}")
		}

		_, err = repo.CreateAuditLog(ctx, model.AuditLog{
			CreatedAt: event.Timestamp,
			EventID:   event.ID,
			EventType: string(event.Type),
			UserID:    event.UserID,
			RoomID:    sql.NullString{String: event.RoomID, Valid: event.RoomID != ""},
			Payload:   payload,
		})
		return err
	}
}
