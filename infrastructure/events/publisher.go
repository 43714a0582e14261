package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.uber.org/zap"
)

// EventPublisher publishes lobby events to a sink. Publishing is best
// effort: failures are logged and never fail the action that caused them.
type EventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

func NewEventPublisher(sink Sink, log *logger.Logger) *EventPublisher {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventPublisher{sink: sink, logger: log}
}

// Publish serializes and sends an event.
func (ep *EventPublisher) Publish(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := ep.sink.Send(ctx, event.Type, eventJSON); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

func (ep *EventPublisher) publishQuietly(ctx context.Context, event *Event) {
	if err := ep.Publish(ctx, event); err != nil {
		ep.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("roomID", event.RoomID),
			zap.Error(err))
	}
}

func (ep *EventPublisher) PublishRoomCreated(ctx context.Context, roomID, hostID, code string) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventRoomCreated,
		UserID: hostID,
		RoomID: roomID,
		Data:   map[string]any{"code": code},
	})
}

func (ep *EventPublisher) PublishRoomDeleted(ctx context.Context, roomID, hostID string, removedRequests int64) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventRoomDeleted,
		UserID: hostID,
		RoomID: roomID,
		Data:   map[string]any{"removed_requests": removedRequests},
	})
}

func (ep *EventPublisher) PublishJoinRequested(ctx context.Context, roomID, userID, requestID string) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventJoinRequested,
		UserID: userID,
		RoomID: roomID,
		Data:   map[string]any{"request_id": requestID},
	})
}

func (ep *EventPublisher) PublishRequestApproved(ctx context.Context, roomID, hostID, requestID, requesterID string) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventRequestApproved,
		UserID: hostID,
		RoomID: roomID,
		Data:   map[string]any{"request_id": requestID, "requester_id": requesterID},
	})
}

func (ep *EventPublisher) PublishRequestRejected(ctx context.Context, roomID, hostID, requestID string) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventRequestRejected,
		UserID: hostID,
		RoomID: roomID,
		Data:   map[string]any{"request_id": requestID},
	})
}

func (ep *EventPublisher) PublishMemberLeft(ctx context.Context, roomID, userID string) {
	ep.publishQuietly(ctx, &Event{
		Type:   EventMemberLeft,
		UserID: userID,
		RoomID: roomID,
	})
}

func (ep *EventPublisher) Close() error {
	return ep.sink.Close()
}
