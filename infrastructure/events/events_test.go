package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannel = "lobby:events"

type recordingAuditRepo struct {
	logs chan model.AuditLog
}

func (r *recordingAuditRepo) CreateAuditLog(_ context.Context, a model.AuditLog) (model.AuditLog, error) {
	r.logs <- a
	return a, nil
}

type failingSink struct{}

func (failingSink) Send(context.Context, EventType, []byte) error { return errors.New("down") }
func (failingSink) Close() error                                  { return nil }

type capturingSink struct {
	types    []EventType
	payloads [][]byte
}

func (s *capturingSink) Send(_ context.Context, t EventType, payload []byte) error {
	s.types = append(s.types, t)
	s.payloads = append(s.payloads, payload)
	return nil
}
func (s *capturingSink) Close() error { return nil }

func TestEventPublisher_FillsIDAndTimestamp(t *testing.T) {
	sink := &capturingSink{}
	ep := NewEventPublisher(sink, logger.NewNop())

	ep.PublishJoinRequested(context.Background(), "room-1", "user-1", "req-1")

	require.Len(t, sink.payloads, 1)
	assert.Equal(t, EventJoinRequested, sink.types[0])

	var event Event
	require.NoError(t, json.Unmarshal(sink.payloads[0], &event))
	assert.Contains(t, event.ID, "evt_")
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "room-1", event.RoomID)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, "req-1", event.Data["request_id"])
}

func TestEventPublisher_SinkFailureIsSwallowed(t *testing.T) {
	ep := NewEventPublisher(failingSink{}, logger.NewNop())

	assert.NotPanics(t, func() {
		ep.PublishMemberLeft(context.Background(), "room-1", "user-1")
	})
	assert.Error(t, ep.Publish(context.Background(), &Event{Type: EventMemberLeft}))
}

func TestEventConsumer_PersistsAuditLogs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &recordingAuditRepo{logs: make(chan model.AuditLog, 4)}
	consumer := NewEventConsumer(client, testChannel, logger.NewNop())
	consumer.RegisterAuditHandlers(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(testChannel)[testChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	ep := NewEventPublisher(NewRedisSink(client, testChannel), logger.NewNop())
	ep.PublishRoomCreated(ctx, "room-1", "host-1", "ABC123")

	select {
	case log := <-repo.logs:
		assert.Equal(t, string(EventRoomCreated), log.EventType)
		assert.Equal(t, "host-1", log.UserID)
		assert.True(t, log.RoomID.Valid)
		assert.Equal(t, "room-1", log.RoomID.String)
		assert.JSONEq(t, `{"code":"ABC123"}`, string(log.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not written")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestEventConsumer_IgnoresUnknownAndMalformed(t *testing.T) {
	consumer := NewEventConsumer(nil, testChannel, logger.NewNop())

	assert.Error(t, consumer.process(context.Background(), []byte("{")))
	assert.NoError(t, consumer.process(context.Background(), []byte(`{"type":"something.else"}`)))
}
