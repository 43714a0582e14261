package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/persistence/database"
	"github.com/hilthontt/lobby/infrastructure/persistence/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, nil))

	err := translate(gorm.ErrRecordNotFound, apperror.ErrRoomNotFound)
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)

	err = translate(gorm.ErrRecordNotFound, nil)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))

	err = translate(gorm.ErrDuplicatedKey, nil)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))

	assert.ErrorIs(t, translate(context.Canceled, nil), context.Canceled)

	cause := errors.New("connection refused")
	err = translate(cause, nil)
	assert.True(t, apperror.IsKind(err, apperror.TransientStore))
	assert.ErrorIs(t, err, cause)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []repository.ChangeEvent
}

func (p *capturePublisher) Publish(_ context.Context, event repository.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) ops() []repository.ChangeOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]repository.ChangeOp, 0, len(p.events))
	for _, e := range p.events {
		ops = append(ops, e.Op)
	}
	return ops
}

// openTestDB connects to the database named by LOBBY_TEST_POSTGRES_DSN.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LOBBY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOBBY_TEST_POSTGRES_DSN not set")
	}

	db, err := database.Open(dsn, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, migration.Up1(db, logger.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func randomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:model.RoomCodeLength])
}

func TestPostgres_RoomLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	publisher := &capturePublisher{}
	tracer := noop.NewTracerProvider().Tracer("test")

	rooms := NewRoomRepository(db, logger.NewNop(), tracer, publisher)
	requests := NewJoinRequestRepository(db, logger.NewNop(), tracer, publisher)

	r := &model.Room{ID: uuid.NewString(), Name: "Movie Night", Code: randomCode(), HostID: "host-" + uuid.NewString()}
	require.NoError(t, rooms.Create(ctx, r))

	dup := &model.Room{ID: uuid.NewString(), Name: "Other", Code: r.Code, HostID: r.HostID}
	assert.ErrorIs(t, rooms.Create(ctx, dup), apperror.ErrRoomCodeTaken)

	byCode, err := rooms.GetByCode(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byCode.ID)

	listed, err := rooms.ListByHost(ctx, r.HostID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	request := &model.JoinRequest{ID: uuid.NewString(), RoomID: r.ID, UserID: "userB", Status: model.JoinRequestPending}
	require.NoError(t, requests.Create(ctx, request))

	again := &model.JoinRequest{ID: uuid.NewString(), RoomID: r.ID, UserID: "userB", Status: model.JoinRequestPending}
	assert.ErrorIs(t, requests.Create(ctx, again), apperror.ErrDuplicateRequest)

	orphan := &model.JoinRequest{ID: uuid.NewString(), RoomID: uuid.NewString(), UserID: "userB", Status: model.JoinRequestPending}
	assert.ErrorIs(t, requests.Create(ctx, orphan), apperror.ErrRoomNotFound)

	approved, err := requests.UpdateStatus(ctx, request.ID, model.JoinRequestApproved)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())

	members, err := requests.ListByRoomAndStatus(ctx, r.ID, model.JoinRequestApproved)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "userB", members[0].UserID)

	removed, err := requests.DeleteByRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, rooms.Delete(ctx, r.ID))
	assert.ErrorIs(t, rooms.Delete(ctx, r.ID), apperror.ErrRoomNotFound)

	_, err = rooms.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)

	assert.Equal(t, []repository.ChangeOp{
		repository.ChangeInsert,
		repository.ChangeInsert,
		repository.ChangeUpdate,
		repository.ChangeDelete,
		repository.ChangeDelete,
	}, publisher.ops())
}

func TestPostgres_AuditLogIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewAuditLogRepository(db, logger.NewNop(), noop.NewTracerProvider().Tracer("test"))

	entry := model.AuditLog{
		EventID:   "evt_" + uuid.NewString(),
		EventType: "room.created",
		UserID:    "host",
		RoomID:    sql.NullString{String: uuid.NewString(), Valid: true},
		Payload:   []byte(`{"code":"K7X2QP"}`),
	}

	_, err := repo.CreateAuditLog(ctx, entry)
	require.NoError(t, err)
	_, err = repo.CreateAuditLog(ctx, entry)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Where("event_id = ?", entry.EventID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
