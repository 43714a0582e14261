package repository

import (
	"context"
	stderrors "errors"

	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type roomRepository struct {
	*BaseRepository[model.Room]
}

func NewRoomRepository(
	db *gorm.DB,
	log *logger.Logger,
	tracer trace.Tracer,
	publisher repository.ChangePublisher,
) repository.RoomRepository {
	return &roomRepository{
		BaseRepository: NewBaseRepository[model.Room](db, log, tracer, publisher),
	}
}

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, span := r.tracer.Start(ctx, "roomRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("room.id", room.ID),
		attribute.String("room.code", room.Code),
		attribute.String("room.host_id", room.HostID),
	)

	if err := r.database.WithContext(ctx).Create(room).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetAttributes(attribute.Bool("room.code_taken", true))
			span.SetStatus(codes.Error, "room code taken")
			return apperror.ErrRoomCodeTaken
		}
		recordSpanError(span, err, "failed to create room")
		return translate(err, nil)
	}

	r.notify(ctx, repository.ChangeEvent{
		RoomID: room.ID,
		Table:  repository.TableRooms,
		Op:     repository.ChangeInsert,
		RowID:  room.ID,
	})

	span.SetStatus(codes.Ok, "room created")
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", id))

	room, err := r.findOne(ctx, apperror.ErrRoomNotFound, "id = ?", id)
	if err != nil {
		span.SetAttributes(attribute.Bool("room.found", false))
		if !apperror.IsKind(err, apperror.NotFound) {
			recordSpanError(span, err, "failed to get room")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("room.found", true))
	return room, nil
}

func (r *roomRepository) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.GetByCode")
	defer span.End()

	span.SetAttributes(attribute.String("room.code", code))

	room, err := r.findOne(ctx, apperror.ErrRoomNotFound, "code = ?", code)
	if err != nil {
		span.SetAttributes(attribute.Bool("room.found", false))
		if !apperror.IsKind(err, apperror.NotFound) {
			recordSpanError(span, err, "failed to get room by code")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("room.found", true))
	return room, nil
}

func (r *roomRepository) ListByHost(ctx context.Context, hostID string) ([]model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.ListByHost")
	defer span.End()

	span.SetAttributes(attribute.String("room.host_id", hostID))

	var rooms []model.Room
	err := r.database.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("created_at DESC").
		Order("id").
		Find(&rooms).
		Error
	if err != nil {
		recordSpanError(span, err, "failed to list rooms")
		return nil, translate(err, nil)
	}

	span.SetAttributes(attribute.Int("rooms.count", len(rooms)))
	return rooms, nil
}

func (r *roomRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "roomRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", id))

	result := r.database.WithContext(ctx).Where("id = ?", id).Delete(&model.Room{})
	if result.Error != nil {
		recordSpanError(span, result.Error, "failed to delete room")
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		span.SetStatus(codes.Error, "room not found")
		return apperror.ErrRoomNotFound
	}

	r.notify(ctx, repository.ChangeEvent{
		RoomID: id,
		Table:  repository.TableRooms,
		Op:     repository.ChangeDelete,
		RowID:  id,
	})

	span.SetStatus(codes.Ok, "room deleted")
	return nil
}
