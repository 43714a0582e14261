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
	"gorm.io/gorm/clause"
)

type joinRequestRepository struct {
	*BaseRepository[model.JoinRequest]
}

func NewJoinRequestRepository(
	db *gorm.DB,
	log *logger.Logger,
	tracer trace.Tracer,
	publisher repository.ChangePublisher,
) repository.JoinRequestRepository {
	return &joinRequestRepository{
		BaseRepository: NewBaseRepository[model.JoinRequest](db, log, tracer, publisher),
	}
}

func (r *joinRequestRepository) Create(ctx context.Context, request *model.JoinRequest) error {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("join_request.id", request.ID),
		attribute.String("room.id", request.RoomID),
		attribute.String("user.id", request.UserID),
	)

	if err := r.database.WithContext(ctx).Omit(clause.Associations).Create(request).Error; err != nil {
		switch {
		case stderrors.Is(err, gorm.ErrDuplicatedKey):
			span.SetAttributes(attribute.Bool("join_request.duplicate", true))
			span.SetStatus(codes.Error, "duplicate join request")
			return apperror.ErrDuplicateRequest
		case stderrors.Is(err, gorm.ErrForeignKeyViolated):
			// the room was deleted between lookup and insert
			span.SetStatus(codes.Error, "room not found")
			return apperror.ErrRoomNotFound
		}
		recordSpanError(span, err, "failed to create join request")
		return translate(err, nil)
	}

	r.notify(ctx, repository.ChangeEvent{
		RoomID: request.RoomID,
		Table:  repository.TableJoinRequests,
		Op:     repository.ChangeInsert,
		RowID:  request.ID,
	})

	span.SetStatus(codes.Ok, "join request created")
	return nil
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("join_request.id", id))

	request, err := r.findOne(ctx, apperror.ErrJoinRequestNotFound, "id = ?", id)
	if err != nil {
		span.SetAttributes(attribute.Bool("join_request.found", false))
		if !apperror.IsKind(err, apperror.NotFound) {
			recordSpanError(span, err, "failed to get join request")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("join_request.found", true))
	return request, nil
}

func (r *joinRequestRepository) UpdateStatus(ctx context.Context, id string, status model.JoinRequestStatus) (*model.JoinRequest, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("join_request.id", id),
		attribute.String("join_request.status", string(status)),
	)

	var updated []model.JoinRequest
	result := r.database.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		recordSpanError(span, result.Error, "failed to update join request")
		return nil, translate(result.Error, nil)
	}
	if result.RowsAffected == 0 || len(updated) == 0 {
		span.SetStatus(codes.Error, "join request not found")
		return nil, apperror.ErrJoinRequestNotFound
	}

	request := updated[0]
	r.notify(ctx, repository.ChangeEvent{
		RoomID: request.RoomID,
		Table:  repository.TableJoinRequests,
		Op:     repository.ChangeUpdate,
		RowID:  request.ID,
	})

	span.SetStatus(codes.Ok, "join request updated")
	return &request, nil
}

func (r *joinRequestRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("join_request.id", id))

	return r.deleteWhere(ctx, span, "id = ?", id)
}

func (r *joinRequestRepository) DeleteByRoomAndUser(ctx context.Context, roomID, userID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.DeleteByRoomAndUser")
	defer span.End()

	span.SetAttributes(
		attribute.String("room.id", roomID),
		attribute.String("user.id", userID),
	)

	return r.deleteWhere(ctx, span, "room_id = ? AND user_id = ?", roomID, userID)
}

func (r *joinRequestRepository) deleteWhere(ctx context.Context, span trace.Span, query string, args ...any) (bool, error) {
	var deleted []model.JoinRequest
	result := r.database.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where(query, args...).
		Delete(&deleted)
	if result.Error != nil {
		recordSpanError(span, result.Error, "failed to delete join request")
		return false, translate(result.Error, nil)
	}

	span.SetAttributes(attribute.Int64("join_request.deleted", result.RowsAffected))
	for _, request := range deleted {
		r.notify(ctx, repository.ChangeEvent{
			RoomID: request.RoomID,
			Table:  repository.TableJoinRequests,
			Op:     repository.ChangeDelete,
			RowID:  request.ID,
		})
	}

	return result.RowsAffected > 0, nil
}

func (r *joinRequestRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.DeleteByRoom")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", roomID))

	result := r.database.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&model.JoinRequest{})
	if result.Error != nil {
		recordSpanError(span, result.Error, "failed to delete room join requests")
		return 0, translate(result.Error, nil)
	}

	if result.RowsAffected > 0 {
		r.notify(ctx, repository.ChangeEvent{
			RoomID: roomID,
			Table:  repository.TableJoinRequests,
			Op:     repository.ChangeDelete,
		})
	}

	span.SetAttributes(attribute.Int64("join_request.deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

func (r *joinRequestRepository) ListByRoomAndStatus(ctx context.Context, roomID string, status model.JoinRequestStatus) ([]model.JoinRequest, error) {
	ctx, span := r.tracer.Start(ctx, "joinRequestRepository.ListByRoomAndStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("room.id", roomID),
		attribute.String("join_request.status", string(status)),
	)

	requests := []model.JoinRequest{}
	err := r.database.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, status).
		Order("created_at ASC").
		Order("id ASC").
		Find(&requests).
		Error
	if err != nil {
		recordSpanError(span, err, "failed to list join requests")
		return nil, translate(err, nil)
	}

	span.SetAttributes(attribute.Int("join_request.count", len(requests)))
	return requests, nil
}
