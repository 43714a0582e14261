package joinrequest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"go.uber.org/zap"
)

// JoinRequestUseCase is the membership ledger. It performs no authorization;
// callers decide who may approve, reject or read.
type JoinRequestUseCase interface {
	// RequestJoin records a pending request against the room with the given
	// code and returns without waiting for the host.
	RequestJoin(ctx context.Context, code, userID string) (*model.JoinRequest, error)
	// Approve is idempotent on already approved requests.
	Approve(ctx context.Context, requestID string) (*model.JoinRequest, error)
	// Reject deletes the request. A missing request is not an error.
	Reject(ctx context.Context, requestID string) (removed bool, err error)
	// Leave deletes the user's request in the room, pending or approved.
	Leave(ctx context.Context, roomID, userID string) (removed bool, err error)
	Get(ctx context.Context, requestID string) (*model.JoinRequest, error)
	ListPending(ctx context.Context, roomID string) ([]model.JoinRequest, error)
	ListApproved(ctx context.Context, roomID string) ([]model.JoinRequest, error)
}

type joinRequestUseCase struct {
	rooms        repository.RoomRepository
	joinRequests repository.JoinRequestRepository
	metrics      metrics.Manager
	logger       *logger.Logger
}

func NewJoinRequestUseCase(
	rooms repository.RoomRepository,
	joinRequests repository.JoinRequestRepository,
	metricsManager metrics.Manager,
	logger *logger.Logger,
) JoinRequestUseCase {
	if metricsManager == nil {
		metricsManager = metrics.NewNopManager()
	}
	return &joinRequestUseCase{
		rooms:        rooms,
		joinRequests: joinRequests,
		metrics:      metricsManager,
		logger:       logger,
	}
}

func (uc *joinRequestUseCase) RequestJoin(ctx context.Context, code, userID string) (*model.JoinRequest, error) {
	if !model.IsValidRoomCode(code) {
		return nil, apperror.ErrMalformedRoomCode
	}
	if userID == "" {
		return nil, apperror.New(apperror.Validation, "user id cannot be empty")
	}

	room, err := uc.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	request := &model.JoinRequest{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		UserID:    userID,
		Status:    model.JoinRequestPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.joinRequests.Create(ctx, request); err != nil {
		if apperror.IsKind(err, apperror.Conflict) {
			uc.logger.Info("duplicate join request",
				zap.String("roomID", room.ID),
				zap.String("userID", userID))
		} else {
			uc.logger.Error("failed to create join request", zap.Error(err), zap.String("roomID", room.ID))
		}
		return nil, err
	}

	uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "request.create")
	uc.logger.Info("join requested",
		zap.String("requestID", request.ID),
		zap.String("roomID", room.ID),
		zap.String("userID", userID))
	return request, nil
}

func (uc *joinRequestUseCase) Approve(ctx context.Context, requestID string) (*model.JoinRequest, error) {
	request, err := uc.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.IsApproved() {
		return request, nil
	}

	approved, err := uc.joinRequests.UpdateStatus(ctx, requestID, model.JoinRequestApproved)
	if err != nil {
		if !apperror.IsKind(err, apperror.NotFound) {
			uc.logger.Error("failed to approve join request", zap.Error(err), zap.String("requestID", requestID))
		}
		return nil, err
	}

	uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "request.approve")
	uc.logger.Info("join request approved",
		zap.String("requestID", requestID),
		zap.String("roomID", approved.RoomID),
		zap.String("userID", approved.UserID))
	return approved, nil
}

func (uc *joinRequestUseCase) Reject(ctx context.Context, requestID string) (bool, error) {
	if requestID == "" {
		return false, apperror.New(apperror.Validation, "request id cannot be empty")
	}

	removed, err := uc.joinRequests.Delete(ctx, requestID)
	if err != nil {
		uc.logger.Error("failed to reject join request", zap.Error(err), zap.String("requestID", requestID))
		return false, err
	}

	if removed {
		uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "request.reject")
		uc.logger.Info("join request rejected", zap.String("requestID", requestID))
	}
	return removed, nil
}

func (uc *joinRequestUseCase) Leave(ctx context.Context, roomID, userID string) (bool, error) {
	if roomID == "" || userID == "" {
		return false, apperror.New(apperror.Validation, "room id and user id are required")
	}

	removed, err := uc.joinRequests.DeleteByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		uc.logger.Error("failed to leave room", zap.Error(err), zap.String("roomID", roomID), zap.String("userID", userID))
		return false, err
	}

	if removed {
		uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "request.leave")
		uc.logger.Info("user left room", zap.String("roomID", roomID), zap.String("userID", userID))
	}
	return removed, nil
}

func (uc *joinRequestUseCase) Get(ctx context.Context, requestID string) (*model.JoinRequest, error) {
	if requestID == "" {
		return nil, apperror.New(apperror.Validation, "request id cannot be empty")
	}
	return uc.joinRequests.GetByID(ctx, requestID)
}

func (uc *joinRequestUseCase) ListPending(ctx context.Context, roomID string) ([]model.JoinRequest, error) {
	return uc.joinRequests.ListByRoomAndStatus(ctx, roomID, model.JoinRequestPending)
}

func (uc *joinRequestUseCase) ListApproved(ctx context.Context, roomID string) ([]model.JoinRequest, error) {
	return uc.joinRequests.ListByRoomAndStatus(ctx, roomID, model.JoinRequestApproved)
}
