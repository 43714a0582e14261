package session

import (
	"context"

	"github.com/hilthontt/lobby/application/membership"
	"github.com/hilthontt/lobby/application/usecases/joinrequest"
	"github.com/hilthontt/lobby/application/usecases/room"
	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/infrastructure/events"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.uber.org/zap"
)

// SessionUseCase is what clients talk to. It resolves the caller's rights
// against the room host and forwards to the registry, the ledger and the
// membership subscriber, none of which authorize on their own.
type SessionUseCase interface {
	CreateRoom(ctx context.Context, name, callerID string) (*model.Room, error)
	ListMyRooms(ctx context.Context, callerID string) ([]model.Room, error)
	GetRoom(ctx context.Context, roomID, callerID string) (*model.Room, error)
	DeleteRoom(ctx context.Context, roomID, callerID string) error

	RequestJoin(ctx context.Context, code, callerID string) (*model.JoinRequest, error)
	ApproveRequest(ctx context.Context, requestID, callerID string) (*model.JoinRequest, error)
	// RejectRequest is a no-op for a request that no longer exists.
	RejectRequest(ctx context.Context, requestID, callerID string) error
	Leave(ctx context.Context, roomID, callerID string) error

	// GetView derives a fresh view on demand.
	GetView(ctx context.Context, roomID, callerID string) (model.MembershipView, error)
	Watch(ctx context.Context, roomID, callerID string, observer membership.Observer) (membership.Unsubscribe, error)
}

type sessionUseCase struct {
	rooms          room.RoomUseCase
	ledger         joinrequest.JoinRequestUseCase
	subscriber     *membership.Subscriber
	eventPublisher *events.EventPublisher
	logger         *logger.Logger
}

func NewSessionUseCase(
	rooms room.RoomUseCase,
	ledger joinrequest.JoinRequestUseCase,
	subscriber *membership.Subscriber,
	eventPublisher *events.EventPublisher,
	logger *logger.Logger,
) SessionUseCase {
	if eventPublisher == nil {
		eventPublisher = events.NewEventPublisher(nil, logger)
	}
	return &sessionUseCase{
		rooms:          rooms,
		ledger:         ledger,
		subscriber:     subscriber,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

func (uc *sessionUseCase) CreateRoom(ctx context.Context, name, callerID string) (*model.Room, error) {
	created, err := uc.rooms.Create(ctx, name, callerID)
	if err != nil {
		return nil, err
	}
	uc.eventPublisher.PublishRoomCreated(ctx, created.ID, callerID, created.Code)
	return created, nil
}

func (uc *sessionUseCase) ListMyRooms(ctx context.Context, callerID string) ([]model.Room, error) {
	return uc.rooms.ListForHost(ctx, callerID)
}

func (uc *sessionUseCase) GetRoom(ctx context.Context, roomID, callerID string) (*model.Room, error) {
	r, _, err := uc.authorizeViewer(ctx, roomID, callerID)
	return r, err
}

func (uc *sessionUseCase) DeleteRoom(ctx context.Context, roomID, callerID string) error {
	removed, err := uc.rooms.Delete(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	uc.eventPublisher.PublishRoomDeleted(ctx, roomID, callerID, removed)
	return nil
}

func (uc *sessionUseCase) RequestJoin(ctx context.Context, code, callerID string) (*model.JoinRequest, error) {
	request, err := uc.ledger.RequestJoin(ctx, code, callerID)
	if err != nil {
		return nil, err
	}
	uc.eventPublisher.PublishJoinRequested(ctx, request.RoomID, callerID, request.ID)
	return request, nil
}

func (uc *sessionUseCase) ApproveRequest(ctx context.Context, requestID, callerID string) (*model.JoinRequest, error) {
	request, err := uc.ledger.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := uc.requireHost(ctx, request.RoomID, callerID); err != nil {
		return nil, err
	}

	approved, err := uc.ledger.Approve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	uc.eventPublisher.PublishRequestApproved(ctx, approved.RoomID, callerID, approved.ID, approved.UserID)
	return approved, nil
}

func (uc *sessionUseCase) RejectRequest(ctx context.Context, requestID, callerID string) error {
	request, err := uc.ledger.Get(ctx, requestID)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			return nil
		}
		return err
	}

	if err := uc.requireHost(ctx, request.RoomID, callerID); err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			// room gone, its requests went with it
			return nil
		}
		return err
	}

	removed, err := uc.ledger.Reject(ctx, requestID)
	if err != nil {
		return err
	}
	if removed {
		uc.eventPublisher.PublishRequestRejected(ctx, request.RoomID, callerID, requestID)
	}
	return nil
}

func (uc *sessionUseCase) Leave(ctx context.Context, roomID, callerID string) error {
	removed, err := uc.ledger.Leave(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if removed {
		uc.eventPublisher.PublishMemberLeft(ctx, roomID, callerID)
	}
	return nil
}

func (uc *sessionUseCase) GetView(ctx context.Context, roomID, callerID string) (model.MembershipView, error) {
	_, view, err := uc.authorizeViewer(ctx, roomID, callerID)
	if err != nil {
		return model.MembershipView{}, err
	}
	if view != nil {
		return *view, nil
	}
	return uc.subscriber.Derive(ctx, roomID)
}

func (uc *sessionUseCase) Watch(ctx context.Context, roomID, callerID string, observer membership.Observer) (membership.Unsubscribe, error) {
	if _, _, err := uc.authorizeViewer(ctx, roomID, callerID); err != nil {
		return nil, err
	}
	return uc.subscriber.Subscribe(ctx, roomID, observer)
}

func (uc *sessionUseCase) requireHost(ctx context.Context, roomID, callerID string) error {
	r, err := uc.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !r.IsHost(callerID) {
		uc.logger.Warn("host-only action attempted by non-host",
			zap.String("roomID", roomID),
			zap.String("userID", callerID),
			zap.String("hostID", r.HostID))
		return apperror.ErrNotRoomHost
	}
	return nil
}

// authorizeViewer admits the host and any user holding a request in the room.
// For non-hosts it returns the view it derived to check participation.
func (uc *sessionUseCase) authorizeViewer(ctx context.Context, roomID, callerID string) (*model.Room, *model.MembershipView, error) {
	r, err := uc.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if r.IsHost(callerID) {
		return r, nil, nil
	}

	view, err := uc.subscriber.Derive(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if !view.Participants().Contains(callerID) {
		uc.logger.Debug("room view denied",
			zap.String("roomID", roomID),
			zap.String("userID", callerID))
		return nil, nil, apperror.New(apperror.Unauthorized, "only the host and requesters can view this room")
	}
	return r, &view, nil
}
