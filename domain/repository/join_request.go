package repository

import (
	"context"

	"github.com/hilthontt/lobby/domain/model"
)

// JoinRequestRepository is the ledger store. Create must fail with an
// apperror.Conflict error when the (room, user) pair already has a row.
type JoinRequestRepository interface {
	Create(ctx context.Context, request *model.JoinRequest) error
	GetByID(ctx context.Context, id string) (*model.JoinRequest, error)
	// UpdateStatus returns the row after the update.
	UpdateStatus(ctx context.Context, id string, status model.JoinRequestStatus) (*model.JoinRequest, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByRoomAndUser(ctx context.Context, roomID, userID string) (bool, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
	// ListByRoomAndStatus returns rows ordered oldest first.
	ListByRoomAndStatus(ctx context.Context, roomID string, status model.JoinRequestStatus) ([]model.JoinRequest, error)
}
