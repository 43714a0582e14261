package repository

import (
	"context"

	"github.com/hilthontt/lobby/domain/model"
)

// RoomRepository stores rooms. Create must reject a duplicate code with an
// apperror.Conflict error instead of overwriting the existing row.
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetByCode(ctx context.Context, code string) (*model.Room, error)
	ListByHost(ctx context.Context, hostID string) ([]model.Room, error)
	Delete(ctx context.Context, id string) error
}
