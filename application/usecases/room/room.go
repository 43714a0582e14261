package room

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	DefaultCodeAttempts = 5
	MaxNameLength       = 120
)

type RoomUseCase interface {
	Create(ctx context.Context, name, hostID string) (*model.Room, error)
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetByCode(ctx context.Context, code string) (*model.Room, error)
	ListForHost(ctx context.Context, hostID string) ([]model.Room, error)
	// Delete removes the room and its join requests. Only the host may do it;
	// the host is read from the store at call time.
	Delete(ctx context.Context, id, requesterID string) (removedRequests int64, err error)
}

type roomUseCase struct {
	rooms        repository.RoomRepository
	joinRequests repository.JoinRequestRepository
	metrics      metrics.Manager
	logger       *logger.Logger

	codeAttempts int
	generateCode CodeGenerator
}

type Option func(*roomUseCase)

// WithCodeAttempts bounds how many codes Create tries before giving up.
func WithCodeAttempts(n int) Option {
	return func(uc *roomUseCase) {
		if n > 0 {
			uc.codeAttempts = n
		}
	}
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(uc *roomUseCase) {
		if gen != nil {
			uc.generateCode = gen
		}
	}
}

func NewRoomUseCase(
	rooms repository.RoomRepository,
	joinRequests repository.JoinRequestRepository,
	metricsManager metrics.Manager,
	logger *logger.Logger,
	opts ...Option,
) RoomUseCase {
	if metricsManager == nil {
		metricsManager = metrics.NewNopManager()
	}
	uc := &roomUseCase{
		rooms:        rooms,
		joinRequests: joinRequests,
		metrics:      metricsManager,
		logger:       logger,
		codeAttempts: DefaultCodeAttempts,
		generateCode: generateJoinCode,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *roomUseCase) Create(ctx context.Context, name, hostID string) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ErrEmptyRoomName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperror.New(apperror.Validation, fmt.Sprintf("room name cannot exceed %d characters", MaxNameLength))
	}
	if hostID == "" {
		return nil, apperror.New(apperror.Validation, "host id cannot be empty")
	}

	for attempt := 1; attempt <= uc.codeAttempts; attempt++ {
		code, err := uc.generateCode()
		if err != nil {
			uc.logger.Error("failed to generate room code", zap.Error(err))
			return nil, apperror.Wrap(apperror.TransientStore, "failed to generate room code", err)
		}

		room := &model.Room{
			ID:        uuid.NewString(),
			Name:      name,
			Code:      code,
			HostID:    hostID,
			CreatedAt: time.Now().UTC(),
		}

		err = uc.rooms.Create(ctx, room)
		if err == nil {
			uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "room.create")
			uc.logger.Info("room created",
				zap.String("roomID", room.ID),
				zap.String("hostID", hostID),
				zap.Int("attempt", attempt))
			return room, nil
		}

		if !apperror.IsKind(err, apperror.Conflict) {
			uc.logger.Error("failed to create room", zap.Error(err), zap.String("hostID", hostID))
			return nil, err
		}

		uc.logger.Debug("room code collision, regenerating",
			zap.String("code", code),
			zap.Int("attempt", attempt))
	}

	uc.logger.Warn("room code generation exhausted",
		zap.String("hostID", hostID),
		zap.Int("attempts", uc.codeAttempts))
	return nil, apperror.New(apperror.CodeGenerationExhausted,
		fmt.Sprintf("no unique room code after %d attempts", uc.codeAttempts))
}

func (uc *roomUseCase) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperror.New(apperror.Validation, "room id cannot be empty")
	}
	return uc.rooms.GetByID(ctx, id)
}

func (uc *roomUseCase) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	if !model.IsValidRoomCode(code) {
		return nil, apperror.ErrMalformedRoomCode
	}
	return uc.rooms.GetByCode(ctx, code)
}

func (uc *roomUseCase) ListForHost(ctx context.Context, hostID string) ([]model.Room, error) {
	if hostID == "" {
		return nil, apperror.New(apperror.Validation, "host id cannot be empty")
	}

	rooms, err := uc.rooms.ListByHost(ctx, hostID)
	if err != nil {
		uc.logger.Error("failed to list rooms", zap.Error(err), zap.String("hostID", hostID))
		return nil, err
	}
	return rooms, nil
}

func (uc *roomUseCase) Delete(ctx context.Context, id, requesterID string) (int64, error) {
	room, err := uc.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if !room.IsHost(requesterID) {
		uc.logger.Warn("unauthorized room deletion attempt",
			zap.String("roomID", id),
			zap.String("userID", requesterID),
			zap.String("hostID", room.HostID))
		return 0, apperror.ErrNotRoomHost
	}

	removed, err := uc.joinRequests.DeleteByRoom(ctx, id)
	if err != nil {
		uc.logger.Error("failed to delete room join requests", zap.Error(err), zap.String("roomID", id))
		return 0, err
	}

	if err := uc.rooms.Delete(ctx, id); err != nil {
		uc.logger.Error("failed to delete room", zap.Error(err), zap.String("roomID", id))
		return removed, err
	}

	uc.metrics.IncrementCounter(ctx, metrics.MutationsTotal, "op", "room.delete")
	uc.logger.Info("room deleted",
		zap.String("roomID", id),
		zap.String("hostID", requesterID),
		zap.Int64("removedRequests", removed))
	return removed, nil
}
