package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BaseRepository holds what every Postgres repository shares: the db handle,
// a tracer and the publisher notified after each committed write.
type BaseRepository[TEntity any] struct {
	database  *gorm.DB
	logger    *logger.Logger
	tracer    trace.Tracer
	publisher repository.ChangePublisher
}

func NewBaseRepository[TEntity any](
	db *gorm.DB,
	log *logger.Logger,
	tracer trace.Tracer,
	publisher repository.ChangePublisher,
) *BaseRepository[TEntity] {
	return &BaseRepository[TEntity]{
		database:  db,
		logger:    log,
		tracer:    tracer,
		publisher: publisher,
	}
}

func (r BaseRepository[TEntity]) findOne(ctx context.Context, notFound *apperror.Error, query string, args ...any) (*TEntity, error) {
	entity := new(TEntity)
	err := r.database.WithContext(ctx).Where(query, args...).First(entity).Error
	if err != nil {
		return nil, translate(err, notFound)
	}
	return entity, nil
}

// notify publishes a change after a successful write. The write already
// happened, so a publish failure is logged rather than returned.
func (r BaseRepository[TEntity]) notify(ctx context.Context, event repository.ChangeEvent) {
	if r.publisher == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("failed to publish change",
			zap.String("roomID", event.RoomID),
			zap.String("table", event.Table),
			zap.String("op", string(event.Op)),
			zap.Error(err))
	}
}

// translate maps driver errors onto apperror kinds.
func translate(err error, notFound *apperror.Error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		if notFound != nil {
			return notFound
		}
		return apperror.Wrap(apperror.NotFound, "record not found", err)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Wrap(apperror.Conflict, "duplicate key", err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperror.Wrap(apperror.TransientStore, "store unavailable", errors.WithStack(err))
	}
}

func recordSpanError(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
