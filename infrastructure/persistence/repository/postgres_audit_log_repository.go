package repository

import (
	"context"

	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresAuditLogRepository struct {
	*BaseRepository[model.AuditLog]
}

func NewAuditLogRepository(db *gorm.DB, log *logger.Logger, tracer trace.Tracer) repository.AuditLogRepository {
	return &PostgresAuditLogRepository{
		BaseRepository: NewBaseRepository[model.AuditLog](db, log, tracer, nil),
	}
}

// CreateAuditLog is idempotent on event_id so redelivered events are stored once.
func (r *PostgresAuditLogRepository) CreateAuditLog(ctx context.Context, a model.AuditLog) (model.AuditLog, error) {
	ctx, span := r.tracer.Start(ctx, "auditLogRepository.CreateAuditLog")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.id", a.EventID),
		attribute.String("event.type", a.EventType),
	)

	result := r.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&a)

	if result.Error != nil {
		r.logger.Error("failed to store audit log", zap.String("eventID", a.EventID), zap.Error(result.Error))
		recordSpanError(span, result.Error, "failed to store audit log")
		return a, translate(result.Error, nil)
	}

	return a, nil
}
