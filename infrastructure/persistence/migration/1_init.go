package migration

import (
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Up1 creates the rooms, join_requests and audit_logs tables with their
// unique indexes and the join_requests -> rooms cascade.
func Up1(db *gorm.DB, log *logger.Logger) error {
	tables := []any{}

	// rooms first: join_requests references it
	tables = addNewTable(db, &model.Room{}, tables)
	tables = addNewTable(db, &model.JoinRequest{}, tables)
	tables = addNewTable(db, &model.AuditLog{}, tables)

	if len(tables) == 0 {
		log.Debug("schema up to date")
		return nil
	}

	if err := db.Migrator().CreateTable(tables...); err != nil {
		return errors.Wrap(err, "create tables")
	}
	log.Info("Tables Created", zap.Int("count", len(tables)))
	return nil
}

func addNewTable(db *gorm.DB, model any, tables []any) []any {
	if !db.Migrator().HasTable(model) {
		tables = append(tables, model)
	}
	return tables
}
