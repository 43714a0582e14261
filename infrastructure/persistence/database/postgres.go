package database

import (
	"time"

	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var dbClient *gorm.DB

func InitDb(cfg *config.Config, log *logger.Logger) error {
	db, err := Open(cfg.GetPostgresConnectionString(), log)
	if err != nil {
		return err
	}

	sqlDb, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}

	if cfg.Postgres.MaxIdleConns > 0 {
		sqlDb.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}
	if cfg.Postgres.MaxOpenConns > 0 {
		sqlDb.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.ConnMaxLifetime > 0 {
		sqlDb.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	} else {
		sqlDb.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := sqlDb.Ping(); err != nil {
		return errors.Wrap(err, "ping postgres")
	}

	dbClient = db
	log.Info("Db connection established", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DbName))
	return nil
}

// Open connects with duplicate-key errors translated to gorm.ErrDuplicatedKey.
func Open(dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLogger(log.Log),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return db, nil
}

func GetDb() *gorm.DB {
	return dbClient
}

func CloseDb() {
	if dbClient == nil {
		return
	}
	if sqlDb, err := dbClient.DB(); err == nil {
		_ = sqlDb.Close()
	}
	dbClient = nil
}
