package dependency

import (
	"fmt"

	"github.com/hilthontt/lobby/infrastructure/cache"
	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"github.com/hilthontt/lobby/infrastructure/metrics/exporters"
	"github.com/hilthontt/lobby/infrastructure/persistence/database"
	"github.com/hilthontt/lobby/infrastructure/persistence/migration"
	"go.uber.org/zap"
)

func (c *Container) initInfrastructure() error {
	tracerProvider, err := exporters.InitTracer(c.ctx, c.Config)
	if err != nil {
		// tracing is optional; the global noop provider stays in place
		c.Logger.Error("failed to initialize tracing exporter", zap.Error(err))
	} else if tracerProvider != nil {
		c.TracerProvider = tracerProvider
		c.Logger.Info("Tracing exporter initialized successfully",
			zap.String("exporter", c.Config.Tracing.Exporter),
			zap.String("service", c.Config.Tracing.ServiceName),
		)
	}

	meter := exporters.Prometheus(c.Config.Tracing.ServiceName, c.Config.Tracing.ServiceVersion)
	if meter == nil {
		return fmt.Errorf("failed to initialize Prometheus exporter")
	}
	c.MetricsManager = metrics.NewMetricsManager(meter, c.Logger)
	metrics.RegisterDefaults(c.MetricsManager)

	c.Logger.Info("Metrics initialized successfully")

	if c.Config.UsesRedis() {
		if err := cache.InitRedis(c.Config); err != nil {
			return fmt.Errorf("error initializing redis: %w", err)
		}
		c.Redis = cache.GetRedis()
		c.closers = append(c.closers, func() error {
			cache.CloseRedis()
			return nil
		})
		c.Logger.Info("Redis connected", zap.String("address", c.Config.GetRedisAddress()))
	}

	if c.Config.Store.Driver == config.DriverPostgres {
		if err := database.InitDb(c.Config, c.Logger); err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		c.DB = database.GetDb()
		c.closers = append(c.closers, func() error {
			database.CloseDb()
			return nil
		})

		if err := migration.Up1(c.DB, c.Logger); err != nil {
			return fmt.Errorf("error running migrations: %w", err)
		}
	}

	return nil
}
