package dependency

import (
	"fmt"

	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/events"
	"go.uber.org/zap"
)

func (c *Container) initEvents() error {
	var sink events.Sink
	switch c.Config.Events.Sink {
	case config.DriverRedis:
		sink = events.NewRedisSink(c.Redis, c.Config.Events.Channel)
	case config.DriverAmqp:
		amqpSink, err := events.NewAmqpSink(c.Config.Events.AmqpURL, c.Config.Events.Exchange)
		if err != nil {
			return fmt.Errorf("error connecting to amqp: %w", err)
		}
		sink = amqpSink
	default:
		sink = events.NopSink{}
	}

	c.EventPublisher = events.NewEventPublisher(sink, c.Logger)
	c.closers = append(c.closers, c.EventPublisher.Close)

	if c.Config.Events.PersistAudit {
		c.EventConsumer = events.NewEventConsumer(c.Redis, c.Config.Events.Channel, c.Logger)
		c.EventConsumer.RegisterAuditHandlers(c.AuditLogRepo)

		go func() {
			if err := c.EventConsumer.Start(c.ctx); err != nil {
				c.Logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	c.Logger.Info("Events initialized successfully",
		zap.String("sink", c.Config.Events.Sink),
		zap.Bool("persistAudit", c.Config.Events.PersistAudit),
	)
	return nil
}
