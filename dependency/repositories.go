package dependency

import (
	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/feed"
	"github.com/hilthontt/lobby/infrastructure/persistence/memory"
	"github.com/hilthontt/lobby/infrastructure/persistence/repository"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const tracerName = "github.com/hilthontt/lobby/repository"

func (c *Container) initRepositories() error {
	switch c.Config.Feed.Driver {
	case config.DriverRedis:
		redisFeed := feed.NewRedisFeed(c.Redis, c.Config.Feed.ChannelPrefix, c.Config.Feed.BufferSize, c.Logger)
		c.Feed = redisFeed
		c.Publisher = redisFeed
	default:
		memoryFeed := feed.NewMemoryFeed(c.Config.Feed.BufferSize)
		c.Feed = memoryFeed
		c.Publisher = memoryFeed
	}

	switch c.Config.Store.Driver {
	case config.DriverPostgres:
		tracer := otel.Tracer(tracerName)
		c.RoomRepo = repository.NewRoomRepository(c.DB, c.Logger, tracer, c.Publisher)
		c.JoinRequestRepo = repository.NewJoinRequestRepository(c.DB, c.Logger, tracer, c.Publisher)
		c.AuditLogRepo = repository.NewAuditLogRepository(c.DB, c.Logger, tracer)
	default:
		store := memory.NewStore(c.Publisher)
		c.RoomRepo = store.Rooms()
		c.JoinRequestRepo = store.JoinRequests()
	}

	c.Logger.Info("Repositories initialized successfully",
		zap.String("store", c.Config.Store.Driver),
		zap.String("feed", c.Config.Feed.Driver),
	)
	return nil
}
