package dependency

import (
	"context"
	"fmt"

	"github.com/hilthontt/lobby/application/membership"
	joinRequestUseCase "github.com/hilthontt/lobby/application/usecases/joinrequest"
	roomUseCase "github.com/hilthontt/lobby/application/usecases/room"
	"github.com/hilthontt/lobby/application/usecases/session"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/events"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"github.com/hilthontt/lobby/infrastructure/websocket"
	"github.com/hilthontt/lobby/presentation/controllers/joinrequest"
	"github.com/hilthontt/lobby/presentation/controllers/room"
	wsCtrl "github.com/hilthontt/lobby/presentation/controllers/websocket"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

type Container struct {
	Config *config.Config
	Logger *logger.Logger

	TracerProvider *trace.TracerProvider
	MetricsManager metrics.Manager

	DB    *gorm.DB
	Redis *redis.Client

	Feed      repository.ChangeFeed
	Publisher repository.ChangePublisher

	RoomRepo        repository.RoomRepository
	JoinRequestRepo repository.JoinRequestRepository
	AuditLogRepo    repository.AuditLogRepository

	EventPublisher *events.EventPublisher
	EventConsumer  *events.EventConsumer

	Subscriber *membership.Subscriber
	WSHub      *websocket.Hub

	RoomUC        roomUseCase.RoomUseCase
	JoinRequestUC joinRequestUseCase.JoinRequestUseCase
	SessionUC     session.SessionUseCase

	RoomController        room.RoomController
	JoinRequestController joinrequest.JoinRequestController
	WebsocketController   wsCtrl.WebSocketController

	closers []func() error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{Config: cfg}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	loggerInstance, err := c.newLogger()
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	c.Logger = loggerInstance

	c.Logger.Info("Initializing lobby dependencies")

	if err := c.initInfrastructure(); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("error initializing infrastructure: %w", err)
	}

	if err := c.initRepositories(); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("error initializing repositories: %w", err)
	}

	if err := c.initEvents(); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("error initializing events: %w", err)
	}

	c.initUseCases()

	c.initWebSocket()

	c.initControllers()

	c.Logger.Info("All dependencies initialized successfully")

	return c, nil
}

func (c *Container) newLogger() (*logger.Logger, error) {
	if c.Config.IsDevelopment() && c.Config.Logger.FilePath == "" {
		return logger.NewDevelopmentLogger()
	}
	return logger.New(logger.Options{
		FilePath: c.Config.Logger.FilePath,
		Encoding: c.Config.Logger.Encoding,
		Level:    c.Config.Logger.Level,
	})
}
