package dependency

import (
	"github.com/hilthontt/lobby/application/membership"
	joinRequestUseCase "github.com/hilthontt/lobby/application/usecases/joinrequest"
	roomUseCase "github.com/hilthontt/lobby/application/usecases/room"
	"github.com/hilthontt/lobby/application/usecases/session"
)

func (c *Container) initUseCases() {
	c.RoomUC = roomUseCase.NewRoomUseCase(c.RoomRepo, c.JoinRequestRepo, c.MetricsManager, c.Logger,
		roomUseCase.WithCodeAttempts(c.Config.Rooms.CodeGenerationAttempts))
	c.JoinRequestUC = joinRequestUseCase.NewJoinRequestUseCase(c.RoomRepo, c.JoinRequestRepo, c.MetricsManager, c.Logger)

	c.Subscriber = membership.NewSubscriber(c.Feed, c.RoomRepo, c.JoinRequestRepo, c.MetricsManager, c.Logger, membership.Options{
		RetryInitialInterval: c.Config.Feed.RetryInitialInterval,
		RetryMaxInterval:     c.Config.Feed.RetryMaxInterval,
	})

	c.SessionUC = session.NewSessionUseCase(c.RoomUC, c.JoinRequestUC, c.Subscriber, c.EventPublisher, c.Logger)

	c.Logger.Info("Use cases initialized successfully")
}
