package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/application/usecases/session"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/websocket"
	"github.com/hilthontt/lobby/presentation/controllers/room"
	"github.com/hilthontt/lobby/presentation/httperr"
	"github.com/hilthontt/lobby/presentation/middlewares"
	"go.uber.org/zap"
)

type WebSocketController interface {
	HandleConnection(ctx *gin.Context)
}

type webSocketController struct {
	usecase session.SessionUseCase
	hub     *websocket.Hub
	logger  *logger.Logger
}

func NewWebSocketController(usecase session.SessionUseCase, hub *websocket.Hub, logger *logger.Logger) WebSocketController {
	return &webSocketController{
		usecase: usecase,
		hub:     hub,
		logger:  logger,
	}
}

// HandleConnection streams the caller's view of a room until the room is
// deleted, the caller loses access or the peer disconnects.
func (c *webSocketController) HandleConnection(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}
	roomID := ctx.Param("id")

	// authorize before upgrading so refusals are plain HTTP errors
	watched, err := c.usecase.GetRoom(ctx.Request.Context(), roomID, userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}
	isHost := watched.IsHost(userID)

	conn, err := c.hub.Upgrade(ctx.Writer, ctx.Request)
	if err != nil {
		// the upgrader has already answered
		c.logger.Warn("websocket upgrade failed",
			zap.String("roomID", roomID),
			zap.String("userID", userID),
			zap.Error(err))
		return
	}

	client := websocket.NewClient(conn, uuid.NewString(), userID, roomID, c.logger)
	c.hub.AddClient(client)
	defer c.hub.RemoveClient(client)

	go client.WritePump(c.hub.MessageSent)

	unsubscribe, err := c.usecase.Watch(ctx.Request.Context(), roomID, userID, func(view model.MembershipView) {
		c.deliver(client, isHost, view)
	})
	if err != nil {
		c.logger.Warn("failed to watch room",
			zap.String("roomID", roomID),
			zap.String("userID", userID),
			zap.Error(err))
		_ = conn.WriteControl(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(closeCode(err), "membership unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer unsubscribe()

	c.logger.Debug("websocket connected",
		zap.String("clientID", client.ID),
		zap.String("roomID", roomID),
		zap.String("userID", userID))

	client.ReadPump()
}

func (c *webSocketController) deliver(client *websocket.Client, isHost bool, view model.MembershipView) {
	if client.Finished() {
		return
	}
	if !view.RoomDeleted && !isHost && !view.Participants().Contains(client.UserID) {
		// rejected or left; the stream ends without leaking further views
		client.Finish()
		return
	}

	if !client.Enqueue(websocket.NewMembershipView(view.RoomID, room.ToMembershipViewResponse(view))) {
		c.logger.Warn("websocket client too slow, disconnecting",
			zap.String("clientID", client.ID),
			zap.String("roomID", client.RoomID))
		client.Close()
		return
	}

	if view.RoomDeleted {
		client.Enqueue(websocket.NewRoomDeleted(view.RoomID))
		client.Finish()
	}
}

func closeCode(err error) int {
	if httperr.Status(err) == http.StatusServiceUnavailable {
		return gorilla.CloseTryAgainLater
	}
	return gorilla.CloseInternalServerErr
}
