package room

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/application/usecases/session"
	"github.com/hilthontt/lobby/presentation/httperr"
	"github.com/hilthontt/lobby/presentation/middlewares"
)

type RoomController interface {
	CreateRoom(ctx *gin.Context)
	ListRooms(ctx *gin.Context)
	GetRoom(ctx *gin.Context)
	DeleteRoom(ctx *gin.Context)
	JoinRoomByCode(ctx *gin.Context)
	GetMembership(ctx *gin.Context)
	LeaveRoom(ctx *gin.Context)
}

type roomController struct {
	usecase session.SessionUseCase
}

func NewRoomController(usecase session.SessionUseCase) RoomController {
	return &roomController{
		usecase: usecase,
	}
}

func (c *roomController) CreateRoom(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(ctx, middlewares.TranslateValidationError(err))
		return
	}

	room, err := c.usecase.CreateRoom(ctx.Request.Context(), req.Name, userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, ToRoomResponse(room, userID))
}

func (c *roomController) ListRooms(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	rooms, err := c.usecase.ListMyRooms(ctx.Request.Context(), userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for i := range rooms {
		response = append(response, ToRoomResponse(&rooms[i], userID))
	}

	ctx.JSON(http.StatusOK, response)
}

func (c *roomController) GetRoom(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	room, err := c.usecase.GetRoom(ctx.Request.Context(), ctx.Param("id"), userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ToRoomResponse(room, userID))
}

func (c *roomController) DeleteRoom(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	if err := c.usecase.DeleteRoom(ctx.Request.Context(), ctx.Param("id"), userID); err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, SuccessResponse{Message: "room deleted"})
}

func (c *roomController) JoinRoomByCode(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	var req JoinByCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(ctx, middlewares.TranslateValidationError(err))
		return
	}

	// codes are shown uppercase but people type them however they like
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	request, err := c.usecase.RequestJoin(ctx.Request.Context(), code, userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, ToJoinRequestResponse(request))
}

func (c *roomController) GetMembership(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	view, err := c.usecase.GetView(ctx.Request.Context(), ctx.Param("id"), userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ToMembershipViewResponse(view))
}

func (c *roomController) LeaveRoom(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	if err := c.usecase.Leave(ctx.Request.Context(), ctx.Param("id"), userID); err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, SuccessResponse{Message: "left room"})
}
