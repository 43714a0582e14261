package joinrequest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/application/usecases/session"
	"github.com/hilthontt/lobby/presentation/controllers/room"
	"github.com/hilthontt/lobby/presentation/httperr"
	"github.com/hilthontt/lobby/presentation/middlewares"
)

type JoinRequestController interface {
	ApproveRequest(ctx *gin.Context)
	RejectRequest(ctx *gin.Context)
}

type joinRequestController struct {
	usecase session.SessionUseCase
}

func NewJoinRequestController(usecase session.SessionUseCase) JoinRequestController {
	return &joinRequestController{
		usecase: usecase,
	}
}

func (c *joinRequestController) ApproveRequest(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	approved, err := c.usecase.ApproveRequest(ctx.Request.Context(), ctx.Param("id"), userID)
	if err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, room.ToJoinRequestResponse(approved))
}

// RejectRequest answers 200 for requests that are already gone.
func (c *joinRequestController) RejectRequest(ctx *gin.Context) {
	userID, ok := middlewares.RequireUserID(ctx)
	if !ok {
		return
	}

	if err := c.usecase.RejectRequest(ctx.Request.Context(), ctx.Param("id"), userID); err != nil {
		httperr.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, room.SuccessResponse{Message: "request rejected"})
}
