package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/presentation/controllers/joinrequest"
)

func JoinRequestRoutes(router *gin.RouterGroup, controller joinrequest.JoinRequestController) {
	requests := router.Group("/join-requests")
	{
		requests.POST("/:id/approve", controller.ApproveRequest)
		requests.DELETE("/:id", controller.RejectRequest)
	}
}
