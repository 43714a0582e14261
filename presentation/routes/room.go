package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/presentation/controllers/room"
)

func RoomRoutes(router *gin.RouterGroup, controller room.RoomController, strict gin.HandlerFunc) {
	rooms := router.Group("/rooms")
	{
		rooms.POST("", strict, controller.CreateRoom)
		rooms.GET("", controller.ListRooms)
		rooms.GET("/:id", controller.GetRoom)
		rooms.DELETE("/:id", controller.DeleteRoom)

		rooms.POST("/join", strict, controller.JoinRoomByCode)

		rooms.GET("/:id/membership", controller.GetMembership)
		rooms.POST("/:id/leave", controller.LeaveRoom)
	}
}
