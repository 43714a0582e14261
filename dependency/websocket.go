package dependency

import (
	"github.com/hilthontt/lobby/infrastructure/websocket"
)

func (c *Container) initWebSocket() {
	c.WSHub = websocket.NewHub(c.Config.Cors.AllowOrigins, c.MetricsManager)

	c.Logger.Info("WebSocket components initialized successfully")
}
