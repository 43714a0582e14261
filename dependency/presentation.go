package dependency

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"github.com/hilthontt/lobby/infrastructure/security"
	"github.com/hilthontt/lobby/presentation/controllers/joinrequest"
	"github.com/hilthontt/lobby/presentation/controllers/room"
	wsCtrl "github.com/hilthontt/lobby/presentation/controllers/websocket"
	"github.com/hilthontt/lobby/presentation/middlewares"
	"github.com/hilthontt/lobby/presentation/routes"
	"go.uber.org/zap"
)

func (c *Container) initControllers() {
	c.RoomController = room.NewRoomController(c.SessionUC)
	c.JoinRequestController = joinrequest.NewJoinRequestController(c.SessionUC)
	c.WebsocketController = wsCtrl.NewWebSocketController(c.SessionUC, c.WSHub, c.Logger)

	c.Logger.Info("Controllers initialized successfully")
}

func (c *Container) SetupRouter() *gin.Engine {
	switch c.Config.Server.RunMode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	binding.Validator = new(middlewares.DefaultValidator)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         5 * time.Second,
	}))

	router.Use(middlewares.GinLogger(c.Logger))
	router.Use(middlewares.MetricsMiddleware(c.MetricsManager))
	router.Use(middlewares.CorsMiddleware(c.Config))

	router.GET("/health", c.healthCheckHandler)

	c.registerObservabilityRoutes(router)

	c.registerAPIRoutes(router)

	c.Logger.Info("Router configured successfully")

	return router
}

func (c *Container) registerAPIRoutes(router *gin.Engine) {
	var verifier *security.TokenVerifier
	if c.Config.Auth.JWTSecret != "" {
		verifier = security.NewTokenVerifier(c.Config.Auth.JWTSecret, c.Config.Auth.Issuer, c.Config.Auth.Audience)
	}
	if c.Config.Auth.AllowHeaderIdentity {
		c.Logger.Warn("X-User-ID header identity is enabled; do not use this outside development")
	}

	v1 := router.Group("/api/v1")
	{
		v1.Use(middlewares.IdentityMiddleware(verifier, c.Config.Auth.AllowHeaderIdentity, c.Logger))
		v1.Use(middlewares.RateLimiterMiddleware(c.Redis, c.Logger, middlewares.ModerateRateLimiterConfig()))

		v1.Use(func(ctx *gin.Context) {
			if hub := sentrygin.GetHubFromContext(ctx); hub != nil {
				if userID, exists := middlewares.GetUserIDFromContext(ctx); exists {
					hub.Scope().SetUser(sentry.User{
						ID:        userID,
						IPAddress: ctx.ClientIP(),
					})
				}
			}
			ctx.Next()
		})

		strict := middlewares.RateLimiterMiddleware(c.Redis, c.Logger, middlewares.StrictRateLimiterConfig())

		routes.RoomRoutes(v1, c.RoomController, strict)
		routes.JoinRequestRoutes(v1, c.JoinRequestController)
		routes.WebsocketRoutes(v1, c.WebsocketController)
	}
}

func (c *Container) healthCheckHandler(ctx *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if c.DB != nil {
		checks["postgres"] = "ok"
		if sqlDB, err := c.DB.DB(); err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
			checks["postgres"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if c.Redis != nil {
		checks["redis"] = "ok"
		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "degraded"
	}

	ctx.JSON(status, gin.H{
		"status": healthy,
		"time":   time.Now().Format(time.RFC3339),
		"checks": checks,
		"rooms":  c.Subscriber.ActiveRooms(),
	})
}

func (c *Container) registerObservabilityRoutes(router *gin.Engine) {
	metricsGroup := router.Group("/observability")
	{
		metrics.RegisterRoutes(metricsGroup, c.MetricsManager, c.serviceState)
	}
}

func (c *Container) serviceState() metrics.ServiceState {
	var state metrics.ServiceState
	if c.Subscriber != nil {
		state.WatchedRooms = c.Subscriber.ActiveRooms()
	}
	if c.WSHub != nil {
		state.ConnectedClients, state.RoomsWithClients = c.WSHub.Totals()
	}
	return state
}

func (c *Container) Shutdown() {
	if c.Logger != nil {
		c.Logger.Info("Shutting down dependencies...")
	}

	if c.WSHub != nil {
		c.WSHub.DisconnectAll()
	}
	if c.Subscriber != nil {
		c.Subscriber.Close()
	}
	if c.EventConsumer != nil {
		c.EventConsumer.Stop()
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.TracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.TracerProvider.Shutdown(ctx); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Error("failed to close dependency", zap.Error(err))
		}
	}
	c.closers = nil

	if c.Logger != nil {
		c.Logger.Info("Dependencies shut down successfully")
		_ = c.Logger.Sync()
	}
}
