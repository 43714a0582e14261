package metrics

import (
	"net/http/pprof"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceState is sampled on every scrape of the metrics endpoint.
type ServiceState struct {
	WatchedRooms     int
	ConnectedClients int
	RoomsWithClients int
}

type StateFunc func() ServiceState

var profiles = []string{"goroutine", "heap", "allocs", "block", "mutex", "threadcreate"}

// RegisterRoutes mounts /metrics and the pprof endpoints on router. state may
// be nil, in which case only the process gauges are refreshed on scrape.
func RegisterRoutes(router *gin.RouterGroup, m Manager, state StateFunc) {
	router.GET("/metrics", scrapeMiddleware(m, state), gin.WrapH(promhttp.Handler()))

	debug := router.Group("/debug/pprof")
	debug.GET("/", gin.WrapF(pprof.Index))
	debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	debug.GET("/profile", gin.WrapF(pprof.Profile))
	debug.GET("/symbol", gin.WrapF(pprof.Symbol))
	debug.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range profiles {
		debug.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}

func scrapeMiddleware(m Manager, state StateFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		m.SetGauge(Goroutines, float64(runtime.NumGoroutine()))

		if state != nil {
			s := state()
			m.SetGauge(WatchedRooms, float64(s.WatchedRooms))
			m.SetGauge(ConnectedClients, float64(s.ConnectedClients))
			m.SetGauge(RoomsWithClients, float64(s.RoomsWithClients))
		}

		ctx.Next()
	}
}
