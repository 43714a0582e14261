package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gaugeRecorder struct {
	nopManager

	mu     sync.Mutex
	gauges map[string]float64
}

func (r *gaugeRecorder) SetGauge(name string, value float64, _ ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

func newScrapeRouter(m Manager, state StateFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/observability"), m, state)
	return router
}

func TestScrapeSamplesServiceState(t *testing.T) {
	rec := &gaugeRecorder{gauges: make(map[string]float64)}
	calls := 0
	router := newScrapeRouter(rec, func() ServiceState {
		calls++
		return ServiceState{WatchedRooms: 3, ConnectedClients: 7, RoomsWithClients: 2}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/observability/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 3.0, rec.gauges[WatchedRooms])
	assert.Equal(t, 7.0, rec.gauges[ConnectedClients])
	assert.Equal(t, 2.0, rec.gauges[RoomsWithClients])
	assert.Greater(t, rec.gauges[Goroutines], 0.0)
}

func TestScrapeWithoutState(t *testing.T) {
	rec := &gaugeRecorder{gauges: make(map[string]float64)}
	router := newScrapeRouter(rec, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/observability/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, rec.gauges, Goroutines)
	assert.NotContains(t, rec.gauges, WatchedRooms)
}

func TestPprofRoutes(t *testing.T) {
	router := newScrapeRouter(NewNopManager(), nil)

	for _, path := range []string{"/observability/debug/pprof/", "/observability/debug/pprof/heap"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
