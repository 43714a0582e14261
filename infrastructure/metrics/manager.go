package metrics

import (
	"context"
	"sync"

	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	FeedEventsReceived      = "lobby_feed_events_total"
	MembershipDerivations   = "lobby_membership_derivations_total"
	DerivationFailures      = "lobby_membership_derivation_failures_total"
	DerivationDuration      = "lobby_membership_derivation_duration_seconds"
	ActiveFeedSubscriptions = "lobby_active_feed_subscriptions"
	ActiveObservers         = "lobby_active_observers"
	MutationsTotal          = "lobby_mutations_total"
	HTTPRequestsTotal       = "http_requests_total"
	HTTPRequestDuration     = "http_request_duration_seconds"
	ActiveWebsockets        = "active_websocket_connections"
	WebsocketMessagesSent   = "websocket_messages_sent"
	WatchedRooms            = "lobby_watched_rooms"
	ConnectedClients        = "lobby_websocket_clients"
	RoomsWithClients        = "lobby_rooms_with_clients"
	Goroutines              = "lobby_goroutines"
)

// Manager registers and updates named instruments. Updates to a name that
// was never registered are logged and dropped.
type Manager interface {
	NewCounter(name, desc string)
	NewUpDownCounter(name, desc string)
	NewHistogram(name, desc string, buckets ...float64)
	NewGauge(name, desc string)

	IncrementCounter(ctx context.Context, name string, labels ...string)
	DeltaUpDownCounter(ctx context.Context, name string, value float64, labels ...string)
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
	SetGauge(name string, value float64, labels ...string)
}

type otelManager struct {
	meter  metric.Meter
	logger *logger.Logger

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	upDowns    map[string]metric.Float64UpDownCounter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

func NewMetricsManager(meter metric.Meter, log *logger.Logger) Manager {
	return &otelManager{
		meter:      meter,
		logger:     log,
		counters:   make(map[string]metric.Int64Counter),
		upDowns:    make(map[string]metric.Float64UpDownCounter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RegisterDefaults creates every instrument the service updates.
func RegisterDefaults(m Manager) {
	m.NewGauge(WatchedRooms, "Rooms with at least one membership observer")
	m.NewGauge(ConnectedClients, "Open membership websocket streams")
	m.NewGauge(RoomsWithClients, "Rooms with at least one websocket stream")
	m.NewGauge(Goroutines, "Number of goroutines")

	m.NewCounter(HTTPRequestsTotal, "Total number of HTTP requests")
	m.NewHistogram(HTTPRequestDuration, "HTTP request duration in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0)
	m.NewUpDownCounter(ActiveWebsockets, "Number of active WebSocket connections")
	m.NewCounter(WebsocketMessagesSent, "Total number of WebSocket messages sent")

	m.NewCounter(FeedEventsReceived, "Change notifications received from the feed")
	m.NewCounter(MembershipDerivations, "Successful membership view derivations")
	m.NewCounter(DerivationFailures, "Failed membership view derivations")
	m.NewHistogram(DerivationDuration, "Membership derivation duration in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0)
	m.NewUpDownCounter(ActiveFeedSubscriptions, "Rooms with an open change feed")
	m.NewUpDownCounter(ActiveObservers, "Registered membership observers")
	m.NewCounter(MutationsTotal, "Room and join request mutations")
}

func (m *otelManager) NewCounter(name, desc string) {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create counter", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.counters[name] = c
	m.mu.Unlock()
}

func (m *otelManager) NewUpDownCounter(name, desc string) {
	c, err := m.meter.Float64UpDownCounter(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create up-down counter", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.upDowns[name] = c
	m.mu.Unlock()
}

func (m *otelManager) NewHistogram(name, desc string, buckets ...float64) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	if err != nil {
		m.logger.Error("failed to create histogram", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.histograms[name] = h
	m.mu.Unlock()
}

func (m *otelManager) NewGauge(name, desc string) {
	g, err := m.meter.Float64Gauge(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create gauge", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.gauges[name] = g
	m.mu.Unlock()
}

func (m *otelManager) IncrementCounter(ctx context.Context, name string, labels ...string) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("counter not registered", zap.String("name", name))
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (m *otelManager) DeltaUpDownCounter(ctx context.Context, name string, value float64, labels ...string) {
	m.mu.RLock()
	c, ok := m.upDowns[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("up-down counter not registered", zap.String("name", name))
		return
	}
	c.Add(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (m *otelManager) RecordHistogram(ctx context.Context, name string, value float64, labels ...string) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("histogram not registered", zap.String("name", name))
		return
	}
	h.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (m *otelManager) SetGauge(name string, value float64, labels ...string) {
	m.mu.RLock()
	g, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("gauge not registered", zap.String("name", name))
		return
	}
	g.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
}

// toAttributes turns "k1", "v1", "k2", "v2" into attributes. A trailing key
// without a value is ignored.
func toAttributes(labels []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}

type nopManager struct{}

// NewNopManager returns a Manager that records nothing.
func NewNopManager() Manager { return nopManager{} }

func (nopManager) NewCounter(string, string)                                      {}
func (nopManager) NewUpDownCounter(string, string)                                {}
func (nopManager) NewHistogram(string, string, ...float64)                        {}
func (nopManager) NewGauge(string, string)                                        {}
func (nopManager) IncrementCounter(context.Context, string, ...string)            {}
func (nopManager) DeltaUpDownCounter(context.Context, string, float64, ...string) {}
func (nopManager) RecordHistogram(context.Context, string, float64, ...string)    {}
func (nopManager) SetGauge(string, float64, ...string)                            {}
