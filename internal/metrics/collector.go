package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the broker's Prometheus instruments. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	clientsConnected prometheus.Gauge
	roomsActive      prometheus.Gauge
	connectionsTotal prometheus.Counter
	roomsCreated     prometheus.Counter
	roomsReaped      prometheus.Counter
	messagesTotal    *prometheus.CounterVec
	faultsTotal      *prometheus.CounterVec
	evictionsTotal   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry, so several collectors
// can coexist in one process.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		clientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beamshare_clients_connected",
			Help: "Number of connected signaling clients",
		}),
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beamshare_rooms_active",
			Help: "Number of rooms currently registered",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "beamshare_connections_total",
			Help: "Total number of signaling connections accepted",
		}),
		roomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "beamshare_rooms_created_total",
			Help: "Total number of rooms created",
		}),
		roomsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "beamshare_rooms_reaped_total",
			Help: "Total number of idle rooms removed by the reaper",
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beamshare_messages_total",
			Help: "Signaling messages handled, by type",
		}, []string{"type"}),
		faultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beamshare_faults_total",
			Help: "Faults returned to clients, by operation",
		}, []string{"op"}),
		evictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beamshare_evictions_total",
			Help: "Clients forcibly disconnected, by reason",
		}, []string{"reason"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beamshare_http_requests_total",
			Help: "Control plane requests, by route and status",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beamshare_http_request_duration_seconds",
			Help:    "Control plane request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"route"}),
	}
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ClientConnected() {
	if c == nil {
		return
	}
	c.connectionsTotal.Inc()
	c.clientsConnected.Inc()
}

func (c *Collector) ClientDisconnected() {
	if c == nil {
		return
	}
	c.clientsConnected.Dec()
}

func (c *Collector) RoomCreated() {
	if c == nil {
		return
	}
	c.roomsCreated.Inc()
	c.roomsActive.Inc()
}

func (c *Collector) RoomsDeleted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.roomsActive.Sub(float64(n))
}

func (c *Collector) RoomsReaped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.roomsReaped.Add(float64(n))
	c.roomsActive.Sub(float64(n))
}

func (c *Collector) Message(kind string) {
	if c == nil {
		return
	}
	c.messagesTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) Fault(op string) {
	if c == nil {
		return
	}
	c.faultsTotal.WithLabelValues(op).Inc()
}

func (c *Collector) Evicted(reason string) {
	if c == nil {
		return
	}
	c.evictionsTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) HTTPRequest(route, status string, seconds float64) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(seconds)
}
