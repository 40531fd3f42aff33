package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/app/flight"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the launch pad. It implements
// core.HubObserver, app.LaunchObserver and app.ChatObserver; a nil *Collector records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Launches       prometheus.Counter
	LaunchDuration prometheus.Histogram
	MaxAltitude    prometheus.Histogram
	LiveEvents     *prometheus.CounterVec

	Viewers    prometheus.Gauge
	Messages   *prometheus.CounterVec
	Deliveries *prometheus.CounterVec
	ChatFrames *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

var (
	_ core.HubObserver   = (*Collector)(nil)
	_ app.LaunchObserver = (*Collector)(nil)
	_ app.ChatObserver   = (*Collector)(nil)
)

// NewCollector registers metrics against reg, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}

	var err error
	if c.Launches, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rocket_launches_total",
		Help: "Total number of simulated launches.",
	}), "rocket_launches_total"); err != nil {
		return nil, err
	}
	if c.LaunchDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rocket_simulation_duration_seconds",
		Help:    "Wall time spent integrating one flight.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "rocket_simulation_duration_seconds"); err != nil {
		return nil, err
	}
	if c.MaxAltitude, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rocket_max_altitude_meters",
		Help:    "Apogee of simulated launches.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}), "rocket_max_altitude_meters"); err != nil {
		return nil, err
	}
	if c.LiveEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rocket_live_events_total",
		Help: "Live events fired, labeled by kind.",
	}, []string{"kind"}), "rocket_live_events_total"); err != nil {
		return nil, err
	}
	if c.Viewers, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_viewers",
		Help: "Currently registered viewers.",
	}), "hub_viewers"); err != nil {
		return nil, err
	}
	if c.Messages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_messages_total",
		Help: "Messages accepted for broadcast, labeled by channel.",
	}, []string{"channel"}), "hub_messages_total"); err != nil {
		return nil, err
	}
	if c.Deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_deliveries_total",
		Help: "Per-viewer delivery attempts, labeled by result.",
	}, []string{"result"}), "hub_deliveries_total"); err != nil {
		return nil, err
	}
	if c.ChatFrames, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_frames_total",
		Help: "Inbound chat frames, labeled by result.",
	}, []string{"result"}), "chat_frames_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"}), "http_request_duration_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations per matched route.
// Long-lived streams are counted when they end.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) LaunchCompleted(res domain.LaunchResult, took time.Duration) {
	if c == nil {
		return
	}
	c.Launches.Inc()
	c.LaunchDuration.Observe(took.Seconds())
	c.MaxAltitude.Observe(res.MaxAltitudeM)
}

func (c *Collector) LiveEventFired(kind flight.EventKind) {
	if c == nil {
		return
	}
	c.LiveEvents.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ViewersChanged(count int) {
	if c == nil {
		return
	}
	c.Viewers.Set(float64(count))
}

func (c *Collector) Published(channel domain.Channel, res core.PublishResult) {
	if c == nil {
		return
	}
	c.Messages.WithLabelValues(string(channel)).Inc()
	c.Deliveries.WithLabelValues("delivered").Add(float64(res.Delivered))
	c.Deliveries.WithLabelValues("dropped").Add(float64(len(res.Dropped)))
}

func (c *Collector) ChatFrame(result app.ChatResult) {
	if c == nil {
		return
	}
	c.ChatFrames.WithLabelValues(string(result)).Inc()
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
