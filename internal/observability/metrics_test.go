package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/app/flight"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsLaunchAndHubStats(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	req.NoError(err)

	c.LaunchCompleted(domain.LaunchResult{MaxAltitudeM: 42}, 3*time.Millisecond)
	c.LiveEventFired(flight.EventLeak)
	c.LiveEventFired(flight.EventLeak)
	c.ViewersChanged(3)
	c.Published(domain.ChannelChat, core.PublishResult{Delivered: 2, Dropped: []domain.ViewerID{"x"}})
	c.ChatFrame(app.ChatLimited)

	req.Equal(1.0, testutil.ToFloat64(c.Launches))
	req.Equal(2.0, testutil.ToFloat64(c.LiveEvents.WithLabelValues("leak")))
	req.Equal(3.0, testutil.ToFloat64(c.Viewers))
	req.Equal(1.0, testutil.ToFloat64(c.Messages.WithLabelValues("chat")))
	req.Equal(2.0, testutil.ToFloat64(c.Deliveries.WithLabelValues("delivered")))
	req.Equal(1.0, testutil.ToFloat64(c.Deliveries.WithLabelValues("dropped")))
	req.Equal(1.0, testutil.ToFloat64(c.ChatFrames.WithLabelValues("rate_limited")))
	req.Equal(1, testutil.CollectAndCount(c.MaxAltitude))
}

func TestCollector_ReusesExistingRegistration(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	req.NoError(err)
	second, err := NewCollector(reg)
	req.NoError(err)

	first.Launches.Inc()
	req.Equal(1.0, testutil.ToFloat64(second.Launches))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.LaunchCompleted(domain.LaunchResult{}, time.Second)
		c.LiveEventFired(flight.EventTurboBoost)
		c.ViewersChanged(1)
		c.Published(domain.ChannelLaunchLog, core.PublishResult{})
		c.ChatFrame(app.ChatAccepted)
	})
}

func TestCollector_HandlerAndMiddleware(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	req.NoError(err)

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/api/viewers", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/viewers", nil))
	req.Equal(http.StatusOK, rr.Code)
	req.Equal(1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/viewers", "200")))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	req.Equal(1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	req.NoError(err)
	req.Contains(string(body), "http_requests_total")
	req.Contains(string(body), "hub_viewers")
}

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	req := require.New(t)
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	req.NoError(err)
	req.NoError(shutdown(context.Background()))
	ShutdownWithTimeout(context.Background(), shutdown)
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon", SampleRatio: 1})
	require.Error(t, err)
}
