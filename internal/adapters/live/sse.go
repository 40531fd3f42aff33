package live

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// sseConn is a receive-only viewer. Its queue is drained by the request goroutine.
type sseConn struct {
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newSSEConn(buffer int) *sseConn {
	return &sseConn{send: make(chan core.Frame, buffer)}
}

func (c *sseConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *sseConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// HandleSSE streams every broadcast as a "message" event until the client leaves,
// the viewer is dropped or ctx ends. Each frame is the same {channel, data} JSON the websocket gets.
func (ctl *Controller) HandleSSE(ctx context.Context, c *gin.Context) {
	if !ctl.hub.Accepting() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "viewer limit reached"})
		return
	}

	conn := newSSEConn(ctl.opts.SendBuffer)
	info := domain.ViewerInfo{
		ID:          domain.NewViewerID(),
		Kind:        domain.ViewerSSE,
		ConnectedAt: time.Now().UTC(),
	}
	if err := ctl.hub.Register(info, conn); err != nil {
		log.Warn().Err(err).Str("module", "live.sse").Str("viewer", string(info.ID)).Msg("viewer rejected")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		ctl.hub.Unregister(info.ID)
		conn.Close()
		log.Info().Str("module", "live.sse").Str("viewer", string(info.ID)).Msg("SSE viewer left")
	}()
	log.Info().Str("module", "live.sse").Str("viewer", string(info.ID)).Str("token", c.GetString("client_token")).Msg("new SSE viewer")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	rc := http.NewResponseController(c.Writer)
	if !ctl.emit(c, rc, sse.Event{Event: "hello", Data: gin.H{"viewer": info.ID}}) {
		return
	}
	c.Writer.Flush()

	keepalive := time.NewTicker(ctl.opts.PingPeriod)
	defer keepalive.Stop()
	reqDone := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-reqDone:
			return false
		case f, ok := <-conn.send:
			if !ok {
				return false
			}
			return ctl.emit(c, rc, sse.Event{Event: "message", Data: string(f)})
		case <-keepalive.C:
			return ctl.emit(c, rc, sse.Event{Event: "ping", Data: domain.FormatTimestamp(time.Now())})
		}
	})
}

// emit writes one event under the write deadline. A failed write ends the stream.
func (ctl *Controller) emit(c *gin.Context, rc *http.ResponseController, ev sse.Event) bool {
	_ = rc.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait))
	c.Render(-1, ev)
	return !c.IsAborted()
}
