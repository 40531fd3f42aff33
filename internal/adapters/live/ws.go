package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *wsConn) TrySend(f core.Frame) error {
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

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// inboundFrame is what viewers may send. Absent user/text decode to nil.
type inboundFrame struct {
	Type string  `json:"type"`
	User *string `json:"user"`
	Text *string `json:"text"`
}

// HandleWS upgrades the request and registers the socket as a viewer.
// ctx bounds the lifetime of the pumps.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	if !ctl.hub.Accepting() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "viewer limit reached"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "live.ws").Msg("ws upgrade")
		return
	}

	conn := newWSConn(ws, ctl.opts.SendBuffer)
	info := domain.ViewerInfo{
		ID:          domain.NewViewerID(),
		Kind:        domain.ViewerWebSocket,
		ConnectedAt: time.Now().UTC(),
	}
	if err := ctl.hub.Register(info, conn); err != nil {
		log.Warn().Err(err).Str("module", "live.ws").Str("viewer", string(info.ID)).Msg("viewer rejected")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.opts.WriteWait))
		conn.Close()
		return
	}
	log.Info().Str("module", "live.ws").Str("viewer", string(info.ID)).Str("token", c.GetString("client_token")).Msg("new WS viewer")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, info.ID, conn)
	go ctl.readPump(cancel, info.ID, conn)
}

func (ctl *Controller) writePump(ctx context.Context, id domain.ViewerID, c *wsConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "live.ws").Str("viewer", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "live.ws").Str("viewer", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "live.ws").Str("viewer", string(id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "live.ws").Str("viewer", string(id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "live.ws").Str("viewer", string(id)).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the read side; when it returns the viewer is gone, whatever the reason.
func (ctl *Controller) readPump(cancel context.CancelFunc, id domain.ViewerID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "live.ws").Str("viewer", string(id)).Msg("readPump closing")
		ctl.hub.Unregister(id)
		ctl.chat.Forget(string(id))
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "live.ws").Str("viewer", string(id)).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(id, data)
	}
}

func (ctl *Controller) handleFrame(id domain.ViewerID, data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		ctl.chat.Malformed(string(id))
		return
	}

	switch f.Type {
	case "chat":
		_, err := ctl.chat.Submit(string(id), app.ChatInput{User: f.User, Text: f.Text})
		if err != nil && !errors.Is(err, app.ErrRateLimited) {
			log.Error().Err(err).Str("module", "live.ws").Str("viewer", string(id)).Msg("chat submit")
		}
	default:
		log.Debug().Str("module", "live.ws").Str("viewer", string(id)).Str("type", f.Type).Msg("unknown frame")
		ctl.chat.Malformed(string(id))
	}
}
