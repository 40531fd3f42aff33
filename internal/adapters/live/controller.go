// Package live attaches viewers to the broadcast hub over websocket and server-sent events.
package live

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  4096,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 64,
	}
}

// Controller owns the transport side of every viewer; the hub only sees core.ViewerConnection.
type Controller struct {
	hub      *core.Hub
	chat     *app.ChatRelay
	opts     Options
	upgrader websocket.Upgrader
}

func NewController(hub *core.Hub, chat *app.ChatRelay, opts Options) *Controller {
	def := DefaultOptions()
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = def.ReadLimit
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	return &Controller{
		hub:  hub,
		chat: chat,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}
