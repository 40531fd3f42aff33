package http

import (
	"context"

	"github.com/dkeye/WaterRocket/internal/adapters/live"
	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/config"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/observability"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName     = "RocketSessions"
	sessionTokenKey = "viewer_token"
	clientTokenKey  = "client_token"
)

// Deps is everything the router hands requests to. Metrics may be nil.
type Deps struct {
	Hub      *core.Hub
	Launches *app.LaunchService
	Chat     *app.ChatRelay
	Live     *live.Controller
	Metrics  *observability.Collector
}

// ClientTokenMiddleware keeps a stable per-browser token in the cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(sessionTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(sessionTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// SetupRouter wires HTTP routes (REST, websocket, SSE) onto the services.
// ctx bounds long-lived viewer connections.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	setupValidation()

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("metrics", deps.Metrics != nil).Msg("router setup")

	launch := launchHandler(deps.Launches)
	ws := func(c *gin.Context) { deps.Live.HandleWS(ctx, c) }

	api := r.Group("/api")
	api.POST("/launch", launch)
	api.POST("/chat", chatHandler(deps.Chat))
	api.GET("/ws", ws)
	api.GET("/events", func(c *gin.Context) { deps.Live.HandleSSE(ctx, c) })
	api.GET("/viewers", viewersHandler(deps.Hub))

	// Paths the launch pad page used before the API moved under /api.
	r.POST("/launch", launch)
	r.GET("/ws", ws)

	return r
}
