package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	User *string `json:"user"`
	Text *string `json:"text"`
}

// chatHandler lets receive-only viewers talk; the session token is the rate-limit key.
func chatHandler(relay *app.ChatRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		sender := c.GetString(clientTokenKey)
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			relay.Malformed(sender)
			c.JSON(stdhttp.StatusBadRequest, bindError(err))
			return
		}

		msg, err := relay.Submit(sender, app.ChatInput{User: req.User, Text: req.Text})
		if errors.Is(err, app.ErrRateLimited) {
			c.JSON(stdhttp.StatusTooManyRequests, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(stdhttp.StatusAccepted, gin.H{"ok": true, "message": msg})
	}
}

func viewersHandler(hub *core.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewers := hub.Snapshot()
		c.JSON(stdhttp.StatusOK, gin.H{"count": len(viewers), "viewers": viewers})
	}
}
