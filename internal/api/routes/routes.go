package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yoockh/voicedesk/internal/api/handlers"
	"github.com/yoockh/voicedesk/internal/api/middleware"
)

type Deps struct {
	Voice *handlers.VoiceHandler
	Media *handlers.MediaHandler
	Calls *handlers.CallHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Telephony webhooks (signature-checked)
	webhooks := r.Group("/")
	webhooks.Use(middleware.TwilioAuth())
	webhooks.POST("/voice", d.Voice.IncomingCall)

	// Media stream WebSocket. The provider cannot sign WS upgrades, the
	// stream is bound to a live call via its start frame instead.
	r.GET("/media-stream", d.Media.MediaStream)

	// Dashboard API
	r.GET("/calls", d.Calls.List)
	r.GET("/calls/:call_sid", d.Calls.Get)
	r.GET("/calls/:call_sid/recording", d.Calls.Recording)
}
