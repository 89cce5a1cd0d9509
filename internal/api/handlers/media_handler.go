package handlers

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/aibackend"
	"github.com/yoockh/voicedesk/internal/call"
	"github.com/yoockh/voicedesk/internal/events"
	"github.com/yoockh/voicedesk/internal/knowledge"
	"github.com/yoockh/voicedesk/internal/recording"
	"github.com/yoockh/voicedesk/internal/telephony"
)

const defaultRealtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"

// MediaHandler accepts the telephony media stream socket and runs one call
// session per connection.
type MediaHandler struct {
	control     call.CallControl
	registry    *call.AttemptRegistry
	adjudicator call.Adjudicator
	finalizer   call.Finalizer
	knowledge   *knowledge.Loader
	redis       *redis.Client
	forwarding  call.ForwardingConfig
	log         *logrus.Entry
	upgrader    websocket.Upgrader
}

type MediaDeps struct {
	Control     call.CallControl
	Registry    *call.AttemptRegistry
	Adjudicator call.Adjudicator
	Finalizer   call.Finalizer
	Knowledge   *knowledge.Loader
	Redis       *redis.Client
	Forwarding  call.ForwardingConfig
	Log         *logrus.Entry
}

func NewMediaHandler(d MediaDeps) *MediaHandler {
	return &MediaHandler{
		control:     d.Control,
		registry:    d.Registry,
		adjudicator: d.Adjudicator,
		finalizer:   d.Finalizer,
		knowledge:   d.Knowledge,
		redis:       d.Redis,
		forwarding:  d.Forwarding,
		log:         d.Log,
		upgrader: websocket.Upgrader{
			// the caller is the telephony provider, not a browser
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *MediaHandler) MediaStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}

	ctx := c.Request.Context()

	instructions := ""
	if h.knowledge != nil {
		instructions = h.knowledge.Instructions(ctx)
	}
	voice := os.Getenv("REALTIME_VOICE")
	if voice == "" {
		voice = "alloy"
	}

	session := call.NewSession(call.Deps{
		Telephony: telephony.NewConn(conn),
		DialAI: func(ctx context.Context) (call.AIChannel, error) {
			return aibackend.Dial(ctx, realtimeURL(), os.Getenv("OPENAI_API_KEY"),
				aibackend.DefaultSessionConfig(voice, instructions), h.log)
		},
		Control:     h.control,
		Registry:    h.registry,
		Adjudicator: h.adjudicator,
		Recorder:    recording.NewRecorder(),
		Finalizer:   h.finalizer,
		Observers:   h.observers,
		Forwarding:  h.forwarding,
		Thresholds:  call.RealtimeThresholds,
		Log:         h.log,
	})

	if err := session.Run(ctx); err != nil {
		h.log.WithError(err).WithField("session_id", session.ID).Warn("call session ended with error")
	}
}

func (h *MediaHandler) observers(sessionID string) []call.Observer {
	if h.redis == nil {
		return nil
	}
	return []call.Observer{events.NewLiveFeed(h.redis, sessionID, h.log)}
}

func realtimeURL() string {
	if u := os.Getenv("REALTIME_URL"); u != "" {
		return u
	}
	return defaultRealtimeURL
}
