package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// VoiceHandler answers the incoming-call webhook with instructions to open a
// media stream back to this server.
type VoiceHandler struct {
	log *logrus.Entry
}

func NewVoiceHandler(log *logrus.Entry) *VoiceHandler {
	return &VoiceHandler{log: log}
}

const voiceResponse = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say>Please wait while we connect your call.</Say>
    <Pause length="1"/>
    <Connect>
        <Stream url="%s">
            <Parameter name="from" value="%s"/>
        </Stream>
    </Connect>
</Response>`

func (h *VoiceHandler) IncomingCall(c *gin.Context) {
	from := c.PostForm("From")

	h.log.WithFields(logrus.Fields{
		"call_sid": c.PostForm("CallSid"),
		"from":     from,
	}).Info("incoming call")

	twiml := fmt.Sprintf(voiceResponse, streamURL(c), xmlEscape(from))
	c.Data(http.StatusOK, "text/xml", []byte(twiml))
}

func streamURL(c *gin.Context) string {
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://")
		return "wss://" + host + "/media-stream"
	}
	return "wss://" + c.Request.Host + "/media-stream"
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
