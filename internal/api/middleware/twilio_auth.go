package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/yoockh/voicedesk/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// TwilioAuth verifies the X-Twilio-Signature header on webhook requests so
// only requests signed with our auth token reach the voice handlers.
// Set TWILIO_VALIDATE_WEBHOOKS=false to disable locally (ngrok tunnels break
// the signed URL).
func TwilioAuth() gin.HandlerFunc {
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	disabled := os.Getenv("TWILIO_VALIDATE_WEBHOOKS") == "false"
	validator := twilioclient.NewRequestValidator(authToken)

	return func(c *gin.Context) {
		if disabled {
			c.Next()
			return
		}

		if authToken == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "TWILIO_AUTH_TOKEN is not set",
			})
			return
		}

		signature := c.GetHeader("X-Twilio-Signature")
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing twilio signature",
			})
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError{
				Code:    utils.CodeInvalidArgument,
				Message: "invalid form body",
			})
			return
		}

		params := map[string]string{}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}

		if !validator.Validate(webhookURL(c.Request), params, signature) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid twilio signature",
			})
			return
		}

		c.Next()
	}
}

// webhookURL rebuilds the public URL the signature was computed over.
// PUBLIC_BASE_URL wins when set, the request Host is a fallback that only
// works without a proxy rewriting it.
func webhookURL(r *http.Request) string {
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		return base + r.URL.RequestURI()
	}

	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
