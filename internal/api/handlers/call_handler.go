package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/voicedesk/internal/models"
	"github.com/yoockh/voicedesk/internal/repositories/postgres"
	"github.com/yoockh/voicedesk/internal/storage"
	"github.com/yoockh/voicedesk/internal/utils"
)

// CallHandler exposes finished call records for the support dashboard.
type CallHandler struct {
	calls  postgres.CallRepo
	signer storage.Signer
}

func NewCallHandler(calls postgres.CallRepo, signer storage.Signer) *CallHandler {
	return &CallHandler{calls: calls, signer: signer}
}

func (h *CallHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var (
		rows []models.CallRecord
		err  error
	)
	if c.Query("forwarded") == "true" {
		rows, err = h.calls.ListForwarded(c.Request.Context(), limit)
	} else {
		rows, err = h.calls.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CallHandler.List", "failed to list calls", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h *CallHandler) Get(c *gin.Context) {
	callSID := c.Param("call_sid")
	if callSID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Get", "missing call_sid", nil))
		return
	}

	rec, err := h.calls.GetByCallSID(c.Request.Context(), callSID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Recording returns a short-lived signed URL for the stored audio.
func (h *CallHandler) Recording(c *gin.Context) {
	const op = "CallHandler.Recording"

	callSID := c.Param("call_sid")
	rec, err := h.calls.GetByCallSID(c.Request.Context(), callSID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.RecordingURL == "" {
		writeError(c, utils.E(utils.CodeNotFound, op, "no recording for this call", nil))
		return
	}
	if h.signer == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "recording storage not configured", nil))
		return
	}

	objectName := objectFromGSURL(rec.RecordingURL)
	if objectName == "" {
		writeError(c, utils.E(utils.CodeInternal, op, "unrecognized recording location", nil))
		return
	}

	url, err := h.signer.SignedGetURL(c.Request.Context(), objectName, 15*time.Minute)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to sign recording url", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// objectFromGSURL strips the gs://bucket/ prefix, leaving the object name.
func objectFromGSURL(u string) string {
	rest, ok := strings.CutPrefix(u, "gs://")
	if !ok {
		return ""
	}
	_, object, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return object
}
