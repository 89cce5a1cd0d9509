// Package ticketing submits post-call ticket drafts to the external
// support-desk API.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/summarizer"
	"github.com/yoockh/voicedesk/internal/utils"
)

const (
	submitTimeout  = 15 * time.Second
	submitAttempts = 3
)

type payload struct {
	SessionID           string   `json:"session_id"`
	Subject             string   `json:"subject"`
	Summary             string   `json:"summary"`
	Email               string   `json:"email,omitempty"`
	Priority            string   `json:"priority"`
	ResolvedQuestions   []string `json:"resolved_questions,omitempty"`
	UnresolvedQuestions []string `json:"unresolved_questions,omitempty"`
	TranscriptText      string   `json:"transcript_text"`
	TranscriptHTML      string   `json:"transcript_html"`
}

// Client posts ticket drafts. Submission is idempotent per session: repeated
// calls for the same session ID after a success are no-ops.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logrus.Entry

	mu        sync.Mutex
	submitted map[string]bool
}

func NewClient(endpoint, apiKey string, log *logrus.Entry) *Client {
	return &Client{
		endpoint:  endpoint,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: submitTimeout},
		log:       log,
		submitted: make(map[string]bool),
	}
}

// Submit sends the draft to the ticketing endpoint. Empty transcripts are
// skipped with a warning rather than producing empty tickets.
func (c *Client) Submit(ctx context.Context, sessionID string, draft summarizer.TicketDraft) error {
	const op = "ticketing.Submit"

	if strings.TrimSpace(draft.TranscriptRendering) == "" {
		c.log.WithField("session_id", sessionID).Warn("skipping ticket for empty transcript")
		return nil
	}

	c.mu.Lock()
	if c.submitted[sessionID] {
		c.mu.Unlock()
		c.log.WithField("session_id", sessionID).Info("ticket already submitted for session")
		return nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(payload{
		SessionID:           sessionID,
		Subject:             draft.Subject,
		Summary:             draft.Summary,
		Email:               draft.Email,
		Priority:            string(draft.Priority),
		ResolvedQuestions:   draft.ResolvedQuestions,
		UnresolvedQuestions: draft.UnresolvedQuestions,
		TranscriptText:      draft.TranscriptRendering,
		TranscriptHTML:      renderHTML(draft),
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "marshal ticket payload", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("ticketing endpoint returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("ticketing endpoint returned %d", resp.StatusCode))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), submitAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.log.WithError(err).WithField("session_id", sessionID).Warn("ticket submission failed")
		return utils.E(utils.CodeUnavailable, op, "submit ticket", err)
	}

	c.mu.Lock()
	c.submitted[sessionID] = true
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"priority":   draft.Priority,
	}).Info("ticket submitted")
	return nil
}

func renderHTML(draft summarizer.TicketDraft) string {
	var sb strings.Builder
	sb.WriteString("<h2>" + html.EscapeString(draft.Subject) + "</h2>")
	sb.WriteString("<p>" + html.EscapeString(draft.Summary) + "</p>")
	sb.WriteString("<p><strong>Priority:</strong> " + html.EscapeString(string(draft.Priority)) + "</p>")
	if draft.Email != "" {
		sb.WriteString("<p><strong>Caller email:</strong> " + html.EscapeString(draft.Email) + "</p>")
	}
	writeList(&sb, "Resolved questions", draft.ResolvedQuestions)
	writeList(&sb, "Unresolved questions", draft.UnresolvedQuestions)
	sb.WriteString("<h3>Transcript</h3><pre>" + html.EscapeString(draft.TranscriptRendering) + "</pre>")
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("<h3>" + html.EscapeString(title) + "</h3><ul>")
	for _, item := range items {
		sb.WriteString("<li>" + html.EscapeString(item) + "</li>")
	}
	sb.WriteString("</ul>")
}
