// Package summarizer turns a finished call's conversation state into a
// structured support-ticket draft.
package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/call"
	"github.com/yoockh/voicedesk/internal/utils"
)

// Priority is the ticket urgency tier.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// TicketDraft is built exactly once at session end and never mutated after
// submission.
type TicketDraft struct {
	Subject             string
	Summary             string
	Email               string
	Priority            Priority
	ResolvedQuestions   []string
	UnresolvedQuestions []string
	TranscriptRendering string
}

// Labeler generates the subject and summary lines from the rendered
// transcript. Failures fall back to heuristic labels.
type Labeler interface {
	Label(ctx context.Context, transcript string) (subject, summary string, err error)
}

// Summarizer derives the ticket draft from conversation state plus the
// optional batch audio transcript produced after the call.
type Summarizer struct {
	thresholds call.ConfidenceThresholds
	labeler    Labeler
	log        *logrus.Entry
}

func New(labeler Labeler, log *logrus.Entry) *Summarizer {
	return &Summarizer{
		thresholds: call.AuditThresholds,
		labeler:    labeler,
		log:        log,
	}
}

var interrogativeLeads = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "would", "will", "should", "do", "does", "did", "is", "are",
}

var requestPhrases = []string{
	"i need",
	"i want to know",
	"i'd like to know",
	"help me",
	"how do i",
	"tell me",
	"i'm trying to",
}

var positiveClosingPhrases = []string{
	"thank",
	"thanks",
	"that helps",
	"that's helpful",
	"perfect",
	"great",
	"awesome",
	"got it",
}

var emailConfirmation = regexp.MustCompile(`(?i)(?:noted|confirmed|recorded) your email as\s+(\S+@\S+)`)

// Summarize builds the ticket draft. Pure over its inputs: no state mutation
// beyond reading snapshots.
func (s *Summarizer) Summarize(ctx context.Context, state *call.ConversationState, auditTranscript string) TicketDraft {
	turns := state.Turns()

	email := s.resolveEmail(state, turns)
	resolved, unresolved := s.partitionQuestions(turns)
	rendering := s.renderTranscript(state, auditTranscript)
	priority := s.derivePriority(state, turns, unresolved)

	subject, summary := s.label(ctx, turns, rendering, unresolved)

	return TicketDraft{
		Subject:             subject,
		Summary:             summary,
		Email:               email,
		Priority:            priority,
		ResolvedQuestions:   resolved,
		UnresolvedQuestions: unresolved,
		TranscriptRendering: rendering,
	}
}

// resolveEmail prefers the live-captured address, then re-scans the caller's
// own words, then falls back to the agent's confirmation phrasing.
func (s *Summarizer) resolveEmail(state *call.ConversationState, turns []call.Turn) string {
	if caller := state.Caller(); caller.HasProvidedEmail {
		return caller.Email
	}

	var userText strings.Builder
	for _, t := range turns {
		if t.Role == call.RoleUser {
			userText.WriteString(t.Text)
			userText.WriteString(" ")
		}
	}
	if email, ok := utils.ExtractEmail(userText.String()); ok {
		return email
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != call.RoleAssistant {
			continue
		}
		if m := emailConfirmation.FindStringSubmatch(turns[i].Text); m != nil {
			if email, ok := utils.ExtractEmail(m[1]); ok {
				return email
			}
		}
	}
	return ""
}

// isQuestion classifies one caller utterance by punctuation, leading
// interrogative word, or fixed request phrasing.
func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	first := strings.Fields(trimmed)[0]
	for _, lead := range interrogativeLeads {
		if first == lead {
			return true
		}
	}
	for _, p := range requestPhrases {
		if strings.Contains(trimmed, p) {
			return true
		}
	}
	return false
}

const resolvedAnswerMinWords = 10

var unresolvedAnswerMarkers = []string{
	"couldn't find",
	"could not find",
	"don't have information",
	"don't have that information",
	"no information about",
	"unable to find",
	"i cannot help",
	"i can't help",
	"cannot assist",
	"transfer you",
	"connect you",
}

// partitionQuestions walks the transcript pairing each caller question with
// the assistant turn that follows it.
func (s *Summarizer) partitionQuestions(turns []call.Turn) (resolved, unresolved []string) {
	for i, t := range turns {
		if t.Role != call.RoleUser || !isQuestion(t.Text) {
			continue
		}

		answered := false
		for j := i + 1; j < len(turns); j++ {
			if turns[j].Role != call.RoleAssistant {
				continue
			}
			answer := strings.ToLower(turns[j].Text)
			if hasAny(answer, unresolvedAnswerMarkers) {
				break
			}
			if len(strings.Fields(answer)) >= resolvedAnswerMinWords {
				answered = true
			}
			break
		}

		if answered {
			resolved = append(resolved, t.Text)
		} else {
			unresolved = append(unresolved, t.Text)
		}
	}
	return resolved, unresolved
}

// derivePriority: any unresolved question or knowledge-base miss is HIGH;
// human follow-up for other reasons is MEDIUM; LOW needs everything resolved
// plus a positive closing note from the caller.
func (s *Summarizer) derivePriority(state *call.ConversationState, turns []call.Turn, unresolved []string) Priority {
	if len(unresolved) > 0 || !state.KBMatchFound() {
		return PriorityHigh
	}
	if state.RequiresHumanFollowup() {
		return PriorityMedium
	}
	if positiveClosing(turns) {
		return PriorityLow
	}
	return PriorityMedium
}

func positiveClosing(turns []call.Turn) bool {
	seen := 0
	for i := len(turns) - 1; i >= 0 && seen < 3; i-- {
		if turns[i].Role != call.RoleUser {
			continue
		}
		seen++
		if hasAny(strings.ToLower(turns[i].Text), positiveClosingPhrases) {
			return true
		}
	}
	return false
}

func (s *Summarizer) renderTranscript(state *call.ConversationState, auditTranscript string) string {
	// An empty rendering downstream means "nothing happened, no ticket".
	if len(state.Turns()) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("Conversation:\n")
	for _, t := range state.Turns() {
		line := fmt.Sprintf("[%s] %s: %s", t.Timestamp.Format("15:04:05"), t.Role, t.Text)
		if t.Confidence != nil {
			line += fmt.Sprintf(" (confidence: %.2f %s)", *t.Confidence, t.Level)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	raw := state.RawObservations()
	if len(raw) > 0 {
		sb.WriteString("\nRaw speech log:\n")
		for _, ev := range raw {
			line := fmt.Sprintf("[%s] %s", ev.Timestamp.Format("15:04:05"), ev.Text)
			if ev.Confidence != nil {
				line += fmt.Sprintf(" (%s)", s.thresholds.Classify(*ev.Confidence))
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if strings.TrimSpace(auditTranscript) != "" {
		sb.WriteString("\nRecording transcript:\n")
		sb.WriteString(auditTranscript)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *Summarizer) label(ctx context.Context, turns []call.Turn, rendering string, unresolved []string) (string, string) {
	if s.labeler != nil {
		subject, summary, err := s.labeler.Label(ctx, rendering)
		if err == nil && subject != "" {
			return subject, summary
		}
		if err != nil {
			s.log.WithError(err).Warn("labeler failed, using heuristic labels")
		}
	}

	subject := "Support call"
	for _, t := range turns {
		if t.Role == call.RoleUser {
			subject = "Support call: " + truncate(t.Text, 60)
			break
		}
	}
	summary := fmt.Sprintf("Phone support call with %d turns; %d unresolved question(s).", len(turns), len(unresolved))
	return subject, summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func hasAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
