package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/call"
)

const adjudicationPrompt = `You are reviewing a phone support conversation between an AI agent and a caller.
Decide whether the call should be forwarded to a human agent. Forward when the
caller is frustrated, the AI is failing to help, or the topic needs a human.
Respond with JSON only, no other text:
{"should_forward": true|false, "reason": "one short sentence"}

Conversation:
`

type adjudicationResult struct {
	ShouldForward bool   `json:"should_forward"`
	Reason        string `json:"reason"`
}

// Adjudicator asks the model for a forwarding verdict over the full
// transcript. Unparseable output is an error; the caller treats errors as a
// no-forward verdict.
type Adjudicator struct {
	provider Provider
	log      *logrus.Entry
}

func NewAdjudicator(provider Provider, log *logrus.Entry) *Adjudicator {
	return &Adjudicator{provider: provider, log: log}
}

func (a *Adjudicator) Adjudicate(ctx context.Context, turns []call.Turn) (call.Verdict, error) {
	var sb strings.Builder
	sb.WriteString(adjudicationPrompt)
	for _, t := range turns {
		sb.WriteString(string(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}

	raw, err := a.provider.Answer(ctx, sb.String())
	if err != nil {
		return call.Verdict{}, err
	}

	var result adjudicationResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		a.log.WithField("raw", raw).Warn("unparseable adjudication response")
		return call.Verdict{}, err
	}

	return call.Verdict{ShouldForward: result.ShouldForward, Reason: result.Reason}, nil
}

// extractJSON strips markdown fences and surrounding prose the model
// sometimes adds around the JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
