package llm

import (
	"context"
	"encoding/json"
)

const labelPrompt = `Summarize this phone support call transcript for a support ticket.
Respond with JSON only, no other text:
{"subject": "short ticket subject", "summary": "2-3 sentence summary"}

Transcript:
`

type labelResult struct {
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

// Labeler produces the ticket subject and summary from the rendered
// transcript.
type Labeler struct {
	provider Provider
}

func NewLabeler(provider Provider) *Labeler {
	return &Labeler{provider: provider}
}

func (l *Labeler) Label(ctx context.Context, transcript string) (string, string, error) {
	raw, err := l.provider.Answer(ctx, labelPrompt+transcript)
	if err != nil {
		return "", "", err
	}

	var result labelResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return "", "", err
	}
	return result.Subject, result.Summary, nil
}
