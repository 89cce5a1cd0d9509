// Package events publishes live call activity to redis channels so dashboards
// and other subscribers can follow calls in progress.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/call"
)

const publishTimeout = 2 * time.Second

type turnMessage struct {
	Type       string   `json:"type"`
	Role       string   `json:"role"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Level      string   `json:"level,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

type speechMessage struct {
	Type       string   `json:"type"`
	Seq        int64    `json:"seq"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	IsFinal    bool     `json:"is_final"`
	Timestamp  string   `json:"timestamp"`
}

// LiveFeed mirrors one session's transcript onto redis pub/sub. Publish
// failures are logged and dropped so the audio path never stalls on redis.
type LiveFeed struct {
	rdb       *redis.Client
	sessionID string
	log       *logrus.Entry
}

func NewLiveFeed(rdb *redis.Client, sessionID string, log *logrus.Entry) *LiveFeed {
	return &LiveFeed{rdb: rdb, sessionID: sessionID, log: log}
}

func (f *LiveFeed) turnChannel() string   { return "call:" + f.sessionID + ":transcript" }
func (f *LiveFeed) speechChannel() string { return "call:" + f.sessionID + ":speech" }

func (f *LiveFeed) TurnAppended(turn call.Turn) {
	f.publish(f.turnChannel(), turnMessage{
		Type:       "turn",
		Role:       string(turn.Role),
		Text:       turn.Text,
		Confidence: turn.Confidence,
		Level:      string(turn.Level),
		Timestamp:  turn.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (f *LiveFeed) RawObserved(ev call.RawSpeechEvent) {
	if ev.Synthetic {
		return
	}
	f.publish(f.speechChannel(), speechMessage{
		Type:       "speech",
		Seq:        ev.Seq,
		Text:       ev.Text,
		Confidence: ev.Confidence,
		IsFinal:    ev.IsFinal,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (f *LiveFeed) publish(channel string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := f.rdb.Publish(ctx, channel, b).Err(); err != nil {
		f.log.WithError(err).WithField("channel", channel).Debug("live feed publish failed")
	}
}
