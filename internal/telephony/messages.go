// Package telephony models the provider's bidirectional media-stream
// protocol: inbound start/media/mark/stop events and outbound
// media/mark/clear commands, plus live-call control over the REST API.
package telephony

import (
	"encoding/json"
	"strconv"

	"github.com/yoockh/voicedesk/internal/utils"
)

// Event is one decoded inbound message from the media stream. Exactly one of
// the concrete types below.
type Event interface {
	eventKind() string
}

// StartEvent opens the stream and carries the call identifiers.
type StartEvent struct {
	StreamSID string
	CallSID   string
	From      string
	To        string
}

// MediaEvent is one base64 µ-law audio frame from the caller. TimestampMS is
// milliseconds since stream start.
type MediaEvent struct {
	TimestampMS int64
	Payload     string
}

// MarkEvent acknowledges the oldest outstanding playback mark, FIFO.
type MarkEvent struct {
	Name string
}

// StopEvent ends the stream.
type StopEvent struct{}

// UnknownEvent is the fallthrough for unrecognized message kinds; callers log
// and drop it rather than failing the channel.
type UnknownEvent struct {
	Kind string
}

func (StartEvent) eventKind() string     { return "start" }
func (MediaEvent) eventKind() string     { return "media" }
func (MarkEvent) eventKind() string      { return "mark" }
func (StopEvent) eventKind() string      { return "stop" }
func (e UnknownEvent) eventKind() string { return e.Kind }

type wireEvent struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media *struct {
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// ParseEvent decodes one inbound frame. Malformed payloads return an error so
// the caller can log and drop the single message.
func ParseEvent(data []byte) (Event, error) {
	const op = "telephony.ParseEvent"

	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "malformed stream message", err)
	}

	switch w.Event {
	case "start":
		ev := StartEvent{}
		if w.Start != nil {
			ev.StreamSID = w.Start.StreamSID
			ev.CallSID = w.Start.CallSID
			ev.From = w.Start.CustomParameters["from"]
			ev.To = w.Start.CustomParameters["to"]
		}
		return ev, nil
	case "media":
		ev := MediaEvent{}
		if w.Media != nil {
			ev.Payload = w.Media.Payload
			// The wire carries the timestamp as a decimal string.
			if ts, err := strconv.ParseInt(w.Media.Timestamp, 10, 64); err == nil {
				ev.TimestampMS = ts
			}
		}
		return ev, nil
	case "mark":
		ev := MarkEvent{}
		if w.Mark != nil {
			ev.Name = w.Mark.Name
		}
		return ev, nil
	case "stop":
		return StopEvent{}, nil
	default:
		return UnknownEvent{Kind: w.Event}, nil
	}
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundMark struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// MediaCommand encodes an outbound audio frame for the given stream.
func MediaCommand(streamSID, payloadB64 string) ([]byte, error) {
	msg := outboundMedia{Event: "media", StreamSID: streamSID}
	msg.Media.Payload = payloadB64
	return json.Marshal(msg)
}

// MarkCommand encodes a playback mark the transport echoes back once played.
func MarkCommand(streamSID, name string) ([]byte, error) {
	msg := outboundMark{Event: "mark", StreamSID: streamSID}
	msg.Mark.Name = name
	return json.Marshal(msg)
}

// ClearCommand encodes the discard-buffered-audio instruction.
func ClearCommand(streamSID string) ([]byte, error) {
	return json.Marshal(outboundClear{Event: "clear", StreamSID: streamSID})
}
