// Package aibackend speaks the realtime speech API: session configuration and
// audio-append commands out, speech events and audio deltas in.
package aibackend

import (
	"encoding/json"

	"github.com/yoockh/voicedesk/internal/utils"
)

// Event is one decoded inbound backend message.
type Event interface {
	backendKind() string
}

// SessionReady signals the backend accepted the channel or its configuration.
type SessionReady struct{}

// SpeechStarted is the backend's voice-activity signal: the caller began
// talking.
type SpeechStarted struct{}

// SpeechStopped is the matching end-of-speech signal.
type SpeechStopped struct{}

// Transcription is a speech-recognition phrase event for caller audio.
type Transcription struct {
	Text       string
	Confidence *float64
	IsFinal    bool
}

// AudioDelta is one chunk of synthesized assistant audio, tagged with the
// conversational item that produced it.
type AudioDelta struct {
	ItemID  string
	Payload string // base64 µ-law
}

// AssistantTranscript is the finalized text of one spoken assistant turn.
type AssistantTranscript struct {
	ItemID string
	Text   string
}

// ResponseDone marks the end of an assistant response.
type ResponseDone struct{}

// Truncated acknowledges a truncate instruction.
type Truncated struct {
	ItemID string
}

// BackendError is a backend-reported error; sessions log it and keep going.
type BackendError struct {
	Message string
}

// UnknownEvent is the fallthrough for message kinds this bridge does not
// handle; logged and ignored.
type UnknownEvent struct {
	Kind string
}

func (SessionReady) backendKind() string        { return "session" }
func (SpeechStarted) backendKind() string       { return "speech_started" }
func (SpeechStopped) backendKind() string       { return "speech_stopped" }
func (Transcription) backendKind() string       { return "transcription" }
func (AudioDelta) backendKind() string          { return "audio_delta" }
func (AssistantTranscript) backendKind() string { return "assistant_transcript" }
func (ResponseDone) backendKind() string        { return "response_done" }
func (Truncated) backendKind() string           { return "truncated" }
func (BackendError) backendKind() string        { return "error" }
func (e UnknownEvent) backendKind() string      { return e.Kind }

type wireEvent struct {
	Type       string   `json:"type"`
	Delta      string   `json:"delta"`
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence"`
	ItemID     string   `json:"item_id"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one inbound backend message. Malformed payloads return
// an error so the caller can drop the single message.
func ParseEvent(data []byte) (Event, error) {
	const op = "aibackend.ParseEvent"

	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "malformed backend message", err)
	}

	switch w.Type {
	case "session.created", "session.updated":
		return SessionReady{}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStarted{}, nil
	case "input_audio_buffer.speech_stopped":
		return SpeechStopped{}, nil
	case "conversation.item.input_audio_transcription.delta":
		return Transcription{Text: w.Delta, Confidence: w.Confidence}, nil
	case "conversation.item.input_audio_transcription.completed":
		return Transcription{Text: w.Transcript, Confidence: w.Confidence, IsFinal: true}, nil
	case "response.audio.delta":
		return AudioDelta{ItemID: w.ItemID, Payload: w.Delta}, nil
	case "response.audio_transcript.done":
		return AssistantTranscript{ItemID: w.ItemID, Text: w.Transcript}, nil
	case "response.done":
		return ResponseDone{}, nil
	case "conversation.item.truncated":
		return Truncated{ItemID: w.ItemID}, nil
	case "error":
		ev := BackendError{}
		if w.Error != nil {
			ev.Message = w.Error.Message
		}
		return ev, nil
	default:
		return UnknownEvent{Kind: w.Type}, nil
	}
}

// SessionConfig is the once-per-session backend configuration.
type SessionConfig struct {
	Voice             string
	Instructions      string
	Temperature       float64
	TurnDetection     TurnDetection
	InputAudioFormat  string
	OutputAudioFormat string
}

// TurnDetection tunes the backend's server-side voice activity detection.
type TurnDetection struct {
	Type              string
	Threshold         float64
	PrefixPaddingMS   int
	SilenceDurationMS int
	CreateResponse    bool
	InterruptResponse bool
}

func DefaultSessionConfig(voice, instructions string) SessionConfig {
	return SessionConfig{
		Voice:             voice,
		Instructions:      instructions,
		Temperature:       0.8,
		InputAudioFormat:  "g711_ulaw",
		OutputAudioFormat: "g711_ulaw",
		TurnDetection: TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
			CreateResponse:    true,
			InterruptResponse: true,
		},
	}
}

type sessionUpdate struct {
	Type    string `json:"type"`
	Session struct {
		TurnDetection struct {
			Type              string  `json:"type"`
			Threshold         float64 `json:"threshold"`
			PrefixPaddingMS   int     `json:"prefix_padding_ms"`
			SilenceDurationMS int     `json:"silence_duration_ms"`
			CreateResponse    bool    `json:"create_response"`
			InterruptResponse bool    `json:"interrupt_response"`
		} `json:"turn_detection"`
		InputAudioFormat        string   `json:"input_audio_format"`
		OutputAudioFormat       string   `json:"output_audio_format"`
		Voice                   string   `json:"voice"`
		Instructions            string   `json:"instructions"`
		Modalities              []string `json:"modalities"`
		Temperature             float64  `json:"temperature"`
		InputAudioTranscription struct {
			Model string `json:"model"`
		} `json:"input_audio_transcription"`
	} `json:"session"`
}

// SessionUpdateCommand encodes the session-configuration message.
func SessionUpdateCommand(cfg SessionConfig) ([]byte, error) {
	msg := sessionUpdate{Type: "session.update"}
	msg.Session.TurnDetection.Type = cfg.TurnDetection.Type
	msg.Session.TurnDetection.Threshold = cfg.TurnDetection.Threshold
	msg.Session.TurnDetection.PrefixPaddingMS = cfg.TurnDetection.PrefixPaddingMS
	msg.Session.TurnDetection.SilenceDurationMS = cfg.TurnDetection.SilenceDurationMS
	msg.Session.TurnDetection.CreateResponse = cfg.TurnDetection.CreateResponse
	msg.Session.TurnDetection.InterruptResponse = cfg.TurnDetection.InterruptResponse
	msg.Session.InputAudioFormat = cfg.InputAudioFormat
	msg.Session.OutputAudioFormat = cfg.OutputAudioFormat
	msg.Session.Voice = cfg.Voice
	msg.Session.Instructions = cfg.Instructions
	msg.Session.Modalities = []string{"text", "audio"}
	msg.Session.Temperature = cfg.Temperature
	msg.Session.InputAudioTranscription.Model = "whisper-1"
	return json.Marshal(msg)
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// AudioAppendCommand encodes one inbound caller frame for the backend.
func AudioAppendCommand(payloadB64 string) ([]byte, error) {
	return json.Marshal(audioAppend{Type: "input_audio_buffer.append", Audio: payloadB64})
}

type itemTruncate struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
}

// TruncateCommand encodes the cut-off instruction for an in-flight turn.
func TruncateCommand(itemID string, contentIndex int, audioEndMS int64) ([]byte, error) {
	return json.Marshal(itemTruncate{
		Type:         "conversation.item.truncate",
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMS:   audioEndMS,
	})
}

type responseCreate struct {
	Type string `json:"type"`
}

// ResponseCreateCommand asks the backend to produce the next assistant turn.
func ResponseCreateCommand() ([]byte, error) {
	return json.Marshal(responseCreate{Type: "response.create"})
}
