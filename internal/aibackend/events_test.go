package aibackend

import (
	"encoding/json"
	"testing"

	"github.com/yoockh/voicedesk/internal/utils"
)

func TestParseEventMapping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "session created",
			raw:  `{"type":"session.created","session":{"id":"sess_1"}}`,
			want: SessionReady{},
		},
		{
			name: "session updated",
			raw:  `{"type":"session.updated"}`,
			want: SessionReady{},
		},
		{
			name: "speech started",
			raw:  `{"type":"input_audio_buffer.speech_started","audio_start_ms":1200}`,
			want: SpeechStarted{},
		},
		{
			name: "speech stopped",
			raw:  `{"type":"input_audio_buffer.speech_stopped"}`,
			want: SpeechStopped{},
		},
		{
			name: "audio delta",
			raw:  `{"type":"response.audio.delta","item_id":"item_9","delta":"//79"}`,
			want: AudioDelta{ItemID: "item_9", Payload: "//79"},
		},
		{
			name: "assistant transcript",
			raw:  `{"type":"response.audio_transcript.done","item_id":"item_9","transcript":"Happy to help."}`,
			want: AssistantTranscript{ItemID: "item_9", Text: "Happy to help."},
		},
		{
			name: "response done",
			raw:  `{"type":"response.done"}`,
			want: ResponseDone{},
		},
		{
			name: "truncated",
			raw:  `{"type":"conversation.item.truncated","item_id":"item_9"}`,
			want: Truncated{ItemID: "item_9"},
		},
		{
			name: "error",
			raw:  `{"type":"error","error":{"message":"rate limit"}}`,
			want: BackendError{Message: "rate limit"},
		},
		{
			name: "unknown type",
			raw:  `{"type":"rate_limits.updated"}`,
			want: UnknownEvent{Kind: "rate_limits.updated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseEvent = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseTranscriptionEvents(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"conversation.item.input_audio_transcription.delta","delta":"my order num"}`))
	if err != nil {
		t.Fatalf("ParseEvent delta: %v", err)
	}
	partial, ok := ev.(Transcription)
	if !ok {
		t.Fatalf("expected Transcription, got %T", ev)
	}
	if partial.IsFinal || partial.Text != "my order num" || partial.Confidence != nil {
		t.Errorf("partial = %#v", partial)
	}

	ev, err = ParseEvent([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"my order number is 42","confidence":0.93}`))
	if err != nil {
		t.Fatalf("ParseEvent completed: %v", err)
	}
	final, ok := ev.(Transcription)
	if !ok {
		t.Fatalf("expected Transcription, got %T", ev)
	}
	if !final.IsFinal || final.Text != "my order number is 42" {
		t.Errorf("final = %#v", final)
	}
	if final.Confidence == nil || *final.Confidence != 0.93 {
		t.Errorf("Confidence = %v", final.Confidence)
	}
}

func TestParseMalformedBackendMessage(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type"`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("expected invalid_argument, got %v", err)
	}
}

func TestSessionUpdateCommand(t *testing.T) {
	data, err := SessionUpdateCommand(DefaultSessionConfig("alloy", "Be helpful."))
	if err != nil {
		t.Fatalf("SessionUpdateCommand: %v", err)
	}

	var msg struct {
		Type    string `json:"type"`
		Session struct {
			TurnDetection struct {
				Type              string  `json:"type"`
				Threshold         float64 `json:"threshold"`
				SilenceDurationMS int     `json:"silence_duration_ms"`
			} `json:"turn_detection"`
			InputAudioFormat        string   `json:"input_audio_format"`
			OutputAudioFormat       string   `json:"output_audio_format"`
			Voice                   string   `json:"voice"`
			Instructions            string   `json:"instructions"`
			Modalities              []string `json:"modalities"`
			InputAudioTranscription struct {
				Model string `json:"model"`
			} `json:"input_audio_transcription"`
		} `json:"session"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "session.update" {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Session.Voice != "alloy" || msg.Session.Instructions != "Be helpful." {
		t.Errorf("voice/instructions = %q/%q", msg.Session.Voice, msg.Session.Instructions)
	}
	if msg.Session.InputAudioFormat != "g711_ulaw" || msg.Session.OutputAudioFormat != "g711_ulaw" {
		t.Errorf("audio formats = %q/%q", msg.Session.InputAudioFormat, msg.Session.OutputAudioFormat)
	}
	if msg.Session.TurnDetection.Type != "server_vad" || msg.Session.TurnDetection.SilenceDurationMS != 500 {
		t.Errorf("turn detection = %#v", msg.Session.TurnDetection)
	}
	if len(msg.Session.Modalities) != 2 {
		t.Errorf("modalities = %v", msg.Session.Modalities)
	}
	if msg.Session.InputAudioTranscription.Model != "whisper-1" {
		t.Errorf("transcription model = %q", msg.Session.InputAudioTranscription.Model)
	}
}

func TestAudioAndTruncateCommands(t *testing.T) {
	data, err := AudioAppendCommand("AAAA")
	if err != nil {
		t.Fatalf("AudioAppendCommand: %v", err)
	}
	var app struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("unmarshal append: %v", err)
	}
	if app.Type != "input_audio_buffer.append" || app.Audio != "AAAA" {
		t.Errorf("append command = %s", data)
	}

	data, err = TruncateCommand("item_3", 0, 2150)
	if err != nil {
		t.Fatalf("TruncateCommand: %v", err)
	}
	var trunc struct {
		Type         string `json:"type"`
		ItemID       string `json:"item_id"`
		ContentIndex int    `json:"content_index"`
		AudioEndMS   int64  `json:"audio_end_ms"`
	}
	if err := json.Unmarshal(data, &trunc); err != nil {
		t.Fatalf("unmarshal truncate: %v", err)
	}
	if trunc.Type != "conversation.item.truncate" || trunc.ItemID != "item_3" || trunc.AudioEndMS != 2150 {
		t.Errorf("truncate command = %s", data)
	}

	data, err = ResponseCreateCommand()
	if err != nil {
		t.Fatalf("ResponseCreateCommand: %v", err)
	}
	if string(data) != `{"type":"response.create"}` {
		t.Errorf("response.create command = %s", data)
	}
}
