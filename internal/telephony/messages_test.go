package telephony

import (
	"encoding/json"
	"testing"

	"github.com/yoockh/voicedesk/internal/utils"
)

func TestParseStartEvent(t *testing.T) {
	raw := []byte(`{"event":"start","sequenceNumber":"1","start":{"streamSid":"MZaf3c1e","callSid":"CA42f9","customParameters":{"from":"+15550123","to":"+15559876"}}}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	start, ok := ev.(StartEvent)
	if !ok {
		t.Fatalf("expected StartEvent, got %T", ev)
	}
	if start.StreamSID != "MZaf3c1e" || start.CallSID != "CA42f9" {
		t.Errorf("identifiers = %q/%q", start.StreamSID, start.CallSID)
	}
	if start.From != "+15550123" || start.To != "+15559876" {
		t.Errorf("custom parameters = %q/%q", start.From, start.To)
	}
}

func TestParseMediaEventTimestampString(t *testing.T) {
	raw := []byte(`{"event":"media","media":{"timestamp":"5120","payload":"//79"}}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	media, ok := ev.(MediaEvent)
	if !ok {
		t.Fatalf("expected MediaEvent, got %T", ev)
	}
	if media.TimestampMS != 5120 {
		t.Errorf("TimestampMS = %d, want 5120", media.TimestampMS)
	}
	if media.Payload != "//79" {
		t.Errorf("Payload = %q", media.Payload)
	}
}

func TestParseMarkAndStop(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"mark","mark":{"name":"chunk-7"}}`))
	if err != nil {
		t.Fatalf("ParseEvent mark: %v", err)
	}
	if mark, ok := ev.(MarkEvent); !ok || mark.Name != "chunk-7" {
		t.Errorf("mark = %#v", ev)
	}

	ev, err = ParseEvent([]byte(`{"event":"stop"}`))
	if err != nil {
		t.Fatalf("ParseEvent stop: %v", err)
	}
	if _, ok := ev.(StopEvent); !ok {
		t.Errorf("expected StopEvent, got %T", ev)
	}
}

func TestParseUnknownEventKind(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"dtmf","dtmf":{"digit":"5"}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	unknown, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", ev)
	}
	if unknown.Kind != "dtmf" {
		t.Errorf("Kind = %q", unknown.Kind)
	}
}

func TestParseMalformedMessage(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("expected invalid_argument, got %v", err)
	}
}

func TestOutboundCommands(t *testing.T) {
	data, err := MediaCommand("MZ1", "AAAA")
	if err != nil {
		t.Fatalf("MediaCommand: %v", err)
	}
	var media struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &media); err != nil {
		t.Fatalf("unmarshal media: %v", err)
	}
	if media.Event != "media" || media.StreamSID != "MZ1" || media.Media.Payload != "AAAA" {
		t.Errorf("media command = %s", data)
	}

	data, err = MarkCommand("MZ1", "chunk-1")
	if err != nil {
		t.Fatalf("MarkCommand: %v", err)
	}
	var mark struct {
		Event string `json:"event"`
		Mark  struct {
			Name string `json:"name"`
		} `json:"mark"`
	}
	if err := json.Unmarshal(data, &mark); err != nil {
		t.Fatalf("unmarshal mark: %v", err)
	}
	if mark.Event != "mark" || mark.Mark.Name != "chunk-1" {
		t.Errorf("mark command = %s", data)
	}

	data, err = ClearCommand("MZ1")
	if err != nil {
		t.Fatalf("ClearCommand: %v", err)
	}
	var clear struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
	}
	if err := json.Unmarshal(data, &clear); err != nil {
		t.Fatalf("unmarshal clear: %v", err)
	}
	if clear.Event != "clear" || clear.StreamSID != "MZ1" {
		t.Errorf("clear command = %s", data)
	}
}
