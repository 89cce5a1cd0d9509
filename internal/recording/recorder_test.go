package recording

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/yoockh/voicedesk/internal/utils"
)

func b64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func TestRecorderAppendsBothDirections(t *testing.T) {
	r := NewRecorder()
	r.AppendInbound(b64([]byte{0x01, 0x02}))
	r.AppendOutbound(b64([]byte{0x03}))

	if !r.HasAudio() {
		t.Fatal("HasAudio = false after appending frames")
	}
	if got := r.Raw(); !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Raw = %v", got)
	}
}

func TestRecorderDropsUndecodableFrame(t *testing.T) {
	r := NewRecorder()
	r.AppendInbound("%%%not-base64%%%")
	r.AppendInbound(b64([]byte{0x7F}))

	if got := r.Raw(); !bytes.Equal(got, []byte{0x7F}) {
		t.Errorf("Raw = %v, want the valid frame only", got)
	}
}

func TestRecorderDurationSeconds(t *testing.T) {
	r := NewRecorder()
	// 8000 samples at 8 kHz is exactly one second.
	r.AppendInbound(b64(make([]byte, 8000)))
	r.AppendOutbound(b64(make([]byte, 4000)))

	if got := r.DurationSeconds(); got != 1.5 {
		t.Errorf("DurationSeconds = %v, want 1.5", got)
	}
}

func TestRecorderWAVHeader(t *testing.T) {
	r := NewRecorder()
	audio := []byte{0xFF, 0xFE, 0xFD, 0xFC}
	r.AppendInbound(b64(audio))

	wav, err := r.WAV()
	if err != nil {
		t.Fatalf("WAV: %v", err)
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: % x", wav[:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); int(got) != len(wav)-8 {
		t.Errorf("RIFF size = %d, want %d", got, len(wav)-8)
	}

	if string(wav[12:16]) != "fmt " {
		t.Fatalf("missing fmt chunk: %q", wav[12:16])
	}
	if got := binary.LittleEndian.Uint32(wav[16:20]); got != 18 {
		t.Errorf("fmt chunk size = %d, want 18", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 7 {
		t.Errorf("format tag = %d, want 7 (mu-law)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want mono", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 8000 {
		t.Errorf("sample rate = %d, want 8000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 8 {
		t.Errorf("bits per sample = %d, want 8", got)
	}

	// fmt is 18 bytes, so fact starts at offset 38.
	if string(wav[38:42]) != "fact" {
		t.Fatalf("missing fact chunk: %q", wav[38:42])
	}
	if got := binary.LittleEndian.Uint32(wav[46:50]); int(got) != len(audio) {
		t.Errorf("fact sample count = %d, want %d", got, len(audio))
	}

	if string(wav[50:54]) != "data" {
		t.Fatalf("missing data chunk: %q", wav[50:54])
	}
	if got := binary.LittleEndian.Uint32(wav[54:58]); int(got) != len(audio) {
		t.Errorf("data chunk size = %d, want %d", got, len(audio))
	}
	if !bytes.Equal(wav[58:], audio) {
		t.Errorf("data payload = % x", wav[58:])
	}
}

func TestRecorderWAVEmpty(t *testing.T) {
	_, err := NewRecorder().WAV()
	if err == nil {
		t.Fatal("expected error for empty recording")
	}
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
