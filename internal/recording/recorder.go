// Package recording accumulates a call's µ-law audio and renders it as a
// playable WAV artifact.
package recording

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"sync"

	"github.com/yoockh/voicedesk/internal/utils"
)

const (
	sampleRateHz = 8000
	// waveFormatMulaw is the RIFF format tag for G.711 µ-law; the frames go
	// into the container as-is, no transcoding.
	waveFormatMulaw = 7
)

// Recorder collects both directions of a call in arrival order into one mono
// µ-law track.
type Recorder struct {
	mu     sync.Mutex
	frames []byte
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// AppendInbound adds one caller frame (base64 µ-law). Undecodable frames are
// dropped silently; a missing frame is inaudible, a failed call is not.
func (r *Recorder) AppendInbound(payloadB64 string) {
	r.appendB64(payloadB64)
}

// AppendOutbound adds one assistant frame.
func (r *Recorder) AppendOutbound(payloadB64 string) {
	r.appendB64(payloadB64)
}

func (r *Recorder) appendB64(payloadB64 string) {
	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.frames = append(r.frames, raw...)
	r.mu.Unlock()
}

// Raw returns a copy of the bare µ-law frames, for batch transcription.
func (r *Recorder) Raw() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *Recorder) HasAudio() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames) > 0
}

// DurationSeconds is the recorded length at the wire sample rate.
func (r *Recorder) DurationSeconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(len(r.frames)) / sampleRateHz
}

// WAV renders the recording as a G.711 µ-law WAV file.
func (r *Recorder) WAV() ([]byte, error) {
	const op = "Recorder.WAV"

	r.mu.Lock()
	data := make([]byte, len(r.frames))
	copy(data, r.frames)
	r.mu.Unlock()

	if len(data) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no audio recorded", nil)
	}

	var buf bytes.Buffer
	u32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	u16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }

	// RIFF header: fmt (18 bytes) + fact + data chunks.
	riffSize := 4 + (8 + 18) + (8 + 4) + (8 + len(data))
	buf.WriteString("RIFF")
	u32(uint32(riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	u32(18)
	u16(waveFormatMulaw)
	u16(1) // mono
	u32(sampleRateHz)
	u32(sampleRateHz) // byte rate: 1 byte per sample
	u16(1)            // block align
	u16(8)            // bits per sample
	u16(0)            // no extension bytes

	buf.WriteString("fact")
	u32(4)
	u32(uint32(len(data)))

	buf.WriteString("data")
	u32(uint32(len(data)))
	buf.Write(data)

	return buf.Bytes(), nil
}
