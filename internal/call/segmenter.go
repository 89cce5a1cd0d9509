package call

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// speechStartDebounce absorbs duplicate speech-start chatter from the
	// AI backend: starts within this window of the previous one are dropped.
	speechStartDebounce = 500 * time.Millisecond

	// silenceSentinel is the µ-law encoding of digital silence.
	silenceSentinel = 0xFF

	silenceCheckMinFrames = 50
	silenceCheckWindow    = 20
)

// Segmenter tracks the single in-flight caller utterance, bridging explicit
// speech-start/stop signals from the AI backend with a silence heuristic over
// the raw µ-law frames. Safety net for backends that never emit their own
// end-of-speech signal.
type Segmenter struct {
	transcript *Transcript
	log        *logrus.Entry
	now        func() time.Time

	active     *SpeechSegment
	lastStart  time.Time
	frameCount int
	recent     [][]byte
}

func NewSegmenter(transcript *Transcript, log *logrus.Entry) *Segmenter {
	return &Segmenter{
		transcript: transcript,
		log:        log,
		now:        time.Now,
	}
}

// Active reports whether an utterance is currently in flight.
func (sg *Segmenter) Active() bool { return sg.active != nil }

// OnSpeechStart handles a speech-start signal. Signals inside the debounce
// window are ignored entirely: no new segment, no side effects. Returns
// whether a segment actually started, so the caller can run barge-in
// truncation after the segment is allocated.
func (sg *Segmenter) OnSpeechStart() bool {
	now := sg.now()
	if !sg.lastStart.IsZero() && now.Sub(sg.lastStart) < speechStartDebounce {
		sg.log.Debug("speech start debounced")
		return false
	}
	sg.lastStart = now

	if sg.active != nil {
		// Backend re-signalled without closing the previous segment.
		sg.closeSegment(now)
	}

	sg.active = &SpeechSegment{ID: uuid.NewString(), StartTime: now}
	sg.frameCount = 0
	sg.recent = sg.recent[:0]
	sg.log.WithField("segment_id", sg.active.ID).Debug("speech segment started")
	return true
}

// OnTranscription folds a partial or final recognition into the live segment,
// last write wins.
func (sg *Segmenter) OnTranscription(text string, confidence *float64, isFinal bool) {
	if sg.active == nil {
		return
	}
	sg.active.Transcription = text
	sg.active.Confidence = confidence
	sg.active.IsFinal = isFinal
}

// ObserveFrame feeds one inbound µ-law frame into the silence heuristic.
// Returns true when the heuristic forced an end-of-speech transition.
func (sg *Segmenter) ObserveFrame(frame []byte) bool {
	if sg.active == nil {
		return false
	}
	sg.frameCount++
	sg.recent = append(sg.recent, frame)
	if len(sg.recent) > silenceCheckWindow {
		sg.recent = sg.recent[1:]
	}
	if sg.frameCount <= silenceCheckMinFrames || len(sg.recent) < silenceCheckWindow {
		return false
	}
	for _, f := range sg.recent {
		for _, b := range f {
			if b != silenceSentinel {
				return false
			}
		}
	}
	sg.log.WithField("segment_id", sg.active.ID).Debug("silence heuristic forced speech end")
	sg.OnSpeechStop()
	return true
}

// OnSpeechStop closes the active segment, if any.
func (sg *Segmenter) OnSpeechStop() {
	if sg.active == nil {
		return
	}
	sg.closeSegment(sg.now())
}

func (sg *Segmenter) closeSegment(end time.Time) {
	seg := sg.active
	sg.active = nil
	sg.frameCount = 0
	sg.recent = nil

	seg.EndTime = end
	duration := end.Sub(seg.StartTime)

	// Only drop a placeholder marker when nothing real covers the window.
	if !sg.transcript.HasRealObservationWithin(seg.StartTime, seg.EndTime) {
		sg.transcript.ObserveRaw(RawSpeechEvent{
			Text:       fmt.Sprintf("[Speech segment - Duration: %.1fs]", duration.Seconds()),
			Timestamp:  end,
			IsFinal:    seg.IsFinal,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			DurationMS: duration.Milliseconds(),
			Confidence: seg.Confidence,
			Synthetic:  true,
		})
	}
}
