package call

import (
	"github.com/sirupsen/logrus"
)

// minBargeInElapsedMS guards against truncating a response that barely
// started playing; shorter elapsed times are treated as backend jitter.
const minBargeInElapsedMS = 150

// PlaybackState tracks how far the assistant's spoken response has progressed
// relative to the inbound media clock. Owned by the session; all offsets are
// milliseconds since stream start.
type PlaybackState struct {
	LatestMediaMS     int64
	ResponseStartMS   int64 // -1 when no assistant turn is being voiced
	LastAssistantItem string
	MarkQueue         []string
}

func NewPlaybackState() PlaybackState {
	return PlaybackState{ResponseStartMS: -1}
}

// Speaking reports whether an assistant turn is currently being voiced.
func (ps *PlaybackState) Speaking() bool {
	return ps.LastAssistantItem != ""
}

// ElapsedMS is the played portion of the in-flight assistant response.
func (ps *PlaybackState) ElapsedMS() int64 {
	if ps.ResponseStartMS < 0 {
		return 0
	}
	return ps.LatestMediaMS - ps.ResponseStartMS
}

// BargeIn truncates the assistant's in-flight spoken response when the caller
// starts talking over it, and flushes any audio already queued toward the
// telephony transport. Idempotent: with no in-flight assistant turn it does
// nothing.
type BargeIn struct {
	MinElapsedMS int64
	Log          *logrus.Entry
}

func NewBargeIn(log *logrus.Entry) *BargeIn {
	return &BargeIn{MinElapsedMS: minBargeInElapsedMS, Log: log}
}

// Interrupt performs the truncation. Returns true when a truncate was issued.
func (b *BargeIn) Interrupt(ps *PlaybackState, streamSID string, ai AISink, tel TelephonySink) bool {
	if !ps.Speaking() {
		return false
	}

	elapsed := ps.ElapsedMS()
	if elapsed <= b.MinElapsedMS {
		b.Log.WithField("elapsed_ms", elapsed).Debug("barge-in below minimum elapsed, skipping truncate")
		return false
	}

	if err := ai.TruncateItem(ps.LastAssistantItem, 0, elapsed); err != nil {
		b.Log.WithError(err).Warn("truncate instruction failed")
	}
	if err := tel.Clear(streamSID); err != nil {
		b.Log.WithError(err).Warn("clear buffered audio failed")
	}

	ps.MarkQueue = ps.MarkQueue[:0]
	ps.LastAssistantItem = ""
	ps.ResponseStartMS = -1
	b.Log.WithField("elapsed_ms", elapsed).Info("assistant response truncated by barge-in")
	return true
}
