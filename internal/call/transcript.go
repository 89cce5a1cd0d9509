package call

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/utils"
)

// Observer receives transcript activity as it happens. Implementations must
// not block: they run on the session event loop. The live feed publisher and
// the observation archive hang off this.
type Observer interface {
	TurnAppended(turn Turn)
	RawObserved(ev RawSpeechEvent)
}

// Transcript is the append-only, deduplicating conversation log. Finalized
// turns and raw speech observations are kept as two channels over the same
// ConversationState. Appending an assistant turn enqueues a notification that
// the forwarding evaluator consumes on its own goroutine, so transcript
// mutation never waits on policy evaluation.
type Transcript struct {
	state      *ConversationState
	thresholds ConfidenceThresholds
	observers  []Observer
	notices    chan Turn
	log        *logrus.Entry
	now        func() time.Time
}

func NewTranscript(state *ConversationState, thresholds ConfidenceThresholds, log *logrus.Entry) *Transcript {
	return &Transcript{
		state:      state,
		thresholds: thresholds,
		notices:    make(chan Turn, 32),
		log:        log,
		now:        time.Now,
	}
}

// AddObserver registers an observer. Not safe to call once the session is
// processing events.
func (t *Transcript) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// Notifications yields one Turn per appended assistant turn.
func (t *Transcript) Notifications() <-chan Turn {
	return t.notices
}

// AppendTurn records a finalized utterance. Empty or whitespace-only text is
// a no-op. Immediately-repeated identical (role, text) pairs are collapsed to
// one transcript entry, but user turns always land in the raw observation log
// regardless. Returns whether a transcript entry was appended.
func (t *Transcript) AppendTurn(role Role, text string, confidence *float64) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	now := t.now()
	var level ConfidenceLevel
	if confidence != nil {
		level = t.thresholds.Classify(*confidence)
	}

	if role == RoleUser {
		t.appendRaw(RawSpeechEvent{
			Text:       trimmed,
			Timestamp:  now,
			Confidence: confidence,
			IsFinal:    true,
			Level:      level,
		})
	}

	turn := Turn{Role: role, Text: trimmed, Timestamp: now, Confidence: confidence, Level: level}

	appended := t.appendDeduped(turn)
	if !appended {
		t.log.WithFields(logrus.Fields{"role": role, "text": trimmed}).Debug("duplicate turn skipped")
	}

	if role == RoleUser {
		t.scanForEmail()
	}

	if appended {
		for _, o := range t.observers {
			o.TurnAppended(turn)
		}
		if role == RoleAssistant {
			select {
			case t.notices <- turn:
			default:
				t.log.Warn("forwarding notification queue full, dropping")
			}
		}
	}
	return appended
}

// ObserveRaw records a raw speech observation (partial recognitions, segment
// markers) without touching the finalized transcript.
func (t *Transcript) ObserveRaw(ev RawSpeechEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now()
	}
	if ev.Confidence != nil && ev.Level == "" {
		ev.Level = t.thresholds.Classify(*ev.Confidence)
	}
	t.appendRaw(ev)
}

// HasRealObservationWithin reports whether any non-synthetic observation with
// transcription text falls inside [start, end]. The segmenter uses this to
// avoid clobbering a proper transcription with a placeholder marker.
func (t *Transcript) HasRealObservationWithin(start, end time.Time) bool {
	for _, ev := range t.state.RawObservations() {
		if ev.Synthetic || strings.TrimSpace(ev.Text) == "" {
			continue
		}
		if !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			return true
		}
	}
	return false
}

func (t *Transcript) appendDeduped(turn Turn) bool {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if n := len(t.state.turns); n > 0 {
		last := t.state.turns[n-1]
		if last.Role == turn.Role && last.Text == turn.Text {
			return false
		}
	}
	t.state.turns = append(t.state.turns, turn)
	return true
}

func (t *Transcript) appendRaw(ev RawSpeechEvent) {
	t.state.mu.Lock()
	t.state.rawSeq++
	ev.Seq = t.state.rawSeq
	t.state.raw = append(t.state.raw, ev)
	t.state.mu.Unlock()

	for _, o := range t.observers {
		o.RawObserved(ev)
	}
}

// scanForEmail checks the whole transcript's concatenated text, not just the
// latest turn, so an address split across recognition boundaries still lands.
func (t *Transcript) scanForEmail() {
	if t.state.Caller().HasProvidedEmail {
		return
	}
	var sb strings.Builder
	for _, turn := range t.state.Turns() {
		if turn.Role != RoleUser {
			continue
		}
		sb.WriteString(turn.Text)
		sb.WriteString(" ")
	}
	if email, ok := utils.ExtractEmail(sb.String()); ok {
		t.state.SetCallerEmail(email)
		t.log.WithField("email", email).Info("caller email captured")
	}
}
