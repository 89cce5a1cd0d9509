package call

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one finalized utterance attributed to the caller or the assistant.
type Turn struct {
	Role       Role
	Text       string
	Timestamp  time.Time
	Confidence *float64
	Level      ConfidenceLevel
}

// RawSpeechEvent is one raw speech observation: partial or final recognition
// text, or a synthetic segment-boundary marker. The post-call summarizer
// reads these as forensic input alongside the finalized transcript.
type RawSpeechEvent struct {
	Seq        int64
	Text       string
	Timestamp  time.Time
	Confidence *float64
	IsFinal    bool
	StartTime  time.Time
	EndTime    time.Time
	DurationMS int64
	Level      ConfidenceLevel
	Synthetic  bool
}

// Caller holds whatever identity the caller has volunteered so far. Each
// field is written at most once, by whichever component extracts it first.
type Caller struct {
	Email            string
	Name             string
	Phone            string
	HasProvidedEmail bool
}

// SpeechSegment is the single in-flight utterance tracked by the segmenter.
// At most one live instance exists per session; it is discarded once closed.
type SpeechSegment struct {
	ID            string
	StartTime     time.Time
	EndTime       time.Time
	Transcription string
	Confidence    *float64
	IsFinal       bool
}

// ConversationState is the per-call conversation container. The session event
// loop is the primary writer, but the forwarding evaluator reads and flags it
// from its own goroutine, so access goes through the mutex.
type ConversationState struct {
	mu sync.Mutex

	turns   []Turn
	raw     []RawSpeechEvent
	caller  Caller
	rawSeq  int64
	kbMatch bool

	// requiresHumanFollowup is monotonic: once set it stays set for the
	// remainder of the session.
	requiresHumanFollowup bool
}

func NewConversationState() *ConversationState {
	return &ConversationState{}
}

// Turns returns a copy of the finalized transcript in arrival order.
func (s *ConversationState) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// RawObservations returns a copy of the raw observation log in arrival order.
func (s *ConversationState) RawObservations() []RawSpeechEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawSpeechEvent, len(s.raw))
	copy(out, s.raw)
	return out
}

func (s *ConversationState) Caller() Caller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caller
}

func (s *ConversationState) SetCallerEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caller.HasProvidedEmail {
		return
	}
	s.caller.Email = email
	s.caller.HasProvidedEmail = true
}

func (s *ConversationState) SetCallerPhone(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caller.Phone == "" {
		s.caller.Phone = phone
	}
}

func (s *ConversationState) SetKBMatch(found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbMatch = found
}

func (s *ConversationState) KBMatchFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kbMatch
}

func (s *ConversationState) MarkHumanFollowup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requiresHumanFollowup = true
}

func (s *ConversationState) RequiresHumanFollowup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiresHumanFollowup
}
