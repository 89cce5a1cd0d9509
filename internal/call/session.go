package call

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/aibackend"
	"github.com/yoockh/voicedesk/internal/telephony"
	"github.com/yoockh/voicedesk/internal/utils"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseConnecting Phase = "CONNECTING"
	PhaseActive     Phase = "ACTIVE"
	PhaseClosing    Phase = "CLOSING"
	PhaseClosed     Phase = "CLOSED"
)

// TelephonyChannel is the bidirectional media stream as the session sees it.
type TelephonyChannel interface {
	ReadEvent() (telephony.Event, error)
	TelephonySink
	Close() error
}

// AIChannel is the bidirectional speech backend channel.
type AIChannel interface {
	AISink
	Events() <-chan aibackend.Event
	Close() error
}

// Recorder accumulates the call's audio for the post-call artifact.
type Recorder interface {
	AppendInbound(payloadB64 string)
	AppendOutbound(payloadB64 string)
	HasAudio() bool
	Raw() []byte
	DurationSeconds() float64
	WAV() ([]byte, error)
}

// CallResult is what the closing pipeline receives when a call ends.
type CallResult struct {
	SessionID string
	CallSID   string
	StreamSID string
	From      string
	State     *ConversationState
	Recorder  Recorder
	Forwarded bool
	StartedAt time.Time
	EndedAt   time.Time
}

// Finalizer runs the post-call pipeline: record, transcribe, summarize,
// submit ticket. Failures stay inside the pipeline.
type Finalizer interface {
	Finalize(ctx context.Context, result CallResult)
}

// Deps wires a session to its collaborators.
type Deps struct {
	Telephony   TelephonyChannel
	DialAI      func(ctx context.Context) (AIChannel, error)
	Control     CallControl
	Registry    *AttemptRegistry
	Adjudicator Adjudicator
	Recorder    Recorder
	Finalizer   Finalizer
	Observers   func(sessionID string) []Observer
	Forwarding  ForwardingConfig
	Thresholds  ConfidenceThresholds
	Log         *logrus.Entry
}

// Session owns one phone call end to end: it relays audio between the two
// channels, feeds the transcript/segmenter/barge-in components, runs the
// forwarding evaluator off the relay path, and drives the closing pipeline
// when the stream ends. All conversation mutation happens on receipt of a
// message from one of the two inbound channels, one at a time.
type Session struct {
	ID  string
	log *logrus.Entry

	deps         Deps
	state        *ConversationState
	transcript   *Transcript
	segmenter    *Segmenter
	bargeIn      *BargeIn
	engine       *Engine
	orchestrator *Orchestrator

	ai       AIChannel
	aiEvents <-chan aibackend.Event

	// playback and identifiers are shared with the evaluator goroutine.
	playbackMu sync.Mutex
	playback   PlaybackState
	callSID    string
	streamSID  string
	from       string

	evalKick  chan struct{}
	phase     Phase
	forwarded bool
	startedAt time.Time
}

func NewSession(deps Deps) *Session {
	id := uuid.NewString()
	log := deps.Log.WithField("session_id", id)

	state := NewConversationState()
	transcript := NewTranscript(state, deps.Thresholds, log)
	if deps.Observers != nil {
		for _, o := range deps.Observers(id) {
			transcript.AddObserver(o)
		}
	}

	s := &Session{
		ID:         id,
		log:        log,
		deps:       deps,
		state:      state,
		transcript: transcript,
		segmenter:  NewSegmenter(transcript, log),
		bargeIn:    NewBargeIn(log),
		engine:     NewEngine(deps.Forwarding, deps.Registry, deps.Adjudicator, log),
		playback:   NewPlaybackState(),
		evalKick:   make(chan struct{}, 4),
		phase:      PhaseConnecting,
	}
	s.orchestrator = NewOrchestrator(deps.Control, transcript, state, log)
	return s
}

// State exposes the conversation container, primarily for tests and the
// closing pipeline.
func (s *Session) State() *ConversationState { return s.state }

// Run processes the call until either channel closes, then drives teardown.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.startedAt = time.Now().UTC()
	s.log.Info("call session connecting")

	telEvents := make(chan telephony.Event)
	go s.readTelephony(ctx, telEvents)
	go s.evaluator(ctx)

	for {
		select {
		case <-ctx.Done():
			return s.teardown()
		case ev, ok := <-telEvents:
			if !ok {
				return s.teardown()
			}
			if stop := s.handleTelephonyEvent(ctx, ev); stop {
				return s.teardown()
			}
		case ev, ok := <-s.aiEvents:
			if !ok {
				s.aiEvents = nil
				s.log.Warn("backend channel closed mid-call")
				continue
			}
			s.handleBackendEvent(ev)
		}
	}
}

func (s *Session) readTelephony(ctx context.Context, out chan<- telephony.Event) {
	defer close(out)
	for {
		ev, err := s.deps.Telephony.ReadEvent()
		if err != nil {
			// Malformed single messages come back as AppError and are
			// dropped; anything else means the channel is gone.
			if utils.IsCode(err, utils.CodeInvalidArgument) {
				s.log.WithError(err).Warn("dropping malformed stream message")
				continue
			}
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleTelephonyEvent(ctx context.Context, ev telephony.Event) (stop bool) {
	switch ev := ev.(type) {
	case telephony.StartEvent:
		s.onStart(ctx, ev)
	case telephony.MediaEvent:
		s.onMedia(ev)
	case telephony.MarkEvent:
		s.onMark(ev)
	case telephony.StopEvent:
		s.log.Info("stream stop received")
		return true
	case telephony.UnknownEvent:
		s.log.WithField("event", ev.Kind).Debug("ignoring unrecognized stream event")
	}
	return false
}

func (s *Session) onStart(ctx context.Context, ev telephony.StartEvent) {
	s.playbackMu.Lock()
	s.streamSID = ev.StreamSID
	s.callSID = ev.CallSID
	s.from = ev.From
	s.playbackMu.Unlock()

	if ev.From != "" {
		s.state.SetCallerPhone(ev.From)
	}

	s.log.WithFields(logrus.Fields{"stream_sid": ev.StreamSID, "call_sid": ev.CallSID}).
		Info("stream started, opening backend channel")

	ai, err := s.deps.DialAI(ctx)
	if err != nil {
		// Best-effort error signal: the caller hears silence otherwise.
		s.log.WithError(err).Error("backend channel failed to open")
		_ = s.deps.Telephony.Clear(ev.StreamSID)
		return
	}
	s.ai = ai
	s.aiEvents = ai.Events()
	s.phase = PhaseActive
	s.log.Info("call session active")
}

func (s *Session) onMedia(ev telephony.MediaEvent) {
	s.playbackMu.Lock()
	s.playback.LatestMediaMS = ev.TimestampMS
	s.playbackMu.Unlock()

	if s.deps.Recorder != nil {
		s.deps.Recorder.AppendInbound(ev.Payload)
	}

	if frame, err := base64.StdEncoding.DecodeString(ev.Payload); err == nil {
		s.segmenter.ObserveFrame(frame)
	}

	// Relay order is load-bearing: frames go to the backend in the order
	// received, never behind policy evaluation.
	if s.ai != nil {
		if err := s.ai.AppendAudio(ev.Payload); err != nil {
			s.log.WithError(err).Warn("audio append failed")
		}
	}
}

func (s *Session) onMark(ev telephony.MarkEvent) {
	s.playbackMu.Lock()
	if len(s.playback.MarkQueue) > 0 {
		s.playback.MarkQueue = s.playback.MarkQueue[1:]
	}
	s.playbackMu.Unlock()
}

func (s *Session) handleBackendEvent(ev aibackend.Event) {
	switch ev := ev.(type) {
	case aibackend.SessionReady:
		s.log.Debug("backend session ready")
	case aibackend.SpeechStarted:
		s.onSpeechStarted()
	case aibackend.SpeechStopped:
		s.segmenter.OnSpeechStop()
	case aibackend.Transcription:
		s.onTranscription(ev)
	case aibackend.AudioDelta:
		s.onAudioDelta(ev)
	case aibackend.AssistantTranscript:
		s.onAssistantTranscript(ev)
	case aibackend.ResponseDone:
		s.log.Debug("assistant response done")
	case aibackend.Truncated:
		s.log.WithField("item_id", ev.ItemID).Debug("truncate acknowledged")
	case aibackend.BackendError:
		s.log.WithField("message", ev.Message).Warn("backend reported error")
	case aibackend.UnknownEvent:
		s.log.WithField("event", ev.Kind).Debug("ignoring unrecognized backend event")
	}
}

// onSpeechStarted allocates the segment first, then truncates the in-flight
// assistant response, in that order.
func (s *Session) onSpeechStarted() {
	if !s.segmenter.OnSpeechStart() {
		return
	}
	s.playbackMu.Lock()
	streamSID := s.streamSID
	s.bargeIn.Interrupt(&s.playback, streamSID, s.ai, s.deps.Telephony)
	s.playbackMu.Unlock()
}

func (s *Session) onTranscription(ev aibackend.Transcription) {
	s.segmenter.OnTranscription(ev.Text, ev.Confidence, ev.IsFinal)

	if ev.IsFinal {
		s.transcript.AppendTurn(RoleUser, ev.Text, ev.Confidence)
		if IsExplicitAgentRequest(ev.Text) {
			s.kickEvaluation()
		}
		return
	}
	s.transcript.ObserveRaw(RawSpeechEvent{Text: ev.Text, Confidence: ev.Confidence})
}

func (s *Session) onAudioDelta(ev aibackend.AudioDelta) {
	s.playbackMu.Lock()
	if s.playback.ResponseStartMS < 0 {
		s.playback.ResponseStartMS = s.playback.LatestMediaMS
	}
	s.playback.LastAssistantItem = ev.ItemID
	streamSID := s.streamSID
	markName := uuid.NewString()
	s.playback.MarkQueue = append(s.playback.MarkQueue, markName)
	s.playbackMu.Unlock()

	if s.deps.Recorder != nil {
		s.deps.Recorder.AppendOutbound(ev.Payload)
	}

	if err := s.deps.Telephony.SendAudio(streamSID, ev.Payload); err != nil {
		s.log.WithError(err).Warn("outbound audio send failed")
		return
	}
	if err := s.deps.Telephony.SendMark(streamSID, markName); err != nil {
		s.log.WithError(err).Debug("mark send failed")
	}
}

func (s *Session) onAssistantTranscript(ev aibackend.AssistantTranscript) {
	s.state.SetKBMatch(KBMatchFromAssistantText(ev.Text))
	s.transcript.AppendTurn(RoleAssistant, ev.Text, nil)
}

// evaluator consumes turn-appended notifications off the relay path, so
// forwarding evaluation (including the LLM fallback) never blocks audio.
func (s *Session) evaluator(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.transcript.Notifications():
			if !ok {
				return
			}
			s.evaluateAndMaybeTransfer(ctx)
		case <-s.evalKick:
			s.evaluateAndMaybeTransfer(ctx)
		}
	}
}

func (s *Session) kickEvaluation() {
	select {
	case s.evalKick <- struct{}{}:
	default:
	}
}

func (s *Session) evaluateAndMaybeTransfer(ctx context.Context) {
	s.playbackMu.Lock()
	callSID, streamSID := s.callSID, s.streamSID
	speaking := s.playback.Speaking()
	s.playbackMu.Unlock()

	verdict := s.engine.Evaluate(ctx, s.state, callSID)
	if !verdict.ShouldForward {
		return
	}

	s.playbackMu.Lock()
	s.forwarded = true
	s.playbackMu.Unlock()
	req := TransferRequest{CallSID: callSID, StreamSID: streamSID, Speaking: speaking}
	if err := s.orchestrator.Execute(ctx, req, verdict); err != nil {
		s.log.WithError(err).Warn("transfer did not complete")
	}
}

func (s *Session) teardown() error {
	s.phase = PhaseClosing
	s.log.Info("call session closing")

	if s.ai != nil {
		_ = s.ai.Close()
	}

	s.playbackMu.Lock()
	callSID := s.callSID
	forwarded := s.forwarded
	s.playbackMu.Unlock()

	if s.deps.Finalizer != nil {
		finalizeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.deps.Finalizer.Finalize(finalizeCtx, CallResult{
			SessionID: s.ID,
			CallSID:   callSID,
			StreamSID: s.streamSID,
			From:      s.from,
			State:     s.state,
			Recorder:  s.deps.Recorder,
			Forwarded: forwarded,
			StartedAt: s.startedAt,
			EndedAt:   time.Now().UTC(),
		})
	}

	if s.deps.Registry != nil && callSID != "" {
		s.deps.Registry.Evict(callSID)
	}

	s.phase = PhaseClosed
	s.log.Info("call session closed")
	return nil
}
