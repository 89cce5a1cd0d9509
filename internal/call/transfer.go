package call

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/utils"
)

// CallControl is the telephony-provider surface the orchestrator needs:
// moving a live call to a human and best-effort call-identifier lookup.
type CallControl interface {
	// Transfer redirects the live call to the configured agent destination.
	// The briefing is context for the receiving side; providers may log it.
	Transfer(ctx context.Context, callSID, briefing string) error

	// FindActiveCallSID resolves a call identifier from a stream identifier
	// by listing the provider's in-progress calls. Inherently racy: it picks
	// the most recently created call when several are active. Best-effort,
	// not authoritative.
	FindActiveCallSID(ctx context.Context, streamSID string) (string, error)
}

const (
	// preAckGrace lets an in-flight assistant utterance finish before the
	// acknowledgement interrupts it. UX smoothing, not correctness.
	preAckGrace = 1500 * time.Millisecond

	// preTransferPause sits between the spoken acknowledgement and the
	// actual transfer so the hop doesn't feel abrupt.
	preTransferPause = 2 * time.Second

	briefingTurnCount = 5
)

const (
	transferAckText     = "Of course. Let me connect you with a support specialist. One moment please."
	transferFailText    = "I'm sorry, I wasn't able to transfer your call. Please reach our support team directly and they will help you right away."
	transferNoCallText  = "I'm sorry, I can't complete the transfer right now. A member of our team will follow up with you."
	transferBriefingHdr = "Caller being transferred from the AI assistant."
)

// TransferRequest carries the session facts the orchestrator acts on.
type TransferRequest struct {
	CallSID   string
	StreamSID string
	// Speaking is whether the assistant is mid-utterance at execution time.
	Speaking bool
}

// Orchestrator executes a positive forwarding verdict: waits for a natural
// speech boundary, acknowledges out loud, and runs the transfer primitive
// with a single identifier-refresh retry.
type Orchestrator struct {
	control    CallControl
	transcript *Transcript
	state      *ConversationState
	log        *logrus.Entry

	grace time.Duration
	pause time.Duration
}

func NewOrchestrator(control CallControl, transcript *Transcript, state *ConversationState, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		control:    control,
		transcript: transcript,
		state:      state,
		log:        log,
		grace:      preAckGrace,
		pause:      preTransferPause,
	}
}

// Execute runs the transfer flow. The forwarding attempt guard has already
// been set by the engine; failures here surface to the caller through the
// transcript and are not retried beyond the single identifier refresh.
func (o *Orchestrator) Execute(ctx context.Context, req TransferRequest, verdict Verdict) error {
	const op = "Orchestrator.Execute"

	if req.CallSID == "" || req.StreamSID == "" {
		o.transcript.AppendTurn(RoleAssistant, transferNoCallText, nil)
		return utils.E(utils.CodeInvalidArgument, op, "missing call or stream identifier", nil)
	}

	if req.Speaking {
		sleepCtx(ctx, o.grace)
	}

	if !o.assistantAlreadyAcknowledged() {
		o.transcript.AppendTurn(RoleAssistant, transferAckText, nil)
	}

	briefing := o.buildBriefing()

	sleepCtx(ctx, o.pause)

	err := o.control.Transfer(ctx, req.CallSID, briefing)
	if err == nil {
		o.log.WithField("call_sid", req.CallSID).Info("call transferred to human agent")
		return nil
	}
	o.log.WithError(err).WithField("call_sid", req.CallSID).Warn("transfer failed, refreshing call identifier")

	refreshed, lookupErr := o.control.FindActiveCallSID(ctx, req.StreamSID)
	if lookupErr == nil && refreshed != "" {
		if retryErr := o.control.Transfer(ctx, refreshed, briefing); retryErr == nil {
			o.log.WithField("call_sid", refreshed).Info("call transferred after identifier refresh")
			return nil
		} else {
			err = retryErr
		}
	} else if lookupErr != nil {
		o.log.WithError(lookupErr).Warn("call identifier refresh failed")
	}

	// No further automatic retries.
	o.transcript.AppendTurn(RoleAssistant, transferFailText, nil)
	return utils.E(utils.CodeUnavailable, op, "transfer failed after retry", err)
}

// assistantAlreadyAcknowledged avoids saying the handoff line twice when the
// AI's own previous turn already announced the transfer.
func (o *Orchestrator) assistantAlreadyAcknowledged() bool {
	turns := o.state.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != RoleAssistant {
			continue
		}
		return containsAny(strings.ToLower(turns[i].Text), selfEscalationPhrases)
	}
	return false
}

func (o *Orchestrator) buildBriefing() string {
	caller := o.state.Caller()
	email := caller.Email
	if email == "" {
		email = "Not provided"
	}
	phone := caller.Phone
	if phone == "" {
		phone = "Not provided"
	}

	var sb strings.Builder
	sb.WriteString(transferBriefingHdr)
	fmt.Fprintf(&sb, " Email: %s. Phone: %s.", email, phone)

	turns := o.state.Turns()
	start := len(turns) - briefingTurnCount
	if start < 0 {
		start = 0
	}
	sb.WriteString(" Recent conversation:")
	for _, turn := range turns[start:] {
		fmt.Fprintf(&sb, " [%s] %s", turn.Role, turn.Text)
	}
	return sb.String()
}

// sleepCtx waits for d, returning early if the session is torn down mid-wait.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
