package call

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Verdict is the outcome of one forwarding evaluation.
type Verdict struct {
	ShouldForward bool
	Reason        string
}

// Adjudicator is the LLM fallback: it sees the full transcript and returns a
// structured verdict. Failures are treated as "do not forward".
type Adjudicator interface {
	Adjudicate(ctx context.Context, turns []Turn) (Verdict, error)
}

// ForwardingConfig tunes the decision engine.
type ForwardingConfig struct {
	Enabled        bool
	TransferNumber string

	// UserTurnWindow is how many recent user turns the explicit-request rule
	// scans (the 3..7 range; 5 by default).
	UserTurnWindow int

	// FailureThreshold is the total negative-sentiment turn count that
	// triggers forwarding when the turns are not consecutive.
	FailureThreshold int

	// MinTurnsForAdjudication is the minimum transcript length before the
	// LLM fallback is consulted at all.
	MinTurnsForAdjudication int
}

func DefaultForwardingConfig() ForwardingConfig {
	return ForwardingConfig{
		Enabled:                 true,
		UserTurnWindow:          5,
		FailureThreshold:        3,
		MinTurnsForAdjudication: 4,
	}
}

var explicitRequestPhrases = []string{
	"speak to agent",
	"speak to an agent",
	"speak to a human",
	"speak to a person",
	"speak with someone",
	"talk to a human",
	"talk to human",
	"talk to someone",
	"talk to an agent",
	"real person",
	"live agent",
	"human agent",
	"transfer me",
	"connect me to an agent",
	"customer service representative",
	"representative",
}

var selfEscalationPhrases = []string{
	"connect you with a support specialist",
	"connect you with an agent",
	"connect you to an agent",
	"i'll transfer you",
	"i will transfer you",
	"transfer you to",
	"hand you over to",
	"escalate this to",
	"a member of our team will",
}

var negativeSentimentPhrases = []string{
	"not what i",
	"doesn't answer",
	"didn't answer",
	"doesn't help",
	"not helpful",
	"not my question",
	"that's not right",
	"that's wrong",
	"not correct",
	"you don't understand",
	"still not",
}

var complexTopicKeywords = []string{
	"billing",
	"refund",
	"chargeback",
	"cancel my subscription",
	"legal",
	"lawsuit",
	"security breach",
	"data breach",
	"compromised",
	"urgent",
	"emergency",
	"complaint",
}

var noAnswerMarkers = []string{
	"couldn't find",
	"could not find",
	"don't have information",
	"don't have that information",
	"no information about",
	"not in my knowledge base",
	"unable to find",
	"nothing in our documentation",
}

// KBMatchFromAssistantText decides, from one assistant turn, whether the AI
// found an answer in its reference material: any no-answer marker means it
// did not.
func KBMatchFromAssistantText(text string) bool {
	return !containsAny(strings.ToLower(text), noAnswerMarkers)
}

// IsExplicitAgentRequest flags a single utterance as a high-likelihood
// human-agent request. The session kicks an immediate evaluation on these
// instead of waiting for the next assistant turn.
func IsExplicitAgentRequest(text string) bool {
	return containsAny(strings.ToLower(text), explicitRequestPhrases)
}

// forwardingRule is one entry of the ordered policy table. decided=false
// means fall through to the next rule.
type forwardingRule struct {
	name     string
	evaluate func(ctx context.Context, in *evalInput) (verdict Verdict, decided bool)
}

type evalInput struct {
	turns   []Turn
	kbMatch bool
	callSID string
}

// Engine is the layered forward/no-forward policy. Rules run in a fixed
// order; the first decisive rule wins. Rule order is load-bearing: the
// explicit-request rule runs before (and therefore overrides) the
// knowledge-base veto.
type Engine struct {
	cfg         ForwardingConfig
	registry    *AttemptRegistry
	adjudicator Adjudicator
	log         *logrus.Entry
	rules       []forwardingRule
}

func NewEngine(cfg ForwardingConfig, registry *AttemptRegistry, adjudicator Adjudicator, log *logrus.Entry) *Engine {
	e := &Engine{cfg: cfg, registry: registry, adjudicator: adjudicator, log: log}
	e.rules = []forwardingRule{
		{"guard", e.ruleGuard},
		{"explicit_request", e.ruleExplicitRequest},
		{"ai_self_escalation", e.ruleSelfEscalation},
		{"kb_veto", e.ruleKBVeto},
		{"repeated_failure", e.ruleRepeatedFailure},
		{"complex_topic", e.ruleComplexTopic},
		{"llm_adjudication", e.ruleAdjudication},
	}
	return e
}

// Evaluate runs the policy over the current conversation state. On a positive
// verdict the attempt guard is set and the human-followup flag raised before
// returning, so the transfer that follows cannot re-trigger a second attempt
// through further turns.
func (e *Engine) Evaluate(ctx context.Context, state *ConversationState, callSID string) Verdict {
	in := &evalInput{
		turns:   state.Turns(),
		kbMatch: state.KBMatchFound(),
		callSID: callSID,
	}

	for _, rule := range e.rules {
		verdict, decided := rule.evaluate(ctx, in)
		if !decided {
			continue
		}
		if verdict.ShouldForward {
			e.registry.MarkAttempted(callSID)
			state.MarkHumanFollowup()
			e.log.WithFields(logrus.Fields{"rule": rule.name, "reason": verdict.Reason}).Info("forwarding verdict: forward")
		} else {
			e.log.WithFields(logrus.Fields{"rule": rule.name, "reason": verdict.Reason}).Debug("forwarding verdict: stay")
		}
		return verdict
	}
	return Verdict{ShouldForward: false, Reason: "no rule matched"}
}

func (e *Engine) ruleGuard(_ context.Context, in *evalInput) (Verdict, bool) {
	switch {
	case !e.cfg.Enabled:
		return Verdict{Reason: "forwarding disabled"}, true
	case e.cfg.TransferNumber == "":
		return Verdict{Reason: "no transfer destination configured"}, true
	case e.registry.Attempted(in.callSID):
		return Verdict{Reason: "forward already attempted for this call"}, true
	}
	return Verdict{}, false
}

func (e *Engine) ruleExplicitRequest(_ context.Context, in *evalInput) (Verdict, bool) {
	window := e.cfg.UserTurnWindow
	if window <= 0 {
		window = 5
	}
	seen := 0
	for i := len(in.turns) - 1; i >= 0 && seen < window; i-- {
		if in.turns[i].Role != RoleUser {
			continue
		}
		seen++
		if containsAny(strings.ToLower(in.turns[i].Text), explicitRequestPhrases) {
			return Verdict{ShouldForward: true, Reason: "caller explicitly requested a human agent"}, true
		}
	}
	return Verdict{}, false
}

func (e *Engine) ruleSelfEscalation(_ context.Context, in *evalInput) (Verdict, bool) {
	seen := 0
	for i := len(in.turns) - 1; i >= 0 && seen < 3; i-- {
		if in.turns[i].Role != RoleAssistant {
			continue
		}
		seen++
		if containsAny(strings.ToLower(in.turns[i].Text), selfEscalationPhrases) {
			return Verdict{ShouldForward: true, Reason: "assistant proposed a transfer"}, true
		}
	}
	return Verdict{}, false
}

func (e *Engine) ruleKBVeto(_ context.Context, in *evalInput) (Verdict, bool) {
	if in.kbMatch {
		return Verdict{Reason: "knowledge base answered the current question"}, true
	}
	return Verdict{}, false
}

func (e *Engine) ruleRepeatedFailure(_ context.Context, in *evalInput) (Verdict, bool) {
	threshold := e.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}
	total := 0
	consecutive := 0
	for _, turn := range in.turns {
		if turn.Role != RoleUser {
			continue
		}
		if containsAny(strings.ToLower(turn.Text), negativeSentimentPhrases) {
			total++
			consecutive++
			if consecutive >= 2 {
				return Verdict{ShouldForward: true, Reason: "two consecutive unsatisfied caller turns"}, true
			}
		} else {
			consecutive = 0
		}
	}
	if total >= threshold {
		return Verdict{ShouldForward: true, Reason: "repeated unsatisfied caller turns"}, true
	}
	return Verdict{}, false
}

func (e *Engine) ruleComplexTopic(_ context.Context, in *evalInput) (Verdict, bool) {
	for _, turn := range in.turns {
		if turn.Role != RoleUser {
			continue
		}
		if containsAny(strings.ToLower(turn.Text), complexTopicKeywords) {
			return Verdict{ShouldForward: true, Reason: "conversation touches a topic requiring a human"}, true
		}
	}
	return Verdict{}, false
}

var cannotHelpPhrases = []string{
	"i cannot help",
	"i can't help",
	"unable to assist",
	"cannot assist",
	"can't assist with",
	"beyond my capabilities",
	"don't have the ability",
}

var routineConversationPhrases = []string{
	"could you provide",
	"may i have your",
	"your email",
	"your phone number",
	"is there anything else",
	"anything else i can",
	"have a great day",
	"you're welcome",
	"thank you for calling",
	"glad i could help",
}

var kbCitationPhrases = []string{
	"according to",
	"based on our",
	"our documentation",
	"the documentation says",
	"our knowledge base",
}

const substantiveAnswerMinWords = 20

// ruleAdjudication classifies the most recent assistant utterance with
// textual heuristics first and only then asks the external adjudicator.
// Adjudicator failure defaults to staying on the line.
func (e *Engine) ruleAdjudication(ctx context.Context, in *evalInput) (Verdict, bool) {
	if len(in.turns) < e.cfg.MinTurnsForAdjudication {
		return Verdict{Reason: "conversation too short to adjudicate"}, true
	}

	var lastAssistant string
	for i := len(in.turns) - 1; i >= 0; i-- {
		if in.turns[i].Role == RoleAssistant {
			lastAssistant = strings.ToLower(in.turns[i].Text)
			break
		}
	}

	switch {
	case containsAny(lastAssistant, selfEscalationPhrases):
		return Verdict{ShouldForward: true, Reason: "assistant response indicates transfer intent"}, true
	case containsAny(lastAssistant, cannotHelpPhrases):
		return Verdict{ShouldForward: true, Reason: "assistant admits it cannot help"}, true
	case containsAny(lastAssistant, routineConversationPhrases):
		return Verdict{Reason: "routine conversation"}, true
	case containsAny(lastAssistant, kbCitationPhrases):
		return Verdict{Reason: "assistant answered from reference material"}, true
	case len(strings.Fields(lastAssistant)) >= substantiveAnswerMinWords:
		return Verdict{Reason: "assistant gave a substantive answer"}, true
	}

	if e.adjudicator == nil {
		return Verdict{Reason: "no adjudicator configured"}, true
	}
	verdict, err := e.adjudicator.Adjudicate(ctx, in.turns)
	if err != nil {
		e.log.WithError(err).Warn("adjudicator failed, defaulting to no forward")
		return Verdict{Reason: "adjudicator unavailable"}, true
	}
	return verdict, true
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
