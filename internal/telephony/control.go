package telephony

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/yoockh/voicedesk/internal/utils"
)

// TwilioControl moves live calls around over the provider REST API.
type TwilioControl struct {
	client         *twilio.RestClient
	transferNumber string
	log            *logrus.Entry
}

func NewTwilioControl(accountSID, authToken, transferNumber string, log *logrus.Entry) *TwilioControl {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioControl{client: client, transferNumber: transferNumber, log: log}
}

// Transfer redirects the live call to the configured agent number by updating
// the call with new TwiML. The briefing is logged for the receiving team; the
// media stream drops once the redirect takes effect.
func (t *TwilioControl) Transfer(ctx context.Context, callSID, briefing string) error {
	const op = "TwilioControl.Transfer"

	if t.transferNumber == "" {
		return utils.E(utils.CodeInvalidArgument, op, "no transfer number configured", nil)
	}

	t.log.WithFields(logrus.Fields{"call_sid": callSID, "briefing": briefing}).Info("redirecting call to agent")

	twiml := fmt.Sprintf(`<Response><Dial>%s</Dial></Response>`, t.transferNumber)
	params := &api.UpdateCallParams{}
	params.SetTwiml(twiml)

	if _, err := t.client.Api.UpdateCall(callSID, params); err != nil {
		return utils.E(utils.CodeUnavailable, op, "call update failed", err)
	}
	return nil
}

// FindActiveCallSID lists in-progress calls and picks one. Exactly one active
// call wins outright; with several the most recently created is chosen. This
// is best-effort, not authoritative - the stream identifier is not part of
// the provider's call query surface.
func (t *TwilioControl) FindActiveCallSID(ctx context.Context, streamSID string) (string, error) {
	const op = "TwilioControl.FindActiveCallSID"

	params := &api.ListCallParams{}
	params.SetStatus("in-progress")
	params.SetLimit(20)

	calls, err := t.client.Api.ListCall(params)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "listing active calls failed", err)
	}
	if len(calls) == 0 {
		return "", utils.E(utils.CodeNotFound, op, "no active calls", nil)
	}

	best := calls[0]
	bestCreated := parseCallDate(best.DateCreated)
	for _, c := range calls[1:] {
		if created := parseCallDate(c.DateCreated); created.After(bestCreated) {
			best = c
			bestCreated = created
		}
	}
	if best.Sid == nil {
		return "", utils.E(utils.CodeNotFound, op, "active call has no identifier", nil)
	}

	t.log.WithFields(logrus.Fields{
		"stream_sid": streamSID,
		"call_sid":   *best.Sid,
		"candidates": len(calls),
	}).Info("resolved call identifier from active calls")
	return *best.Sid, nil
}

func parseCallDate(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC1123Z, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}
