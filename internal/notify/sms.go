package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioSMSSender sends SMS through the Twilio Messages REST API. It
// implements SMSSender and is shared by the notification dispatcher and
// the missed-call auto-responder.
//
// No retries here: the dispatcher treats delivery failure as terminal,
// and retrying inside a webhook-triggered send would stall the response
// to Twilio.
type TwilioSMSSender struct {
	client     *resty.Client
	accountSID string
}

func NewTwilioSMSSender(accountSID, authToken string) *TwilioSMSSender {
	client := resty.New().
		SetBaseURL(twilioAPIBase).
		SetTimeout(5 * time.Second).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")

	return &TwilioSMSSender{
		client:     client,
		accountSID: accountSID,
	}
}

type twilioMessageResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSMSSender) Send(ctx context.Context, from, to, body string) error {
	if from == "" || to == "" {
		return fmt.Errorf("twilio sms: from and to are required")
	}
	if body == "" {
		return fmt.Errorf("twilio sms: body is required")
	}

	var out twilioMessageResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": from,
			"To":   to,
			"Body": body,
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.accountSID))
	if err != nil {
		return fmt.Errorf("twilio sms: %w", err)
	}

	if resp.StatusCode() != http.StatusCreated {
		if out.Message != "" {
			return fmt.Errorf("twilio sms: status %d code %d: %s", resp.StatusCode(), out.Code, out.Message)
		}
		return fmt.Errorf("twilio sms: unexpected status %d", resp.StatusCode())
	}
	return nil
}
