package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSMS sends text messages through the Twilio REST API.
type TwilioSMS struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSMS creates a sender. All three credentials are required.
func NewTwilioSMS(accountSID, authToken, fromNumber string) (*TwilioSMS, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("twilio credentials are not fully configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return &TwilioSMS{client: client, fromNumber: fromNumber}, nil
}

// SendSMS sends body to the given number. The Twilio client does not take a
// context; ctx is only checked before the call.
func (s *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := s.buildParams(to, body)
	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send sms to %s: %w", *params.To, err)
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("SMS sent to %s, sid %s", *params.To, *resp.Sid)
	}
	return nil
}

func (s *TwilioSMS) buildParams(to, body string) *openapi.CreateMessageParams {
	params := &openapi.CreateMessageParams{}
	params.SetTo(toE164(to))
	params.SetFrom(s.fromNumber)
	params.SetBody(body)
	return params
}

// toE164 strips the punctuation operators type into phone fields. Numbers
// without a leading + are passed through and may be rejected by Twilio.
func toE164(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
