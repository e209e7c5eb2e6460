package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/smsgate/internal/logger"
)

// verifyAPI is the part of the Twilio Verify v2 client the gateway uses.
type verifyAPI interface {
	CreateVerification(serviceSid string, params *openapi.CreateVerificationParams) (*openapi.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *openapi.CreateVerificationCheckParams) (*openapi.VerifyV2VerificationCheck, error)
}

// TwilioGateway sends codes through a Twilio Verify service.
type TwilioGateway struct {
	api        verifyAPI
	serviceSID string
}

var _ Gateway = (*TwilioGateway)(nil)

// NewTwilioGateway builds a REST client from account credentials.
func NewTwilioGateway(accountSID, authToken, serviceSID string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{api: client.VerifyV2, serviceSID: serviceSID}
}

func (g *TwilioGateway) SendCode(ctx context.Context, to, channel string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if channel == "" {
		channel = DefaultChannel
	}
	defer logger.DeferLogDuration("twilio.CreateVerification", time.Now())()

	params := &openapi.CreateVerificationParams{}
	params.SetTo(to)
	params.SetChannel(channel)
	v, err := g.api.CreateVerification(g.serviceSID, params)
	if err != nil {
		return nil, fmt.Errorf("twilio create verification: %w", err)
	}
	return &Result{
		SID:     deref(v.Sid),
		To:      deref(v.To),
		Channel: deref(v.Channel),
		Status:  deref(v.Status),
	}, nil
}

func (g *TwilioGateway) CheckCode(ctx context.Context, to, code string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer logger.DeferLogDuration("twilio.CreateVerificationCheck", time.Now())()

	params := &openapi.CreateVerificationCheckParams{}
	params.SetTo(to)
	params.SetCode(code)
	v, err := g.api.CreateVerificationCheck(g.serviceSID, params)
	if err != nil {
		return nil, fmt.Errorf("twilio verification check: %w", err)
	}
	return &Result{
		SID:     deref(v.Sid),
		To:      deref(v.To),
		Channel: deref(v.Channel),
		Status:  deref(v.Status),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
