// Package verification wraps the one-time-code provider behind Gateway.
// TwilioGateway talks to Twilio Verify; LocalGateway issues codes itself for development.
package verification

import (
	"context"
	"errors"
)

// Statuses reported by the provider. Others are passed through verbatim.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// DefaultChannel is used when SendCode gets an empty channel.
const DefaultChannel = "sms"

var (
	// ErrUnexpectedStatus marks a provider status the caller has no transition for.
	ErrUnexpectedStatus = errors.New("verification: unexpected status")
	// ErrRateLimited is returned by LocalGateway when a recipient asked for too many codes.
	ErrRateLimited = errors.New("verification: too many codes requested")
)

// Result is the provider-side state of a verification after a call.
type Result struct {
	SID     string
	To      string
	Channel string
	Status  string
}

// Gateway sends and checks one-time codes.
type Gateway interface {
	SendCode(ctx context.Context, to, channel string) (*Result, error)
	CheckCode(ctx context.Context, to, code string) (*Result, error)
}
