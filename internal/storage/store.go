package storage

import (
	"context"
	"time"
)

// SessionOTPStore keeps visitor session records and, for the local gateway, pending codes,
// failed check attempts and send rate limits.
// Implementations: redis.Client, memory.Client (-dev, no Redis).
type SessionOTPStore interface {
	// FindSession reports found=false when the record does not exist or has expired.
	FindSession(ctx context.Context, token string) (data []byte, found bool, err error)
	// CommitSession stores data until expiry, replacing any previous record.
	CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error
	DeleteSession(ctx context.Context, token string) error

	// SetOTP stores a new code and resets the failed attempt counter.
	SetOTP(ctx context.Context, recipient, code string) error
	GetOTP(ctx context.Context, recipient string) (string, error)
	GetOTPTTL(ctx context.Context, recipient string) (time.Duration, error)
	// IncrOTPAttempts counts a failed check and returns the total for the current code.
	IncrOTPAttempts(ctx context.Context, recipient string) (int, error)
	// DeleteOTP removes the code and its attempt counter.
	DeleteOTP(ctx context.Context, recipient string) error
	CheckRateLimit(ctx context.Context, recipient string) (allowed bool, err error)

	Close() error
}

// Limits shared by the implementations.
const (
	OTPTTL             = 300 * time.Second
	OTPRateLimitWindow = 600 * time.Second
	OTPRateLimitMax    = 5
	// OTPMaxAttempts wrong codes invalidate the pending code.
	OTPMaxAttempts = 5
)
