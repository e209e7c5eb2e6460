package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/smsgate/internal/storage"
)

type item struct {
	val string
	exp time.Time
}

type sessionItem struct {
	data []byte
	exp  time.Time
}

// Client is an in-process storage.SessionOTPStore. State is lost on restart.
type Client struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[string]sessionItem
	otp      map[string]item
	attempts map[string]int
	limit    map[string][]time.Time
}

var _ storage.SessionOTPStore = (*Client)(nil)

func New() *Client {
	return &Client{
		now:      time.Now,
		sessions: make(map[string]sessionItem),
		otp:      make(map[string]item),
		attempts: make(map[string]int),
		limit:    make(map[string][]time.Time),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) FindSession(ctx context.Context, token string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[token]
	if !ok || !c.now().Before(s.exp) {
		return nil, false, nil
	}
	return bytes.Clone(s.data), true, nil
}

func (c *Client) CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = sessionItem{data: bytes.Clone(data), exp: expiry}
	c.sweepSessions()
	return nil
}

// sweepSessions drops expired records. Caller holds mu.
func (c *Client) sweepSessions() {
	now := c.now()
	for token, s := range c.sessions {
		if !now.Before(s.exp) {
			delete(c.sessions, token)
		}
	}
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

func (c *Client) SetOTP(ctx context.Context, recipient, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.otp[recipient] = item{val: code, exp: c.now().Add(storage.OTPTTL)}
	delete(c.attempts, recipient)
	return nil
}

func (c *Client) GetOTP(ctx context.Context, recipient string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.otp[recipient]
	if !ok || c.now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) GetOTPTTL(ctx context.Context, recipient string) (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.otp[recipient]
	if !ok {
		return 0, nil
	}
	d := v.exp.Sub(c.now())
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (c *Client) IncrOTPAttempts(ctx context.Context, recipient string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[recipient]++
	return c.attempts[recipient], nil
}

func (c *Client) DeleteOTP(ctx context.Context, recipient string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.otp, recipient)
	delete(c.attempts, recipient)
	return nil
}

func (c *Client) CheckRateLimit(ctx context.Context, recipient string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	cut := now.Add(-storage.OTPRateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[recipient] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= storage.OTPRateLimitMax {
		c.limit[recipient] = kept
		return false, nil
	}
	c.limit[recipient] = append(kept, now)
	return true, nil
}
