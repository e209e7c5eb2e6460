package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smsgate/internal/storage"
)

const (
	sessionPrefix = "session:"
	otpPrefix     = "otp:"
	attemptPrefix = "otp_attempts:"
	limitPrefix   = "otp_limit:"
)

type Client struct {
	cli *redis.Client
}

var _ storage.SessionOTPStore = (*Client)(nil)

// New parses url, connects and pings.
func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// FindSession reads session:{token}, the encoded record written by CommitSession.
func (c *Client) FindSession(ctx context.Context, token string) ([]byte, bool, error) {
	data, err := c.cli.Get(ctx, sessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis find session: %w", err)
	}
	return data, true, nil
}

// CommitSession overwrites session:{token} and lets Redis expire it at expiry.
func (c *Client) CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return c.DeleteSession(ctx, token)
	}
	if err := c.cli.Set(ctx, sessionPrefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis commit session: %w", err)
	}
	return nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, sessionPrefix+token).Err()
}

// SetOTP stores the code under otp:{recipient} with storage.OTPTTL and clears its attempt counter.
func (c *Client) SetOTP(ctx context.Context, recipient, code string) error {
	_, err := c.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, otpPrefix+recipient, code, storage.OTPTTL)
		pipe.Del(ctx, attemptPrefix+recipient)
		return nil
	})
	return err
}

// GetOTP does not delete the key; it is removed only after a successful check.
func (c *Client) GetOTP(ctx context.Context, recipient string) (string, error) {
	val, err := c.cli.Get(ctx, otpPrefix+recipient).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// GetOTPTTL returns 0 when the key does not exist.
func (c *Client) GetOTPTTL(ctx context.Context, recipient string) (time.Duration, error) {
	d, err := c.cli.TTL(ctx, otpPrefix+recipient).Result()
	if err != nil || d < 0 {
		return 0, err
	}
	return d, nil
}

// IncrOTPAttempts counts in otp_attempts:{recipient}, which expires with the code.
func (c *Client) IncrOTPAttempts(ctx context.Context, recipient string) (int, error) {
	key := attemptPrefix + recipient
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.cli.Expire(ctx, key, storage.OTPTTL).Err(); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}

func (c *Client) DeleteOTP(ctx context.Context, recipient string) error {
	return c.cli.Del(ctx, otpPrefix+recipient, attemptPrefix+recipient).Err()
}

// CheckRateLimit counts sends in otp_limit:{recipient}; the window starts with the first send.
func (c *Client) CheckRateLimit(ctx context.Context, recipient string) (bool, error) {
	key := limitPrefix + recipient
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.cli.Expire(ctx, key, storage.OTPRateLimitWindow).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(storage.OTPRateLimitMax), nil
}
