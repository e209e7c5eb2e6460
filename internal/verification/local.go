package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/storage"
)

const (
	codeLength = 6
	// a code with more TTL left than this is re-sent instead of replaced
	minTTLToReuse = 240 * time.Second
)

// Notifier delivers a generated code to a person.
type Notifier interface {
	Notify(ctx context.Context, recipient, code string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, recipient, code string) error

func (f NotifierFunc) Notify(ctx context.Context, recipient, code string) error {
	return f(ctx, recipient, code)
}

// LogNotifier writes codes to the service log. Development only.
var LogNotifier = NotifierFunc(func(ctx context.Context, recipient, code string) error {
	logger.Infof("verification code for %s: %s", recipient, code)
	return nil
})

// LocalGateway issues and checks codes itself, keeping them in the OTP store.
type LocalGateway struct {
	store    storage.SessionOTPStore
	notifier Notifier
}

var _ Gateway = (*LocalGateway)(nil)

func NewLocalGateway(store storage.SessionOTPStore, notifier Notifier) *LocalGateway {
	if notifier == nil {
		notifier = LogNotifier
	}
	return &LocalGateway{store: store, notifier: notifier}
}

func (g *LocalGateway) SendCode(ctx context.Context, to, channel string) (*Result, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	allowed, err := g.store.CheckRateLimit(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("local gateway rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	code, err := g.currentOrNewCode(ctx, to)
	if err != nil {
		return nil, err
	}
	if err := g.notifier.Notify(ctx, to, code); err != nil {
		return nil, fmt.Errorf("local gateway notify: %w", err)
	}
	return &Result{SID: newSID(), To: to, Channel: channel, Status: StatusPending}, nil
}

// currentOrNewCode re-sends a recently issued code so a double submit does not invalidate it.
func (g *LocalGateway) currentOrNewCode(ctx context.Context, to string) (string, error) {
	if existing, _ := g.store.GetOTP(ctx, to); len(existing) == codeLength {
		if ttl, _ := g.store.GetOTPTTL(ctx, to); ttl >= minTTLToReuse {
			return existing, nil
		}
	}
	code, err := generateCode(codeLength)
	if err != nil {
		return "", err
	}
	if err := g.store.SetOTP(ctx, to, code); err != nil {
		return "", fmt.Errorf("local gateway store code: %w", err)
	}
	return code, nil
}

func (g *LocalGateway) CheckCode(ctx context.Context, to, code string) (*Result, error) {
	stored, err := g.store.GetOTP(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("local gateway read code: %w", err)
	}
	res := &Result{SID: newSID(), To: to, Channel: DefaultChannel}
	if stored == "" {
		res.Status = StatusExpired
		return res, nil
	}
	entered := onlyDigits(strings.TrimSpace(code))
	if len(entered) != len(stored) || subtle.ConstantTimeCompare([]byte(stored), []byte(entered)) != 1 {
		return g.failedAttempt(ctx, to, res)
	}
	if err := g.store.DeleteOTP(ctx, to); err != nil {
		logger.Errorf("local gateway: delete used code: %v", err)
	}
	res.Status = StatusApproved
	return res, nil
}

// failedAttempt keeps the code pending until storage.OTPMaxAttempts wrong entries,
// then discards it and reports the verification canceled.
func (g *LocalGateway) failedAttempt(ctx context.Context, to string, res *Result) (*Result, error) {
	n, err := g.store.IncrOTPAttempts(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("local gateway count attempt: %w", err)
	}
	if n < storage.OTPMaxAttempts {
		res.Status = StatusPending
		return res, nil
	}
	if err := g.store.DeleteOTP(ctx, to); err != nil {
		return nil, fmt.Errorf("local gateway cancel code: %w", err)
	}
	logger.Infof("local gateway: code for %s canceled after %d wrong attempts", to, n)
	res.Status = StatusCanceled
	return res, nil
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}

// onlyDigits drops spaces and other characters pasted together with the code.
func onlyDigits(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// newSID mimics the shape of provider verification ids.
func newSID() string {
	return "VE" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
