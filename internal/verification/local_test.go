package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/smsgate/internal/storage"
	"github.com/smsgate/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	codes map[string]string
	err   error
}

func (c *captureNotifier) Notify(ctx context.Context, recipient, code string) error {
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[recipient] = code
	return nil
}

func TestLocalGateway_SendThenApprove(t *testing.T) {
	ctx := context.Background()
	n := &captureNotifier{}
	g := NewLocalGateway(memory.New(), n)

	res, err := g.SendCode(ctx, "+61493123456", "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, res.Status)
	require.Equal(t, DefaultChannel, res.Channel)
	require.Len(t, res.SID, 34)

	code := n.codes["+61493123456"]
	require.Len(t, code, codeLength)

	res, err = g.CheckCode(ctx, "+61493123456", " "+code[:3]+" "+code[3:])
	require.NoError(t, err)
	require.Equal(t, StatusApproved, res.Status)

	res, err = g.CheckCode(ctx, "+61493123456", code)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, res.Status, "codes are single use")
}

func TestLocalGateway_WrongCodeStaysPending(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := NewLocalGateway(store, &captureNotifier{})
	require.NoError(t, store.SetOTP(ctx, "+1", "123456"))

	res, err := g.CheckCode(ctx, "+1", "654321")
	require.NoError(t, err)
	require.Equal(t, StatusPending, res.Status)

	code, _ := store.GetOTP(ctx, "+1")
	require.Equal(t, "123456", code)
}

func TestLocalGateway_TooManyWrongCodesCancels(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := NewLocalGateway(store, &captureNotifier{})
	require.NoError(t, store.SetOTP(ctx, "+1", "123456"))

	for i := 1; i < storage.OTPMaxAttempts; i++ {
		res, err := g.CheckCode(ctx, "+1", "000000")
		require.NoError(t, err)
		require.Equal(t, StatusPending, res.Status, "attempt %d", i)
	}
	res, err := g.CheckCode(ctx, "+1", "000000")
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, res.Status)

	res, err = g.CheckCode(ctx, "+1", "123456")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, res.Status, "the right code no longer works")
}

func TestLocalGateway_NewCodeResetsAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := NewLocalGateway(store, &captureNotifier{})
	require.NoError(t, store.SetOTP(ctx, "+1", "123456"))
	for i := 1; i < storage.OTPMaxAttempts; i++ {
		_, err := g.CheckCode(ctx, "+1", "000000")
		require.NoError(t, err)
	}

	require.NoError(t, store.SetOTP(ctx, "+1", "654321"))
	res, err := g.CheckCode(ctx, "+1", "000000")
	require.NoError(t, err)
	require.Equal(t, StatusPending, res.Status)
	res, err = g.CheckCode(ctx, "+1", "654321")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, res.Status)
}

func TestLocalGateway_ResendReusesFreshCode(t *testing.T) {
	ctx := context.Background()
	n := &captureNotifier{}
	g := NewLocalGateway(memory.New(), n)

	_, err := g.SendCode(ctx, "+1", "sms")
	require.NoError(t, err)
	first := n.codes["+1"]
	_, err = g.SendCode(ctx, "+1", "sms")
	require.NoError(t, err)
	require.Equal(t, first, n.codes["+1"])
}

func TestLocalGateway_RateLimited(t *testing.T) {
	ctx := context.Background()
	g := NewLocalGateway(memory.New(), &captureNotifier{})

	for i := 0; i < storage.OTPRateLimitMax; i++ {
		_, err := g.SendCode(ctx, "+1", "sms")
		require.NoError(t, err)
	}
	_, err := g.SendCode(ctx, "+1", "sms")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestLocalGateway_NotifierFailure(t *testing.T) {
	boom := errors.New("smtp down")
	g := NewLocalGateway(memory.New(), &captureNotifier{err: boom})

	_, err := g.SendCode(context.Background(), "+1", "sms")
	require.ErrorIs(t, err, boom)
}

func TestOnlyDigits(t *testing.T) {
	require.Equal(t, "123456", onlyDigits("12 34-56​"))
	require.Empty(t, onlyDigits("abc"))
}
