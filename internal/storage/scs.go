package storage

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
)

// SessionStore adapts a SessionOTPStore to scs, so sessions live next to the OTP state
// in the same Redis (or in-memory) store.
type SessionStore struct {
	s SessionOTPStore
}

var _ scs.CtxStore = (*SessionStore)(nil)

func NewSessionStore(s SessionOTPStore) *SessionStore {
	return &SessionStore{s: s}
}

func (a *SessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	return a.s.FindSession(ctx, token)
}

func (a *SessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	return a.s.CommitSession(ctx, token, b, expiry)
}

func (a *SessionStore) DeleteCtx(ctx context.Context, token string) error {
	return a.s.DeleteSession(ctx, token)
}

func (a *SessionStore) Find(token string) ([]byte, bool, error) {
	return a.FindCtx(context.Background(), token)
}

func (a *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return a.CommitCtx(context.Background(), token, b, expiry)
}

func (a *SessionStore) Delete(token string) error {
	return a.DeleteCtx(context.Background(), token)
}
