// Package session exposes the per-visitor key/value state that middleware.Sessions loads
// through an scs.SessionManager and commits to a storage.SessionOTPStore between requests.
package session

import (
	"context"

	"github.com/alexedwards/scs/v2"
)

// Session binds the manager to one request context. Values are strings.
type Session struct {
	sm  *scs.SessionManager
	ctx context.Context
}

// New wraps the session data that sm loaded into ctx.
func New(ctx context.Context, sm *scs.SessionManager) *Session {
	return &Session{sm: sm, ctx: ctx}
}

// ID is the session token, empty until the session is first committed.
func (s *Session) ID() string { return s.sm.Token(s.ctx) }

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.sm.Get(s.ctx, key).(string)
	return v, ok
}

func (s *Session) Has(key string) bool { return s.sm.Exists(s.ctx, key) }

func (s *Session) Set(key, value string) {
	if old, ok := s.Get(key); ok && old == value {
		return
	}
	s.sm.Put(s.ctx, key, value)
}

func (s *Session) Unset(key string) {
	if !s.Has(key) {
		return
	}
	s.sm.Remove(s.ctx, key)
}

// Pop returns key and removes it from the session.
func (s *Session) Pop(key string) (string, bool) {
	if !s.Has(key) {
		return "", false
	}
	return s.sm.PopString(s.ctx, key), true
}

// Keys lists the stored keys in sorted order.
func (s *Session) Keys() []string { return s.sm.Keys(s.ctx) }

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request session, or nil outside the session middleware.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
