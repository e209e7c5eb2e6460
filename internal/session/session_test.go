package session

import (
	"context"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/require"
)

func newLoaded(t *testing.T) (*scs.SessionManager, context.Context) {
	t.Helper()
	sm := scs.New()
	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	return sm, ctx
}

func TestSession_SetGetUnset(t *testing.T) {
	sm, ctx := newLoaded(t)
	s := New(ctx, sm)
	require.Empty(t, s.ID())
	require.False(t, s.Has("username"))

	s.Set("username", "alice")
	v, ok := s.Get("username")
	require.True(t, ok)
	require.Equal(t, "alice", v)
	require.Equal(t, scs.Modified, sm.Status(ctx))

	s.Unset("username")
	require.False(t, s.Has("username"))
}

func TestSession_NoOpWritesLeaveStatus(t *testing.T) {
	sm, ctx := newLoaded(t)
	s := New(ctx, sm)

	s.Unset("missing")
	require.Equal(t, scs.Unmodified, sm.Status(ctx))
}

func TestSession_PopAndKeys(t *testing.T) {
	sm, ctx := newLoaded(t)
	s := New(ctx, sm)
	s.Set("b", "2")
	s.Set("a", "1")
	require.Equal(t, []string{"a", "b"}, s.Keys())

	v, ok := s.Pop("a")
	require.True(t, ok)
	require.Equal(t, "1", v)
	_, ok = s.Pop("a")
	require.False(t, ok)
	require.Equal(t, []string{"b"}, s.Keys())
}

func TestSession_NonStringValueIsAbsent(t *testing.T) {
	sm, ctx := newLoaded(t)
	sm.Put(ctx, "n", 42)

	_, ok := New(ctx, sm).Get("n")
	require.False(t, ok)
}

func TestSession_ValuesSurviveCommit(t *testing.T) {
	sm, ctx := newLoaded(t)
	New(ctx, sm).Set("username", "alice")
	token, _, err := sm.Commit(ctx)
	require.NoError(t, err)

	ctx2, err := sm.Load(context.Background(), token)
	require.NoError(t, err)
	s := New(ctx2, sm)
	require.Equal(t, token, s.ID())
	v, ok := s.Get("username")
	require.True(t, ok)
	require.Equal(t, "alice", v)
}

func TestContext(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))

	sm, ctx := newLoaded(t)
	s := New(ctx, sm)
	require.Same(t, s, FromContext(NewContext(context.Background(), s)))
}
