package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/require"

	"github.com/smsgate/internal/storage"
	"github.com/smsgate/internal/storage/memory"
)

func TestSessionStore_BacksManager(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	sm := scs.New()
	sm.Store = storage.NewSessionStore(backing)

	loaded, err := sm.Load(ctx, "")
	require.NoError(t, err)
	sm.Put(loaded, "username", "alice")
	token, _, err := sm.Commit(loaded)
	require.NoError(t, err)

	_, found, err := backing.FindSession(ctx, token)
	require.NoError(t, err)
	require.True(t, found)

	again, err := sm.Load(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "alice", sm.GetString(again, "username"))

	require.NoError(t, sm.Destroy(again))
	_, found, err = backing.FindSession(ctx, token)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSessionStore_ContextFreeMethods(t *testing.T) {
	s := storage.NewSessionStore(memory.New())

	require.NoError(t, s.Commit("tok", []byte("data"), time.Now().Add(time.Minute)))
	b, found, err := s.Find("tok")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("data"), b)

	require.NoError(t, s.Delete("tok"))
	_, found, err = s.Find("tok")
	require.NoError(t, err)
	require.False(t, found)
}
