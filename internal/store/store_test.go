package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	r, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  r,
	}
}

func TestStore_AgentConfig(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.AgentConfig(ctx, "r1")
			require.NoError(t, err)
			assert.False(t, ok)

			want := agent.Config{Name: "Ava", Instructions: "Answer roofing questions."}
			require.NoError(t, s.SetAgentConfig(ctx, "r1", want))

			got, ok, err := s.AgentConfig(ctx, "r1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want, got)

			_, ok, err = s.AgentConfig(ctx, "r2")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.DeleteAgentConfig(ctx, "r1"))
			_, ok, err = s.AgentConfig(ctx, "r1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Peers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.AddPeer(ctx, "r1", "p1"))
			require.NoError(t, s.AddPeer(ctx, "r1", "p2"))
			require.NoError(t, s.AddPeer(ctx, "r1", "p2"))
			require.NoError(t, s.AddPeer(ctx, "r2", "p3"))

			n, err := s.PeerCount(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, s.RemovePeer(ctx, "r1", "p1"))
			n, err = s.PeerCount(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.PeerCount(ctx, "missing")
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
