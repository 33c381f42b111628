// Package store keeps per-room agent overrides and the set of peers connected
// to each room.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/mossy-p/voice-broker/internal/agent"
)

// roomTTL bounds how long room state survives without activity.
const roomTTL = 24 * time.Hour

// Store is implemented by the Redis and in-memory backends.
type Store interface {
	SetAgentConfig(ctx context.Context, room string, cfg agent.Config) error
	// AgentConfig returns the override stored for room, if any.
	AgentConfig(ctx context.Context, room string) (agent.Config, bool, error)
	DeleteAgentConfig(ctx context.Context, room string) error

	AddPeer(ctx context.Context, room, peerID string) error
	RemovePeer(ctx context.Context, room, peerID string) error
	PeerCount(ctx context.Context, room string) (int, error)

	Close() error
}

// Memory is a process-local Store used when Redis is not configured.
type Memory struct {
	mu     sync.RWMutex
	agents map[string]agent.Config
	peers  map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		agents: make(map[string]agent.Config),
		peers:  make(map[string]map[string]struct{}),
	}
}

func (m *Memory) SetAgentConfig(_ context.Context, room string, cfg agent.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[room] = cfg
	return nil
}

func (m *Memory) AgentConfig(_ context.Context, room string) (agent.Config, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.agents[room]
	return cfg, ok, nil
}

func (m *Memory) DeleteAgentConfig(_ context.Context, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, room)
	return nil
}

func (m *Memory) AddPeer(_ context.Context, room, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.peers[room]
	if !ok {
		set = make(map[string]struct{})
		m.peers[room] = set
	}
	set[peerID] = struct{}{}
	return nil
}

func (m *Memory) RemovePeer(_ context.Context, room, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.peers[room]; ok {
		delete(set, peerID)
		if len(set) == 0 {
			delete(m.peers, room)
		}
	}
	return nil
}

func (m *Memory) PeerCount(_ context.Context, room string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers[room]), nil
}

func (m *Memory) Close() error { return nil }
