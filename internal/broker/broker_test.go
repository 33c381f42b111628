package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/mossy-p/voice-broker/internal/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(key, secret string) *config.Config {
	return &config.Config{
		Media: config.MediaConfig{
			URL:                "wss://media.example.com",
			APIKey:             key,
			APISecret:          secret,
			TokenTTL:           time.Hour,
			DefaultRoom:        "remi-voice-demo",
			DefaultParticipant: "Customer",
		},
		Agent: agent.Default(),
	}
}

func newBroker(cfg *config.Config, s store.Store) *Broker {
	issuer := token.NewIssuer(cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.TokenTTL)
	return New(cfg, issuer, s, zerolog.Nop())
}

func TestCreateSession_ReturnsConnectionDetails(t *testing.T) {
	cfg := testConfig("key", "secret")
	b := newBroker(cfg, store.NewMemory())

	info, err := b.CreateSession(context.Background(), Request{RoomName: "r1", ParticipantName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, "r1", info.RoomName)
	assert.Equal(t, "Alice", info.ParticipantName)
	assert.Equal(t, "wss://media.example.com", info.MediaURL)
	assert.Equal(t, agent.DefaultInstructions, info.AgentPrompt)
	assert.NotEmpty(t, info.Token)
}

func TestCreateSession_Defaults(t *testing.T) {
	b := newBroker(testConfig("key", "secret"), nil)

	info, err := b.CreateSession(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "remi-voice-demo", info.RoomName)
	assert.Equal(t, "Customer", info.ParticipantName)
}

func TestCreateSession_MissingKeyMaterial(t *testing.T) {
	for _, tc := range []struct{ key, secret string }{{"", "secret"}, {"key", ""}, {"", ""}} {
		b := newBroker(testConfig(tc.key, tc.secret), nil)

		info, err := b.CreateSession(context.Background(), Request{RoomName: "r1", ParticipantName: "Alice"})
		assert.Nil(t, info)
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
		assert.True(t, errors.Is(err, token.ErrConfiguration))
	}
}

func TestCreateSession_EmbedsAndStoresAgentOverride(t *testing.T) {
	cfg := testConfig("key", "secret")
	s := store.NewMemory()
	b := newBroker(cfg, s)
	issuer := token.NewIssuer("key", "secret", time.Hour)

	info, err := b.CreateSession(context.Background(), Request{
		RoomName:          "r1",
		ParticipantName:   "Alice",
		AgentName:         "Ava",
		AgentInstructions: "Book roofing inspections.",
	})
	require.NoError(t, err)

	claims, err := issuer.Verify(info.Token)
	require.NoError(t, err)
	assert.Equal(t, agent.Config{Name: "Ava", Instructions: "Book roofing inspections."}, agent.Resolve(claims.Metadata, agent.Default()))

	stored, ok, err := s.AgentConfig(context.Background(), "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ava", stored.Name)

	// A later session for the same room picks the stored override up.
	info, err = b.CreateSession(context.Background(), Request{RoomName: "r1", ParticipantName: "Bob"})
	require.NoError(t, err)
	claims, err = issuer.Verify(info.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ava", agent.Resolve(claims.Metadata, agent.Default()).Name)
}

func TestCreateSession_PartialOverrideIsIgnored(t *testing.T) {
	s := store.NewMemory()
	b := newBroker(testConfig("key", "secret"), s)

	_, err := b.CreateSession(context.Background(), Request{RoomName: "r1", AgentName: "Ava"})
	require.NoError(t, err)

	_, ok, err := s.AgentConfig(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	assert.Equal(t, Health{Status: "healthy", SigningConfigured: true}, newBroker(testConfig("key", "secret"), nil).Health())
	assert.Equal(t, Health{Status: "healthy", SigningConfigured: false}, newBroker(testConfig("", "secret"), nil).Health())
}

func TestAgentPrompt(t *testing.T) {
	cfg := testConfig("key", "secret")
	cfg.Agent.Instructions = "You are a receptionist for ACME Roofing."

	assert.Equal(t, "You are a receptionist for ACME Roofing.", newBroker(cfg, nil).AgentPrompt())
}
