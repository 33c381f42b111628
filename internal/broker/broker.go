// Package broker hands out the connection details a client needs to join a
// voice room with the agent.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/mossy-p/voice-broker/internal/token"
	"github.com/rs/zerolog"
)

// Request asks for a session. Empty names are replaced with configured defaults.
// AgentName and AgentInstructions optionally override the agent for the room.
type Request struct {
	RoomName          string
	ParticipantName   string
	AgentName         string
	AgentInstructions string
}

// SessionInfo is everything a client needs to connect.
type SessionInfo struct {
	Token           string
	MediaURL        string
	RoomName        string
	ParticipantName string
	AgentPrompt     string
}

// Health is the readiness probe result.
type Health struct {
	Status            string `json:"status"`
	SigningConfigured bool   `json:"signing_configured"`
}

// Broker validates configuration and issues credentials. It holds no mutable
// state of its own, so CreateSession is safe to call concurrently.
type Broker struct {
	cfg    *config.Config
	issuer *token.Issuer
	agents store.Store
	log    zerolog.Logger
}

// New creates a broker. agents may be nil, which disables per-room agent overrides.
func New(cfg *config.Config, issuer *token.Issuer, agents store.Store, logger zerolog.Logger) *Broker {
	return &Broker{
		cfg:    cfg,
		issuer: issuer,
		agents: agents,
		log:    logger.With().Str("module", "broker").Logger(),
	}
}

// CreateSession issues a credential for the requested room and participant.
// A missing signing key yields an error wrapping token.ErrConfiguration;
// signing failures yield *token.IssuanceError.
func (b *Broker) CreateSession(ctx context.Context, req Request) (*SessionInfo, error) {
	room := strings.TrimSpace(req.RoomName)
	if room == "" {
		room = b.cfg.Media.DefaultRoom
	}
	participant := strings.TrimSpace(req.ParticipantName)
	if participant == "" {
		participant = b.cfg.Media.DefaultParticipant
	}

	if !b.issuer.Configured() {
		return nil, fmt.Errorf("create session: %w", token.ErrConfiguration)
	}

	metadata, err := b.agentMetadata(ctx, room, req)
	if err != nil {
		return nil, err
	}

	cred, err := b.issuer.Issue(room, participant, metadata)
	if err != nil {
		b.log.Error().Err(err).Str("room", room).Msg("credential issuance failed")
		return nil, fmt.Errorf("create session: %w", err)
	}

	b.log.Info().
		Str("room", room).
		Str("participant", participant).
		Time("expires_at", cred.ExpiresAt).
		Msg("session created")

	return &SessionInfo{
		Token:           cred.Token,
		MediaURL:        b.cfg.Media.URL,
		RoomName:        room,
		ParticipantName: participant,
		AgentPrompt:     b.cfg.Agent.Instructions,
	}, nil
}

// agentMetadata returns the participant metadata to embed in the credential.
// A complete override in the request is stored for the room; otherwise any
// previously stored override is used.
func (b *Broker) agentMetadata(ctx context.Context, room string, req Request) (string, error) {
	name := strings.TrimSpace(req.AgentName)
	instructions := strings.TrimSpace(req.AgentInstructions)

	if name != "" && instructions != "" {
		override := agent.Config{Name: name, Instructions: instructions}
		if b.agents != nil {
			if err := b.agents.SetAgentConfig(ctx, room, override); err != nil {
				return "", fmt.Errorf("store agent override: %w", err)
			}
		}
		return agent.Metadata(override), nil
	}

	if b.agents == nil {
		return "", nil
	}
	stored, ok, err := b.agents.AgentConfig(ctx, room)
	if err != nil {
		// Overrides are optional; a lookup failure must not block the call.
		b.log.Warn().Err(err).Str("room", room).Msg("agent override lookup failed")
		return "", nil
	}
	if !ok {
		return "", nil
	}
	return agent.Metadata(stored), nil
}

// Health reports whether signing key material is configured.
func (b *Broker) Health() Health {
	return Health{Status: "healthy", SigningConfigured: b.issuer.Configured()}
}

// AgentPrompt returns the default agent instruction text.
func (b *Broker) AgentPrompt() string {
	return b.cfg.Agent.Instructions
}

// IsConfigurationError reports whether err means the service is misconfigured
// rather than the request being invalid.
func IsConfigurationError(err error) bool {
	return errors.Is(err, token.ErrConfiguration)
}
