package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/rs/zerolog"
)

// RoomAgents serves the per-room agent personality overrides.
type RoomAgents struct {
	store    store.Store
	hub      *media.Hub
	defaults agent.Config
	log      zerolog.Logger
}

// NewRoomAgents creates the handlers. hub may be nil, in which case
// participant counts come from the store alone.
func NewRoomAgents(st store.Store, hub *media.Hub, defaults agent.Config, logger zerolog.Logger) *RoomAgents {
	return &RoomAgents{
		store:    st,
		hub:      hub,
		defaults: defaults,
		log:      logger.With().Str("module", "rooms").Logger(),
	}
}

// Get returns the agent a room will get, falling back to the defaults
func (h *RoomAgents) Get(c *gin.Context) {
	room := c.Param("room")
	ctx := c.Request.Context()

	cfg, custom, err := h.store.AgentConfig(ctx, room)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load agent config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load agent config"})
		return
	}
	if !custom {
		cfg = h.defaults
	}

	participants, err := h.store.PeerCount(ctx, room)
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("failed to count participants")
	}

	// A room live on this instance is counted directly; the store also sees
	// peers connected to other instances.
	live := false
	if h.hub != nil {
		if r, ok := h.hub.Room(room); ok {
			live = true
			participants = max(participants, len(r.Participants()))
		}
	}

	c.JSON(http.StatusOK, models.RoomAgentResponse{
		Room:              room,
		AgentName:         cfg.Name,
		AgentInstructions: cfg.Instructions,
		Custom:            custom,
		Live:              live,
		Participants:      participants,
	})
}

// Put stores a complete agent override for a room
func (h *RoomAgents) Put(c *gin.Context) {
	room := c.Param("room")

	var req models.AgentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentName and agentInstructions are required"})
		return
	}
	cfg := agent.Config{
		Name:         strings.TrimSpace(req.AgentName),
		Instructions: strings.TrimSpace(req.AgentInstructions),
	}
	if cfg.Name == "" || cfg.Instructions == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentName and agentInstructions are required"})
		return
	}

	if err := h.store.SetAgentConfig(c.Request.Context(), room, cfg); err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to store agent config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store agent config"})
		return
	}

	h.log.Info().Str("room", room).Str("agent", cfg.Name).Msg("agent config stored")
	c.JSON(http.StatusOK, models.RoomAgentResponse{
		Room:              room,
		AgentName:         cfg.Name,
		AgentInstructions: cfg.Instructions,
		Custom:            true,
	})
}

// Delete removes a room's override so it falls back to the defaults
func (h *RoomAgents) Delete(c *gin.Context) {
	room := c.Param("room")

	if err := h.store.DeleteAgentConfig(c.Request.Context(), room); err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to delete agent config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete agent config"})
		return
	}

	h.log.Info().Str("room", room).Msg("agent config deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Agent config deleted"})
}
