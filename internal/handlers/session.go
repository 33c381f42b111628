package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-broker/internal/broker"
	"github.com/mossy-p/voice-broker/internal/models"
)

const serviceVersion = "1.0.0"

// Root describes the service and its endpoints
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Remi AI voice broker",
			"version": serviceVersion,
			"endpoints": gin.H{
				"health":         "/health",
				"create_session": "/session (POST)",
				"agent_prompt":   "/agent-prompt",
				"room_agent":     "/rooms/:room/agent (GET, PUT, DELETE)",
				"media":          "/ws/media/:room",
			},
		})
	}
}

// Health reports liveness and whether signing is configured
func Health(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Health())
	}
}

// CreateSession issues an access credential for a room. The body is optional.
func CreateSession(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SessionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		info, err := b.CreateSession(c.Request.Context(), broker.Request{
			RoomName:          req.RoomName,
			ParticipantName:   req.ParticipantName,
			AgentName:         req.AgentName,
			AgentInstructions: req.AgentInstructions,
		})
		if err != nil {
			if broker.IsConfigurationError(err) {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Media credentials not configured. Please set LIVEKIT_API_KEY and LIVEKIT_API_SECRET",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		c.JSON(http.StatusOK, models.SessionResponse{
			Token:           info.Token,
			MediaURL:        info.MediaURL,
			RoomName:        info.RoomName,
			ParticipantName: info.ParticipantName,
			AgentPrompt:     info.AgentPrompt,
			Message:         "Session created successfully. Connect to the room using the provided token.",
		})
	}
}

// AgentPrompt returns the default agent instructions
func AgentPrompt(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"prompt": b.AgentPrompt()})
	}
}
