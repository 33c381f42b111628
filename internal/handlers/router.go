package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/broker"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/middleware"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/mossy-p/voice-broker/internal/token"
	"github.com/rs/zerolog"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config *config.Config
	Broker *broker.Broker
	Issuer *token.Issuer
	Store  store.Store
	Hub    *media.Hub
	Logger zerolog.Logger
}

// NewRouter builds the broker's routes.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(d.Logger))

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(d.Config.AllowedOrigins))

	router.GET("/", Root())
	router.GET("/health", Health(d.Broker))
	router.POST("/session", CreateSession(d.Broker))
	router.GET("/agent-prompt", AgentPrompt(d.Broker))

	agents := NewRoomAgents(d.Store, d.Hub, d.Config.Agent, d.Logger)
	roomGroup := router.Group("/rooms/:room")
	{
		roomGroup.GET("/agent", agents.Get)
		roomGroup.PUT("/agent", agents.Put)
		roomGroup.DELETE("/agent", agents.Delete)
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/media/:room", middleware.MediaAuth(d.Issuer), Media(d.Hub, d.Logger))
	}

	return router
}
