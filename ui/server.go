package ui

import (
	"fmt"
	"log"

	"attune/internal/config"
	"attune/internal/container"

	"github.com/gin-gonic/gin"
)

// Server exposes the reconciliation engine over HTTP
type Server struct {
	router    *gin.Engine
	container *container.Container
}

// NewServer creates the web server and registers all routes
func NewServer(c *container.Container) *Server {
	if c.Config.Server.GinMode != "" {
		gin.SetMode(c.Config.Server.GinMode)
	}

	s := &Server{
		router:    gin.Default(),
		container: c,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		sessions := api.Group("/sessions/:sessionID")
		{
			sessions.POST("/attempts", s.handleSubmitAttempt)
			sessions.POST("/expressions", s.handleCompleteExpression)
			sessions.GET("/state", s.handleExchangeState)
			sessions.GET("/insights", s.handleInsights)
		}
		api.POST("/offers/:offerID/respond", s.handleOfferResponse)
		api.POST("/attempts/:attemptID/validate", s.handleValidate)
		api.POST("/attempts/:attemptID/delivery", s.handleDeliveryAck)
		api.GET("/events", s.container.SSEHub.HandleSSE)
	}
}

// Run starts the HTTP server on the configured port
func (s *Server) Run(cfg config.ServerConfig) error {
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("[Server] Listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":   "ok",
		"sessions": s.container.SSEHub.GetActiveSessions(),
	})
}
