// Package api provides the HTTP API server implementation for the gpt2giga
// proxy. It includes the main server struct, routing setup, middleware for
// CORS and client authentication, and integration with the OpenAI-compatible
// handlers. The server supports hot-reloading of configuration.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/api/handlers"
	"github.com/gpt2giga/gpt2giga/internal/api/handlers/openai"
	"github.com/gpt2giga/gpt2giga/internal/api/middleware"
	"github.com/gpt2giga/gpt2giga/internal/client"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/logging"
	"github.com/gpt2giga/gpt2giga/internal/util"
	log "github.com/sirupsen/logrus"
)

// Server represents the main API server.
// It encapsulates the Gin engine, HTTP server, handlers, and configuration.
type Server struct {
	// engine is the Gin web framework engine instance.
	engine *gin.Engine

	// server is the underlying HTTP server.
	server *http.Server

	// handlers contains the API handlers for processing requests.
	handlers *handlers.BaseAPIHandler

	// gigaClient is the backend client shared by all requests.
	gigaClient *client.GigaChatClient

	// cfg holds the current server configuration. Swapped atomically on hot
	// reload while request goroutines read it.
	cfg atomic.Pointer[config.Config]

	// requestLogger is the request logger instance for dynamic configuration updates.
	requestLogger *logging.FileRequestLogger
}

// NewServer creates and initializes a new API server instance.
// It sets up the Gin engine, middleware, routes, and handlers.
//
// Parameters:
//   - cfg: The server configuration
//   - gigaClient: The GigaChat backend client
//
// Returns:
//   - *Server: A new server instance
func NewServer(cfg *config.Config, gigaClient *client.GigaChatClient) *Server {
	// Set gin mode
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create gin engine
	engine := gin.New()

	// Add middleware
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	// Add request logging middleware (positioned after recovery, before auth)
	requestLogger := logging.NewFileRequestLogger(cfg.RequestLog, "logs")
	engine.Use(middleware.RequestLoggingMiddleware(requestLogger))

	engine.Use(corsMiddleware())

	// Create server instance
	s := &Server{
		engine:        engine,
		handlers:      handlers.NewBaseAPIHandlers(gigaClient, cfg),
		gigaClient:    gigaClient,
		requestLogger: requestLogger,
	}
	s.cfg.Store(cfg)

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	return s
}

// setupRoutes configures the API routes for the server.
// It defines the endpoints and associates them with their respective handlers.
func (s *Server) setupRoutes() {
	openaiHandlers := openai.NewOpenAIAPIHandler(s.handlers)

	// OpenAI compatible API routes
	v1 := s.engine.Group("/v1")
	v1.Use(AuthMiddleware(s))
	{
		v1.GET("/models", openaiHandlers.OpenAIModels)
		v1.POST("/chat/completions", openaiHandlers.ChatCompletions)
		v1.POST("/completions", openaiHandlers.Completions)
	}

	// Root endpoint
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "gpt2giga proxy",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /v1/chat/completions",
				"POST /v1/completions",
				"GET /v1/models",
			},
		})
	})
}

// Start begins listening for and serving HTTP requests.
// It blocks until the server is stopped.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server without interrupting active connections.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// UpdateConfig applies a hot-reloaded configuration to the running server,
// its handlers, and the backend client.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.handlers.UpdateConfig(cfg)
	s.gigaClient.UpdateConfig(cfg)
	s.requestLogger.SetEnabled(cfg.RequestLog)
	util.SetLogLevel(cfg)
	log.Info("server configuration reloaded")
}

// AuthMiddleware returns a Gin middleware that authenticates client requests
// against the configured API keys. When no keys are configured, all requests
// are accepted.
func AuthMiddleware(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.cfg.Load()
		if len(cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		// Get the Authorization header
		authHeader := c.GetHeader("Authorization")

		// Get the API key from the query parameter
		apiKeyQuery, _ := c.GetQuery("key")

		if authHeader == "" && apiKeyQuery == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
			})
			return
		}

		// Extract the API key
		parts := strings.Split(authHeader, " ")
		var apiKey string
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			apiKey = parts[1]
		} else {
			apiKey = authHeader
		}

		// Find the API key in the in-memory list
		var foundKey string
		switch {
		case util.InArray(cfg.APIKeys, apiKey):
			foundKey = apiKey
		case apiKeyQuery != "" && util.InArray(cfg.APIKeys, apiKeyQuery):
			foundKey = apiKeyQuery
		}
		if foundKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		// Store the API key in the context
		c.Set("apiKey", foundKey)

		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
