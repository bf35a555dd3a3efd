// Package server exposes schema reflection and model generation over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/diagram"
	"github.com/tordrt/schemamodeler/internal/logger"
	"github.com/tordrt/schemamodeler/internal/pipeline"
)

// Deps are the components the routes are served from
type Deps struct {
	Schemas            SchemaCache
	Generator          *pipeline.Generator
	Diagrams           *diagram.Client
	DefaultDatabaseURL string
	Logger             logrus.FieldLogger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Deps) *gin.Engine {
	log := logger.OrDiscard(deps.Logger)
	h := &handler{
		schemas:    deps.Schemas,
		generator:  deps.Generator,
		diagrams:   deps.Diagrams,
		defaultURL: deps.DefaultDatabaseURL,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestContext(log))
	router.Use(errorHandler())

	router.GET("/healthz", h.health)

	api := router.Group("/api/v1")
	{
		api.GET("/roles", h.roles)
		api.GET("/schema", h.getSchema)
		api.DELETE("/schema/cache", h.invalidateSchema)
		api.POST("/models", h.generate)
		api.POST("/diagrams", h.renderDiagram)
	}

	return router
}

// Server wraps the HTTP server around the router
type Server struct {
	httpServer *http.Server
	log        logrus.FieldLogger
}

// New creates a server listening on addr. writeTimeout must cover a full
// model call.
func New(addr string, writeTimeout time.Duration, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(deps),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
		},
		log: logger.OrDiscard(deps.Logger),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
