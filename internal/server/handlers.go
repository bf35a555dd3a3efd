package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tordrt/schemamodeler/internal/diagram"
	"github.com/tordrt/schemamodeler/internal/pipeline"
	"github.com/tordrt/schemamodeler/internal/prompt"
	"github.com/tordrt/schemamodeler/internal/schema"
)

// SchemaCache is the cached reflector the handlers read through
type SchemaCache interface {
	Reflect(ctx context.Context, databaseURL string) (*schema.Schema, error)
	Invalidate(ctx context.Context, databaseURL string) error
}

// GenerateRequest is the body of POST /api/v1/models
type GenerateRequest struct {
	Role        string `json:"role" binding:"required"`
	DatabaseURL string `json:"db_url"`
	DryRun      bool   `json:"dry_run"`
}

// GenerateResponse carries the model output for one role
type GenerateResponse struct {
	Role   string `json:"role"`
	Model  string `json:"model,omitempty"`
	Text   string `json:"text,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// DiagramRequest is the body of POST /api/v1/diagrams
type DiagramRequest struct {
	PlantUML string `json:"plantuml" binding:"required"`
}

type handler struct {
	schemas    SchemaCache
	generator  *pipeline.Generator
	diagrams   *diagram.Client
	defaultURL string
}

func (h *handler) databaseURL(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return h.defaultURL
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) roles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": prompt.RoleNames()})
}

func (h *handler) getSchema(c *gin.Context) {
	s, err := h.schemas.Reflect(c.Request.Context(), h.databaseURL(c.Query("db_url")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) invalidateSchema(c *gin.Context) {
	if err := h.schemas.Invalidate(c.Request.Context(), h.databaseURL(c.Query("db_url"))); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	url := h.databaseURL(req.DatabaseURL)
	ctx := c.Request.Context()

	if req.DryRun {
		p, err := h.generator.Prompt(ctx, req.Role, url)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, GenerateResponse{Role: req.Role, Prompt: p})
		return
	}

	text, err := h.generator.Generate(ctx, req.Role, url)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Role: req.Role, Model: h.generator.Model.Name(), Text: text})
}

func (h *handler) renderDiagram(c *gin.Context) {
	var req DiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	png, err := h.diagrams.Fetch(c.Request.Context(), diagram.ExtractPlantUML(req.PlantUML))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
