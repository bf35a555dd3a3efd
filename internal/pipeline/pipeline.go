// Package pipeline turns a database URL and a role into model-generated
// text: reflect, describe, render the prompt, complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/formatter"
	"github.com/tordrt/schemamodeler/internal/llm"
	"github.com/tordrt/schemamodeler/internal/logger"
	"github.com/tordrt/schemamodeler/internal/prompt"
	"github.com/tordrt/schemamodeler/internal/schema"
)

// ErrNoModel is returned by Generate when no provider credential is configured
var ErrNoModel = errors.New("no text-generation model configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")

// SchemaSource returns the physical schema behind a database URL.
// *reflector.Reflector satisfies it.
type SchemaSource interface {
	Reflect(ctx context.Context, databaseURL string) (*schema.Schema, error)
}

// Generator runs one role against one database
type Generator struct {
	Schemas SchemaSource
	Model   llm.Model
	Logger  logrus.FieldLogger
}

// New creates a Generator
func New(schemas SchemaSource, model llm.Model, log logrus.FieldLogger) *Generator {
	return &Generator{Schemas: schemas, Model: model, Logger: logger.OrDiscard(log)}
}

func (g *Generator) log() logrus.FieldLogger {
	return logger.OrDiscard(g.Logger)
}

// Prompt returns the fully rendered prompt for role without calling the model
func (g *Generator) Prompt(ctx context.Context, role, databaseURL string) (string, error) {
	r, err := prompt.ParseRole(role)
	if err != nil {
		return "", err
	}
	return g.render(ctx, r, databaseURL, g.log().WithField("role", role))
}

func (g *Generator) render(ctx context.Context, r prompt.Role, databaseURL string, log logrus.FieldLogger) (string, error) {
	log.Debug("reflecting schema")
	s, err := g.Schemas.Reflect(ctx, databaseURL)
	if err != nil {
		return "", err
	}
	return prompt.Render(r, formatter.Describe(s))
}

// Generate reflects the database, binds its description into the role's
// template and submits the prompt once. The model's text is returned
// verbatim. An unknown role fails before the database or model is touched.
func (g *Generator) Generate(ctx context.Context, role, databaseURL string) (string, error) {
	log := g.log().WithFields(logrus.Fields{
		"role": role,
		"url":  db.RedactURL(databaseURL),
	})

	r, err := prompt.ParseRole(role)
	if err != nil {
		log.WithError(err).Error("invalid role")
		return "", err
	}
	if g.Model == nil {
		return "", ErrNoModel
	}

	log.Info("generating logical model")
	text, err := g.render(ctx, r, databaseURL, log)
	if err != nil {
		log.WithError(err).Error("failed to build prompt")
		return "", err
	}

	log.WithField("model", g.Model.Name()).Debug("submitting prompt")
	out, err := g.Model.Complete(ctx, text)
	if err != nil {
		log.WithError(err).WithField("model", g.Model.Name()).Error("model call failed")
		return "", err
	}

	log.WithField("chars", len(out)).Info("logical model generated")
	return out, nil
}

// Result is the output of one role in a batch run
type Result struct {
	Role prompt.Role
	Text string
}

// GenerateAll runs roles sequentially, stopping at the first failure. Roles
// are validated up front so a typo fails before any model call.
func (g *Generator) GenerateAll(ctx context.Context, roles []string, databaseURL string) ([]Result, error) {
	parsed := make([]prompt.Role, 0, len(roles))
	for _, role := range roles {
		r, err := prompt.ParseRole(role)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, r)
	}

	results := make([]Result, 0, len(parsed))
	for _, r := range parsed {
		text, err := g.Generate(ctx, string(r), databaseURL)
		if err != nil {
			return results, fmt.Errorf("role %s: %w", r, err)
		}
		results = append(results, Result{Role: r, Text: text})
	}
	return results, nil
}
