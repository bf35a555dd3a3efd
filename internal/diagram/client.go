package diagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/logger"
)

const (
	// DefaultBaseURL is a PlantUML server on its default port
	DefaultBaseURL = "http://localhost:8080"
	// DefaultOutput is where Render writes when no path is given
	DefaultOutput = "class_diagram.png"
)

// RenderError reports a renderer response that is not a PNG image
type RenderError struct {
	StatusCode  int
	ContentType string
	URL         string
	Err         error // transport failure, if no response arrived
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to render diagram: %v", e.Err)
	}
	return fmt.Sprintf("failed to render diagram: status %d, content type %q", e.StatusCode, e.ContentType)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Client talks to a PlantUML server
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// NewClient creates a client for baseURL, or DefaultBaseURL when empty
func NewClient(baseURL string, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger.OrDiscard(log),
	}
}

// URL returns the PNG endpoint for text
func (c *Client) URL(text string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/png/" + Encode(text)
}

// Fetch retrieves the rendered PNG. Only a 200 response with an image/png
// content type succeeds.
func (c *Client) Fetch(ctx context.Context, text string) ([]byte, error) {
	url := c.URL(text)
	log := logger.OrDiscard(c.Logger).WithField("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("renderer unreachable")
		return nil, &RenderError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.Contains(contentType, "image/png") {
		log.WithFields(logrus.Fields{
			"status":       resp.StatusCode,
			"content_type": contentType,
		}).Error("failed to generate UML diagram")
		return nil, &RenderError{StatusCode: resp.StatusCode, ContentType: contentType, URL: url}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RenderError{StatusCode: resp.StatusCode, ContentType: contentType, URL: url, Err: err}
	}
	return data, nil
}

// Render fetches the diagram and writes it to outputPath (DefaultOutput when
// empty). Nothing is written on failure.
func (c *Client) Render(ctx context.Context, text, outputPath string) error {
	if outputPath == "" {
		outputPath = DefaultOutput
	}

	data, err := c.Fetch(ctx, text)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write diagram: %w", err)
	}
	logger.OrDiscard(c.Logger).WithField("path", outputPath).Info("UML diagram saved")
	return nil
}
