// Package llm submits rendered prompts to a text-generation provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tordrt/schemamodeler/internal/config"
)

// Model completes a single prompt. Implementations send exactly one user
// message with no history and return the text verbatim.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model, e.g. "openai/gpt-3.5-turbo"
	Name() string
}

// ProviderError wraps every failure reported by, or on the way to, a provider.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed: rate
// limits, server errors, timeouts and transport failures.
func (e *ProviderError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}

	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr)
}

// New builds the model selected by cfg. An explicit provider wins;
// otherwise the first configured credential decides, OpenAI first.
func New(cfg config.LLMConfig) (Model, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		switch {
		case cfg.OpenAIAPIKey != "":
			provider = config.ProviderOpenAI
		case cfg.AnthropicAPIKey != "":
			provider = config.ProviderAnthropic
		default:
			return nil, fmt.Errorf("no llm credentials configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
		}
	}

	switch provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm provider openai requires OPENAI_API_KEY")
		}
		return NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.MaxTokens, httpClient), nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("llm provider anthropic requires ANTHROPIC_API_KEY")
		}
		return NewAnthropicModel(cfg.AnthropicAPIKey, cfg.AnthropicModel, "", cfg.MaxTokens, httpClient), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
