package llm

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// OpenAIModel completes prompts through the chat completions API
type OpenAIModel struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIModel creates an OpenAI model. baseURL and httpClient are optional.
func NewOpenAIModel(apiKey, model, baseURL string, maxTokens int, httpClient *http.Client) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	return &OpenAIModel{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name implements Model
func (m *OpenAIModel) Name() string { return providerOpenAI + "/" + m.model }

// Complete implements Model
func (m *OpenAIModel) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		// the request field is omitempty, so a literal zero would be dropped
		// and the server default (1.0) used instead
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   m.maxTokens,
	})
	if err != nil {
		return "", openAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: providerOpenAI, Err: errors.New("response contained no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(err error) error {
	pe := &ProviderError{Provider: providerOpenAI, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
	}
	return pe
}
