package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI API.
type OpenAIProvider struct {
	client         *openai.Client
	baseURL        string
	model          string
	embeddingModel openai.EmbeddingModel
	temperature    float32
}

// OpenAIOption customizes an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithModel sets the chat completion model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.model = model
	}
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model openai.EmbeddingModel) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.embeddingModel = model
	}
}

// WithTemperature sets the sampling temperature for completions.
func WithTemperature(temperature float32) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.temperature = temperature
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = baseURL
	}
}

// NewOpenAIProvider creates an OpenAI-backed provider.
// If apiKey is empty, it tries the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	p := &OpenAIProvider{
		model:          openai.GPT4oMini,
		embeddingModel: openai.SmallEmbedding3,
		temperature:    0.1,
	}

	for _, opt := range opts {
		opt(p)
	}

	config := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		config.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(config)

	return p, nil
}

// NewOpenAIProviderWithClient wraps an existing client; useful for tests and
// OpenAI-compatible endpoints.
func NewOpenAIProviderWithClient(client *openai.Client, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		client:         client,
		model:          openai.GPT4oMini,
		embeddingModel: openai.SmallEmbedding3,
		temperature:    0.1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed returns the embedding vector for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.embeddingModel,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Data) == 0 {
		return nil, &Error{Kind: ErrKindInvalidResponse, Err: fmt.Errorf("embedding response has no data")}
	}

	return resp.Data[0].Embedding, nil
}

// Complete returns a free-text completion for prompt.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrKindInvalidResponse, Err: fmt.Errorf("completion response has no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON requests a JSON-mode completion and unmarshals it into out.
func (p *OpenAIProvider) CompleteJSON(ctx context.Context, prompt string, out any) error {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return &Error{Kind: ErrKindInvalidResponse, Err: fmt.Errorf("completion response has no choices")}
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return &Error{Kind: ErrKindInvalidResponse, Err: fmt.Errorf("unmarshal structured response: %w", err)}
	}

	return nil
}

// wrapError maps OpenAI client errors onto the provider taxonomy.
func (p *OpenAIProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrKindTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &Error{Kind: ErrKindRateLimited, Err: err}
		case 401, 403:
			return &Error{Kind: ErrKindAuth, Err: err}
		case 408, 504:
			return &Error{Kind: ErrKindTimeout, Err: err}
		}
	}

	return &Error{Kind: ErrKindInvalidResponse, Err: err}
}
