package gateway

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ecofarmcast-go/internal/config"
)

// ChatCompleter is minimal subset of openai.Client used by the openai backend; it is easy to mock in tests.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint.
// Top-k has no equivalent there and is dropped.
type OpenAIBackend struct {
	client ChatCompleter
}

// NewOpenAIBackend creates a new OpenAI client
func NewOpenAIBackend(cfg config.LLMConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return NewOpenAIBackendWith(openai.NewClientWithConfig(clientConfig))
}

// NewOpenAIBackendWith wraps an existing chat completer.
func NewOpenAIBackendWith(client ChatCompleter) *OpenAIBackend {
	return &OpenAIBackend{client: client}
}

// Name returns the provider name.
func (b *OpenAIBackend) Name() string { return config.ProviderOpenAI }

// Complete sends the system instruction and prompt as a two-message chat.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   int(opts.MaxOutputTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
