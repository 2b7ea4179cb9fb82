package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/comigor/ecofarmcast-go/internal/config"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// ContentGenerator is the subset of genai.Models used by the gemini backend;
// it is easy to mock in tests.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend talks to the Gemini generateContent endpoint.
type GeminiBackend struct {
	models ContentGenerator
}

// NewGeminiBackend creates a genai client from cfg. BaseURL overrides the
// public endpoint, which tests use to point at a local server.
func NewGeminiBackend(ctx context.Context, cfg config.LLMConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	logger.L.Debug("gemini client initialized", "base_url", cfg.BaseURL)
	return NewGeminiBackendWith(client.Models), nil
}

// NewGeminiBackendWith wraps an existing content generator.
func NewGeminiBackendWith(models ContentGenerator) *GeminiBackend {
	return &GeminiBackend{models: models}
}

// Name returns the provider name.
func (b *GeminiBackend) Name() string { return config.ProviderGemini }

// Complete sends prompt as a single user turn.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := b.models.GenerateContent(ctx, opts.Model, contents, generationConfig(opts))
	if err != nil {
		return "", err
	}
	return responseText(result), nil
}

func generationConfig(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(opts.Temperature),
		TopP:            genai.Ptr(opts.TopP),
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if opts.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(opts.TopK))
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	return cfg
}

// responseText concatenates the non-thought text parts of every candidate.
func responseText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
