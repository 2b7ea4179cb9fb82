// Package gateway sends composed prompts to a generative-language endpoint
// and parses the reply. One attempt is made per call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/comigor/ecofarmcast-go/internal/config"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// ErrEmptyReply is returned when the endpoint answered without any text.
var ErrEmptyReply = errors.New("empty model response")

// Options tunes one generation call. Zero values take the gateway defaults.
type Options struct {
	Model           string  `json:"model,omitempty"`
	System          string  `json:"system,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
	TopK            int32   `json:"top_k,omitempty"`
	TopP            float32 `json:"top_p,omitempty"`
	MaxOutputTokens int32   `json:"max_output_tokens,omitempty"`
}

// Reply is the parsed model answer.
type Reply struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Generator is what the assistant and the analysis service depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (Reply, error)
}

// Backend performs the raw call against one provider. opts is fully resolved.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Gateway applies defaults, calls the backend and parses the answer.
type Gateway struct {
	backend  Backend
	defaults Options
}

// New wraps backend with defaults taken from cfg.
func New(backend Backend, cfg config.LLMConfig) *Gateway {
	return &Gateway{
		backend: backend,
		defaults: Options{
			Model:           cfg.Model,
			System:          cfg.SystemPrompt,
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}
}

// NewFromConfig builds the backend named by cfg.Provider.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (*Gateway, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderGemini:
		backend, err = NewGeminiBackend(ctx, cfg)
	case config.ProviderOpenAI:
		backend = NewOpenAIBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, cfg), nil
}

// Resolve fills unset fields of opts from the gateway defaults.
func (g *Gateway) Resolve(opts Options) Options {
	opts.Model, _ = lo.Coalesce(opts.Model, g.defaults.Model)
	opts.System, _ = lo.Coalesce(opts.System, g.defaults.System)
	opts.Temperature, _ = lo.Coalesce(opts.Temperature, g.defaults.Temperature)
	opts.TopK, _ = lo.Coalesce(opts.TopK, g.defaults.TopK)
	opts.TopP, _ = lo.Coalesce(opts.TopP, g.defaults.TopP)
	opts.MaxOutputTokens, _ = lo.Coalesce(opts.MaxOutputTokens, g.defaults.MaxOutputTokens)
	return opts
}

// Generate sends prompt and returns the parsed reply. Transport errors,
// non-success responses and empty answers are returned as errors.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts Options) (Reply, error) {
	opts = g.Resolve(opts)
	logger.L.Debug("generate request", "backend", g.backend.Name(), "model", opts.Model, "prompt_length", len(prompt))

	raw, err := g.backend.Complete(ctx, prompt, opts)
	if err != nil {
		return Reply{}, fmt.Errorf("%s request failed: %w", g.backend.Name(), err)
	}

	reply := ParseReply(raw)
	if reply.Text == "" && len(reply.Suggestions) == 0 {
		return Reply{}, ErrEmptyReply
	}
	logger.L.Debug("generate reply", "backend", g.backend.Name(), "text_length", len(reply.Text), "suggestions", len(reply.Suggestions))
	return reply, nil
}

// ParseReply trims raw and splits off a trailing "Suggestions:" section made
// of bullet or numbered lines.
func ParseReply(raw string) Reply {
	text := strings.TrimSpace(raw)
	lines := strings.Split(text, "\n")

	header := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if isSuggestionHeader(lines[i]) {
			header = i
			break
		}
	}
	if header < 0 {
		return Reply{Text: text}
	}

	var items []string
	for _, l := range lines[header+1:] {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		item, ok := bulletItem(l)
		if !ok {
			// prose after the header: not a suggestion block
			return Reply{Text: text}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Reply{Text: text}
	}

	return Reply{
		Text:        strings.TrimSpace(strings.Join(lines[:header], "\n")),
		Suggestions: lo.Uniq(items),
	}
}

func isSuggestionHeader(line string) bool {
	l := strings.ToLower(strings.Trim(strings.TrimSpace(line), "*#_ "))
	return l == "suggestions:" || l == "suggestions" || l == "suggested follow-ups:"
}

func bulletItem(line string) (string, bool) {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):]), true
		}
	}
	// numbered: "1. foo" or "2) foo"
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:]), true
	}
	return "", false
}
