package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/comigor/ecofarmcast-go/internal/config"
)

var testLLMConfig = config.LLMConfig{
	Model:        "gemini-pro",
	SystemPrompt: "be helpful",
	Temperature:  0.7,
	TopK:         40,
	TopP:         0.95,
	MaxTokens:    1024,
	Timeout:      5 * time.Second,
}

type mockBackend struct {
	CompleteFunc func(ctx context.Context, prompt string, opts Options) (string, error)
	gotOpts      Options
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	m.gotOpts = opts
	return m.CompleteFunc(ctx, prompt, opts)
}

func TestGenerate_AppliesDefaults(t *testing.T) {
	b := &mockBackend{CompleteFunc: func(context.Context, string, Options) (string, error) { return "  fine  ", nil }}
	g := New(b, testLLMConfig)

	reply, err := g.Generate(context.Background(), "hello", Options{Temperature: 0.3})
	require.NoError(t, err)
	require.Equal(t, "fine", reply.Text)
	require.Empty(t, reply.Suggestions)

	require.Equal(t, Options{
		Model:           "gemini-pro",
		System:          "be helpful",
		Temperature:     0.3,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}, b.gotOpts)
}

func TestGenerate_BackendError(t *testing.T) {
	sentinel := errors.New("connection refused")
	b := &mockBackend{CompleteFunc: func(context.Context, string, Options) (string, error) { return "", sentinel }}

	_, err := New(b, testLLMConfig).Generate(context.Background(), "hi", Options{})
	require.ErrorIs(t, err, sentinel)
}

func TestGenerate_EmptyReply(t *testing.T) {
	b := &mockBackend{CompleteFunc: func(context.Context, string, Options) (string, error) { return " \n ", nil }}

	_, err := New(b, testLLMConfig).Generate(context.Background(), "hi", Options{})
	require.ErrorIs(t, err, ErrEmptyReply)
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		text        string
		suggestions []string
	}{
		{
			name: "plain text",
			raw:  "Plant cover crops.\n",
			text: "Plant cover crops.",
		},
		{
			name:        "bullet suggestions",
			raw:         "Your soil is loamy.\n\nSuggestions:\n- Check pH\n- Test nitrogen\n- Check pH",
			text:        "Your soil is loamy.",
			suggestions: []string{"Check pH", "Test nitrogen"},
		},
		{
			name:        "markdown header and numbers",
			raw:         "Answer.\n**Suggestions:**\n1. Rotate crops\n2) Reduce tillage",
			text:        "Answer.",
			suggestions: []string{"Rotate crops", "Reduce tillage"},
		},
		{
			name: "prose after header",
			raw:  "Answer.\nSuggestions:\nnone really, you are doing great",
			text: "Answer.\nSuggestions:\nnone really, you are doing great",
		},
		{
			name: "header without items",
			raw:  "Answer.\nSuggestions:",
			text: "Answer.\nSuggestions:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply(tt.raw)
			require.Equal(t, tt.text, got.Text)
			require.Equal(t, tt.suggestions, got.Suggestions)
		})
	}
}

type mockContentGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (m *mockContentGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model, m.contents, m.config = model, contents, cfg
	return m.resp, m.err
}

func TestGeminiBackend_Complete(t *testing.T) {
	m := &mockContentGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hello "},
				{Text: "farmer"},
			}},
		}},
	}}
	b := NewGeminiBackendWith(m)

	out, err := b.Complete(context.Background(), "prompt", Options{
		Model: "gemini-pro", System: "sys", Temperature: 0.5, TopK: 40, TopP: 0.9, MaxOutputTokens: 256,
	})
	require.NoError(t, err)
	require.Equal(t, "Hello farmer", out)

	require.Equal(t, "gemini-pro", m.model)
	require.Len(t, m.contents, 1)
	require.Equal(t, "prompt", m.contents[0].Parts[0].Text)
	require.Equal(t, float32(0.5), *m.config.Temperature)
	require.Equal(t, float32(40), *m.config.TopK)
	require.Equal(t, float32(0.9), *m.config.TopP)
	require.Equal(t, int32(256), m.config.MaxOutputTokens)
	require.Equal(t, "sys", m.config.SystemInstruction.Parts[0].Text)
}

func TestGeminiBackend_NoTopKNoSystem(t *testing.T) {
	m := &mockContentGenerator{resp: &genai.GenerateContentResponse{}}
	out, err := NewGeminiBackendWith(m).Complete(context.Background(), "p", Options{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "", out)
	require.Nil(t, m.config.TopK)
	require.Nil(t, m.config.SystemInstruction)
}

func TestGeminiBackend_HTTP(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Sunny days ahead."}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	cfg := testLLMConfig
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/"
	g, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	reply, err := g.Generate(context.Background(), "What is the forecast?", Options{})
	require.NoError(t, err)
	require.Equal(t, "Sunny days ahead.", reply.Text)
	require.Equal(t, "What is the forecast?", gjson.GetBytes(body, "contents.0.parts.0.text").String())
}

func TestGeminiBackend_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"backend exploded","status":"INTERNAL"}}`))
	}))
	defer server.Close()

	cfg := testLLMConfig
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/"
	g, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "hi", Options{})
	require.Error(t, err)
}

func TestNewGeminiBackend_RequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), config.LLMConfig{})
	require.Error(t, err)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.LLMConfig{Provider: "cohere"})
	require.Error(t, err)
}

type mockChatCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (m *mockChatCompleter) CreateChatCompletion(_ context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.req = r
	return m.resp, m.err
}

func TestOpenAIBackend_Complete(t *testing.T) {
	m := &mockChatCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Use drip irrigation."}}},
	}}
	out, err := NewOpenAIBackendWith(m).Complete(context.Background(), "water?", Options{
		Model: "gpt-4o", System: "sys", Temperature: 0.4, TopK: 40, TopP: 0.9, MaxOutputTokens: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "Use drip irrigation.", out)

	require.Equal(t, "gpt-4o", m.req.Model)
	require.Len(t, m.req.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, m.req.Messages[0].Role)
	require.Equal(t, "water?", m.req.Messages[1].Content)
	require.Equal(t, float32(0.4), m.req.Temperature)
	require.Equal(t, 100, m.req.MaxTokens)
}

func TestOpenAIBackend_NoChoices(t *testing.T) {
	m := &mockChatCompleter{}
	g := New(NewOpenAIBackendWith(m), testLLMConfig)
	_, err := g.Generate(context.Background(), "hi", Options{})
	require.ErrorIs(t, err, ErrEmptyReply)
}

func TestOpenAIBackend_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer dummy", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Rotate crops.\nSuggestions:\n- Cover crops"}}]}`))
	}))
	defer server.Close()

	cfg := testLLMConfig
	cfg.Provider = config.ProviderOpenAI
	cfg.APIKey = "dummy"
	cfg.BaseURL = server.URL + "/v1"
	g, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	reply, err := g.Generate(context.Background(), "hi", Options{})
	require.NoError(t, err)
	require.Equal(t, "Rotate crops.", reply.Text)
	require.Equal(t, []string{"Cover crops"}, reply.Suggestions)
}

func TestOpenAIBackend_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	cfg := testLLMConfig
	cfg.Provider = config.ProviderOpenAI
	cfg.APIKey = "dummy"
	cfg.BaseURL = server.URL + "/v1"
	g, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "hi", Options{})
	require.Error(t, err)
}
