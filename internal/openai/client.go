// Package openai provides a thin wrapper around the official OpenAI Go SDK
// for the chat-completion and embedding calls the pipeline makes. It supports
// both the Azure OpenAI service (endpoint + deployment) and the public API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrNotConfigured is returned when no endpoint or API key was provided.
	ErrNotConfigured = errors.New("openai: provider not configured")
	// ErrEmptyInput is returned when a call is made with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoChoices is returned when a chat response contains no choices.
	ErrNoChoices = errors.New("openai: no choices in response")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
)

const (
	defaultDimension  = 1536
	defaultChatModel  = "gpt-4o-mini"
	defaultEmbedModel = "text-embedding-3-small"

	chatTemperature = 0.1
	chatMaxTokens   = 500
)

// Config holds the provider settings. Endpoint empty means the public OpenAI
// API; APIKey empty means the provider is not configured at all and every
// call fails with ErrNotConfigured.
type Config struct {
	Endpoint   string // Azure resource endpoint, e.g. https://myres.openai.azure.com
	APIKey     string
	APIVersion string // Azure api-version; ignored for the public API
	ChatModel  string // deployment (Azure) or model name
	EmbedModel string
	Dimensions int
	Timeout    time.Duration
}

// Client calls the chat-completion and embeddings APIs via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	configured bool
	chatModel  string
	embedModel string
	dimensions int
}

// NewClient creates a client from cfg. A client built from an empty key is
// still usable: Configured() reports false and calls fail with
// ErrNotConfigured, which callers treat as "run the fallback".
func NewClient(cfg Config) *Client {
	c := &Client{
		configured: cfg.APIKey != "",
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		dimensions: cfg.Dimensions,
	}

	if c.chatModel == "" {
		c.chatModel = defaultChatModel
	}
	if c.embedModel == "" {
		c.embedModel = defaultEmbedModel
	}
	if c.dimensions == 0 {
		c.dimensions = defaultDimension
	}

	if !c.configured {
		return c
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	c.sdk = openaisdk.NewClient(opts...)

	return c
}

// Configured reports whether endpoint credentials were provided.
func (c *Client) Configured() bool {
	return c.configured
}

// ChatJSON sends one chat completion with a system and a user prompt and
// returns the raw assistant message content. The request uses a low
// temperature and a small completion budget; the prompts are expected to
// instruct the model to answer with JSON only.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}

	if strings.TrimSpace(userPrompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPrompt),
		},
		Model:       openaisdk.ChatModel(c.chatModel),
		Temperature: param.NewOpt(chatTemperature),
		MaxTokens:   param.NewOpt(int64(chatMaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding returns the embedding vector for the given text.
// The returned slice length equals the configured dimensions.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      openaisdk.EmbeddingModel(c.embedModel),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}
