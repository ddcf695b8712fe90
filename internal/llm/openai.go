package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// azureV1Path is appended to an Azure AI Foundry resource endpoint to reach
// its OpenAI-compatible v1 surface.
const azureV1Path = "/openai/v1"

// OpenAIClient completes requests against Azure AI Foundry or any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	cfg    Config
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIClient builds an OpenAIClient. For ProviderAzureOpenAI the base URL
// is <endpoint>/openai/v1; for ProviderOpenAI an empty endpoint selects the
// public OpenAI API.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	return newOpenAIClient(cfg, http.DefaultClient, logger)
}

func newOpenAIClient(cfg Config, hc *http.Client, logger *zap.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	oc.HTTPClient = hc
	if base := baseURL(cfg); base != "" {
		oc.BaseURL = base
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
		logger: logger,
	}
}

func baseURL(cfg Config) string {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return ""
	}
	if cfg.Provider == ProviderOpenAI || strings.HasSuffix(endpoint, azureV1Path) {
		return endpoint
	}
	return endpoint + azureV1Path
}

// Preflight implements Completer.
func (c *OpenAIClient) Preflight() error {
	return checkCredentials(c.cfg)
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", c.cfg.Deployment, err)
	}

	c.logger.Debug("chat completion finished",
		zap.String("deployment", c.cfg.Deployment),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
