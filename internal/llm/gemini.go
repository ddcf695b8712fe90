package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient completes requests against the Google Gemini API. The
// underlying genai client is created on first use so construction and
// Preflight stay offline.
type GeminiClient struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient returns a GeminiClient; cfg.Deployment names the model.
func NewGeminiClient(cfg Config, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{cfg: cfg, logger: logger}
}

// Preflight implements Completer.
func (c *GeminiClient) Preflight() error {
	return checkCredentials(c.cfg)
}

func (c *GeminiClient) genaiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(c.cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if c.cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return client, nil
}

// Complete implements Completer.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	client, err := c.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Deployment, genai.Text(req.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(req.Temperature),
		MaxOutputTokens:   int32(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("generate content (%s): %w", c.cfg.Deployment, err)
	}

	c.logger.Debug("gemini completion finished",
		zap.String("model", c.cfg.Deployment),
		zap.Duration("elapsed", time.Since(start)),
	)

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
