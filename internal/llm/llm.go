// Package llm provides chat-completion clients for the hosted models that
// produce vendor risk reports: Azure AI Foundry and OpenAI-compatible
// endpoints via go-openai, and Google Gemini via genai.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultDeployment  = "gpt-4o"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096
)

// Provider selects the completion backend.
type Provider string

const (
	ProviderAzureOpenAI Provider = "azure-openai"
	ProviderOpenAI      Provider = "openai"
	ProviderGemini      Provider = "gemini"
)

var (
	// ErrNotConfigured is returned by Preflight when credentials are missing
	// or still hold template placeholders.
	ErrNotConfigured = errors.New("model credentials not configured")

	// ErrEmptyCompletion is returned when the model answers with no content.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
)

// Request is a single system+user completion request.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer sends one completion request to a hosted model.
type Completer interface {
	// Complete returns the raw text of the model's reply.
	Complete(ctx context.Context, req Request) (string, error)
	// Preflight checks credentials without any network traffic.
	Preflight() error
}

// Config holds the connection settings for a Completer.
type Config struct {
	Provider   Provider
	APIKey     string
	Endpoint   string
	Deployment string
	// Timeout bounds a single Complete call. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// New returns the Completer for cfg.Provider. Construction never touches the
// network and never fails on bad credentials; those surface from Preflight.
func New(cfg Config, logger *zap.Logger) (Completer, error) {
	switch cfg.Provider {
	case ProviderAzureOpenAI, ProviderOpenAI, "":
		if cfg.Deployment == "" {
			cfg.Deployment = DefaultDeployment
		}
		return NewOpenAIClient(cfg, logger), nil
	case ProviderGemini:
		if cfg.Deployment == "" {
			cfg.Deployment = DefaultGeminiModel
		}
		return NewGeminiClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// ── Preflight ─────────────────────────────────────────────────────────────────

var placeholderRe = regexp.MustCompile(`^<.*>$`)

// placeholderTokens are fragments of the sample values shipped in example
// configuration files.
var placeholderTokens = []string{"your-resource", "your-api-key", "your_api_key", "changeme"}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || placeholderRe.MatchString(v) {
		return true
	}
	lower := strings.ToLower(v)
	for _, tok := range placeholderTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// checkCredentials validates the settings needed by the provider.
func checkCredentials(cfg Config) error {
	if isPlaceholder(cfg.APIKey) {
		return fmt.Errorf("%w: api key is empty or a placeholder", ErrNotConfigured)
	}
	if cfg.Provider == ProviderAzureOpenAI || cfg.Provider == "" {
		if isPlaceholder(cfg.Endpoint) {
			return fmt.Errorf("%w: endpoint is empty or a placeholder", ErrNotConfigured)
		}
	}
	return nil
}

// withTimeout applies d to ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
