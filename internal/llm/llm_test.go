package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/llm"
)

type chatStub struct {
	path    string
	auth    string
	request map[string]any
}

// newChatServer returns a server that answers every chat completion with content.
func newChatServer(t *testing.T, content string, status int) (*httptest.Server, *chatStub) {
	t.Helper()
	stub := &chatStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.path = r.URL.Path
		stub.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&stub.request)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"deployment not found","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1714000000,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, stub
}

func TestOpenAIClient_azureEndpoint(t *testing.T) {
	srv, stub := newChatServer(t, `{"vendor_name":"Acme"}`, http.StatusOK)

	c, err := llm.New(llm.Config{
		Provider: llm.ProviderAzureOpenAI,
		APIKey:   "real-key",
		Endpoint: srv.URL + "/",
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Preflight(); err != nil {
		t.Fatalf("Preflight: %v", err)
	}

	got, err := c.Complete(context.Background(), llm.Request{
		System: "sys", User: "usr", Temperature: 0.2, MaxTokens: 4096,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"vendor_name":"Acme"}` {
		t.Errorf("content = %q", got)
	}
	if stub.path != "/openai/v1/chat/completions" {
		t.Errorf("path = %q, want /openai/v1/chat/completions", stub.path)
	}
	if stub.auth != "Bearer real-key" {
		t.Errorf("Authorization = %q", stub.auth)
	}
	if stub.request["model"] != llm.DefaultDeployment {
		t.Errorf("model = %v, want %s", stub.request["model"], llm.DefaultDeployment)
	}
	msgs, _ := stub.request["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v, want system+user", stub.request["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "sys" {
		t.Errorf("first message = %v", first)
	}
	if stub.request["max_tokens"] != float64(4096) {
		t.Errorf("max_tokens = %v", stub.request["max_tokens"])
	}
}

func TestOpenAIClient_plainEndpoint(t *testing.T) {
	srv, stub := newChatServer(t, "ok", http.StatusOK)

	c, _ := llm.New(llm.Config{
		Provider:   llm.ProviderOpenAI,
		APIKey:     "sk-live",
		Endpoint:   srv.URL + "/v1",
		Deployment: "gpt-4o-mini",
	}, zap.NewNop())
	if _, err := c.Complete(context.Background(), llm.Request{User: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if stub.path != "/v1/chat/completions" {
		t.Errorf("path = %q", stub.path)
	}
	if stub.request["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", stub.request["model"])
	}
}

func TestOpenAIClient_httpErrorIsReturned(t *testing.T) {
	srv, _ := newChatServer(t, "", http.StatusNotFound)
	c, _ := llm.New(llm.Config{Provider: llm.ProviderAzureOpenAI, APIKey: "k", Endpoint: srv.URL}, zap.NewNop())

	if _, err := c.Complete(context.Background(), llm.Request{User: "hi"}); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestOpenAIClient_emptyCompletion(t *testing.T) {
	srv, _ := newChatServer(t, "   ", http.StatusOK)
	c, _ := llm.New(llm.Config{Provider: llm.ProviderAzureOpenAI, APIKey: "k", Endpoint: srv.URL}, zap.NewNop())

	if _, err := c.Complete(context.Background(), llm.Request{User: "hi"}); !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestOpenAIClient_timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, _ := llm.New(llm.Config{
		Provider: llm.ProviderAzureOpenAI,
		APIKey:   "k",
		Endpoint: srv.URL,
		Timeout:  50 * time.Millisecond,
	}, zap.NewNop())

	_, err := c.Complete(context.Background(), llm.Request{User: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type geminiStub struct {
	path    string
	apiKey  string
	request map[string]any
}

// newGeminiServer answers every generateContent call with a single candidate.
func newGeminiServer(t *testing.T, text string) (*httptest.Server, *geminiStub) {
	t.Helper()
	stub := &geminiStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.path = r.URL.Path
		stub.apiKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&stub.request)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, stub
}

func TestGeminiClient_complete(t *testing.T) {
	srv, stub := newGeminiServer(t, `{"vendor_name":"Acme"}`)

	c, err := llm.New(llm.Config{
		Provider:   llm.ProviderGemini,
		APIKey:     "AIza-live",
		Endpoint:   srv.URL + "/",
		Deployment: "gemini-2.0-flash",
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Preflight(); err != nil {
		t.Fatalf("Preflight: %v", err)
	}

	got, err := c.Complete(context.Background(), llm.Request{
		System: "sys", User: "usr", Temperature: 0.2, MaxTokens: 4096,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"vendor_name":"Acme"}` {
		t.Errorf("content = %q", got)
	}
	if !strings.HasSuffix(stub.path, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("path = %q", stub.path)
	}
	if stub.apiKey != "AIza-live" {
		t.Errorf("x-goog-api-key = %q", stub.apiKey)
	}

	sys, _ := stub.request["systemInstruction"].(map[string]any)
	parts, _ := sys["parts"].([]any)
	if len(parts) != 1 || parts[0].(map[string]any)["text"] != "sys" {
		t.Errorf("systemInstruction = %v", stub.request["systemInstruction"])
	}
	gen, _ := stub.request["generationConfig"].(map[string]any)
	if gen["temperature"] != 0.2 || gen["maxOutputTokens"] != float64(4096) {
		t.Errorf("generationConfig = %v", gen)
	}
	contents, _ := stub.request["contents"].([]any)
	if len(contents) != 1 {
		t.Errorf("contents = %v, want the user prompt only", stub.request["contents"])
	}
}

func TestGeminiClient_emptyCompletion(t *testing.T) {
	srv, _ := newGeminiServer(t, "  ")
	c, _ := llm.New(llm.Config{
		Provider:   llm.ProviderGemini,
		APIKey:     "AIza-live",
		Endpoint:   srv.URL + "/",
		Deployment: "gemini-2.0-flash",
	}, zap.NewNop())

	if _, err := c.Complete(context.Background(), llm.Request{User: "hi"}); !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestPreflight(t *testing.T) {
	cases := []struct {
		name    string
		cfg     llm.Config
		wantErr bool
	}{
		{"valid azure", llm.Config{Provider: llm.ProviderAzureOpenAI, APIKey: "abc123", Endpoint: "https://acme.openai.azure.com"}, false},
		{"valid openai without endpoint", llm.Config{Provider: llm.ProviderOpenAI, APIKey: "sk-abc"}, false},
		{"valid gemini", llm.Config{Provider: llm.ProviderGemini, APIKey: "AIza-abc"}, false},
		{"empty key", llm.Config{Provider: llm.ProviderAzureOpenAI, Endpoint: "https://acme.openai.azure.com"}, true},
		{"blank key", llm.Config{Provider: llm.ProviderOpenAI, APIKey: "   "}, true},
		{"placeholder key", llm.Config{Provider: llm.ProviderOpenAI, APIKey: "your-api-key-here"}, true},
		{"angle bracket key", llm.Config{Provider: llm.ProviderGemini, APIKey: "<GEMINI_KEY>"}, true},
		{"changeme key", llm.Config{Provider: llm.ProviderOpenAI, APIKey: "CHANGEME"}, true},
		{"azure without endpoint", llm.Config{Provider: llm.ProviderAzureOpenAI, APIKey: "abc"}, true},
		{"placeholder endpoint", llm.Config{Provider: llm.ProviderAzureOpenAI, APIKey: "abc", Endpoint: "https://your-resource.openai.azure.com"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := llm.New(tc.cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			err = c.Preflight()
			if tc.wantErr && !errors.Is(err, llm.ErrNotConfigured) {
				t.Errorf("expected ErrNotConfigured, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNew_unknownProvider(t *testing.T) {
	if _, err := llm.New(llm.Config{Provider: "bard"}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown provider")
	}
}
