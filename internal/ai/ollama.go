package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"

	// defaultLocalTimeoutSeconds leaves room for large models on modest hardware
	defaultLocalTimeoutSeconds = 300
	defaultLocalMaxTokens      = 8000
)

// OllamaClient wraps the Ollama REST API
type OllamaClient struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	BaseURL        string // e.g., "http://localhost:11434"
	Model          string // e.g., "llama3.3:latest"
	TimeoutSeconds int
	MaxTokens      int
}

// ollamaOptions contains model parameters
type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// ollamaChatRequest is the request body for Ollama's /api/chat endpoint
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the response from Ollama's /api/chat endpoint
type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       time.Time     `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultLocalTimeoutSeconds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultLocalMaxTokens
	}

	return &OllamaClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Analyze sends the prompts to Ollama and parses the structured answer.
func (c *OllamaClient) Analyze(ctx context.Context, systemPrompt, userPrompt string) (*Analysis, *Stats, error) {
	startTime := time.Now()

	response, err := retryWithBackoff(ctx, defaultMaxRetries, func() (*ollamaChatResponse, error) {
		return c.callAPI(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, nil, err
	}

	if response.Message.Content == "" {
		return nil, nil, fmt.Errorf("empty response from Ollama")
	}

	analysis, err := ParseAnalysis(response.Message.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse analysis: %w", err)
	}

	return analysis, c.calculateStats(response, time.Since(startTime).Seconds()), nil
}

// AnalyzeSummary builds the prompts for an access log summary and analyzes it.
func (c *OllamaClient) AnalyzeSummary(ctx context.Context, s *accesslog.Summary) (*Analysis, *Stats, error) {
	return c.Analyze(ctx, GetSystemPrompt(), GetUserPrompt(s))
}

func (c *OllamaClient) callAPI(ctx context.Context, systemPrompt, userPrompt string) (*ollamaChatResponse, error) {
	request := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  c.maxTokens,
			Temperature: 0.1,
			TopP:        0.9,
		},
		Format: "json",
	}

	response, err := doJSONPost[ollamaChatResponse](ctx, c.httpClient, c.baseURL+"/api/chat", request)
	if err != nil {
		return nil, err
	}
	if !response.Done {
		return nil, fmt.Errorf("incomplete response from Ollama")
	}
	return response, nil
}

// calculateStats reports token counts; local inference costs nothing.
func (c *OllamaClient) calculateStats(response *ollamaChatResponse, durationSeconds float64) *Stats {
	return &Stats{
		Provider:        c.GetProviderName(),
		Model:           c.model,
		InputTokens:     response.PromptEvalCount,
		OutputTokens:    response.EvalCount,
		DurationSeconds: durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *OllamaClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      c.GetProviderName(),
		"max_tokens":    c.maxTokens,
		"base_url":      c.baseURL,
		"context_limit": 128000, // varies by model
	}
}

// GetProviderName returns the name of the provider
func (c *OllamaClient) GetProviderName() string {
	return "Ollama"
}

// CheckConnection verifies that Ollama is running and the model is pulled.
// "llama3.3" matches an installed "llama3.3:latest".
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	tags, err := doJSONGet[ollamaTagsResponse](ctx, c.httpClient, c.baseURL+"/api/tags")
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", c.baseURL, err)
	}

	base := strings.Split(c.model, ":")[0]
	available := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name == c.model || strings.Split(m.Name, ":")[0] == base {
			return nil
		}
		available = append(available, m.Name)
	}

	return fmt.Errorf("model '%s' not found in Ollama. Available models: %v. Run 'ollama pull %s' to download it",
		c.model, available, c.model)
}

var (
	_ Provider          = (*OllamaClient)(nil)
	_ ConnectionChecker = (*OllamaClient)(nil)
)
