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
	defaultLMStudioBaseURL = "http://localhost:1234"

	// lmStudioAnyModel asks LM Studio to use whichever model is loaded
	lmStudioAnyModel = "local-model"
)

// LMStudioClient wraps the LM Studio OpenAI-compatible REST API.
//
// Instruction-tuned models of 8B parameters and up (Llama 3.x, Qwen 2.5,
// Mistral Small, Phi-4) in a Q4_K_M or Q5_K_M GGUF quantization follow the
// JSON answer format reliably.
type LMStudioClient struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// LMStudioConfig holds LM Studio-specific configuration
type LMStudioConfig struct {
	BaseURL        string // e.g., "http://localhost:1234"
	Model          string // "local-model" or a loaded model's identifier
	TimeoutSeconds int
	MaxTokens      int
}

// openAIChatRequest is the request body for /v1/chat/completions
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIChatResponse is the response from /v1/chat/completions
type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// openAIModelsResponse is the response from /v1/models
type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewLMStudioClient creates a new LM Studio client
func NewLMStudioClient(cfg LMStudioConfig) (*LMStudioClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLMStudioBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Model == "" {
		cfg.Model = lmStudioAnyModel
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultLocalTimeoutSeconds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultLocalMaxTokens
	}

	return &LMStudioClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Analyze sends the prompts to LM Studio and parses the structured answer.
func (c *LMStudioClient) Analyze(ctx context.Context, systemPrompt, userPrompt string) (*Analysis, *Stats, error) {
	startTime := time.Now()

	response, err := retryWithBackoff(ctx, defaultMaxRetries, func() (*openAIChatResponse, error) {
		return c.callAPI(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, nil, err
	}

	if len(response.Choices) == 0 {
		return nil, nil, fmt.Errorf("empty response from LM Studio (no choices)")
	}
	responseText := response.Choices[0].Message.Content
	if responseText == "" {
		return nil, nil, fmt.Errorf("empty response from LM Studio")
	}

	analysis, err := ParseAnalysis(responseText)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse analysis: %w", err)
	}

	return analysis, c.calculateStats(response, time.Since(startTime).Seconds()), nil
}

// AnalyzeSummary builds the prompts for an access log summary and analyzes it.
func (c *LMStudioClient) AnalyzeSummary(ctx context.Context, s *accesslog.Summary) (*Analysis, *Stats, error) {
	return c.Analyze(ctx, GetSystemPrompt(), GetUserPrompt(s))
}

// callAPI posts to the chat completions endpoint. LM Studio rejects the
// "json_object" response format, so JSON output is requested by the prompt.
func (c *LMStudioClient) callAPI(ctx context.Context, systemPrompt, userPrompt string) (*openAIChatResponse, error) {
	request := openAIChatRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
		TopP:        0.9,
		Stream:      false,
	}

	return doJSONPost[openAIChatResponse](ctx, c.httpClient, c.baseURL+"/v1/chat/completions", request)
}

func (c *LMStudioClient) calculateStats(response *openAIChatResponse, durationSeconds float64) *Stats {
	return &Stats{
		Provider:        c.GetProviderName(),
		Model:           c.model,
		InputTokens:     response.Usage.PromptTokens,
		OutputTokens:    response.Usage.CompletionTokens,
		DurationSeconds: durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *LMStudioClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      c.GetProviderName(),
		"max_tokens":    c.maxTokens,
		"base_url":      c.baseURL,
		"context_limit": 128000, // varies by model
	}
}

// GetProviderName returns the name of the provider
func (c *LMStudioClient) GetProviderName() string {
	return "LMStudio"
}

// CheckConnection verifies that LM Studio is running with a model loaded,
// and that the configured model is among them unless it is "local-model".
func (c *LMStudioClient) CheckConnection(ctx context.Context) error {
	models, err := doJSONGet[openAIModelsResponse](ctx, c.httpClient, c.baseURL+"/v1/models")
	if err != nil {
		return fmt.Errorf("LM Studio is not reachable at %s: %w", c.baseURL, err)
	}

	if len(models.Data) == 0 {
		return fmt.Errorf("no models loaded in LM Studio. Please load a model in LM Studio first")
	}
	if c.model == lmStudioAnyModel {
		return nil
	}

	available := make([]string, len(models.Data))
	for i, m := range models.Data {
		if m.ID == c.model || strings.Contains(m.ID, c.model) {
			return nil
		}
		available[i] = m.ID
	}

	return fmt.Errorf("model '%s' not found in LM Studio. Available models: %v. You can use '%s' to use the currently loaded model",
		c.model, available, lmStudioAnyModel)
}

var (
	_ Provider          = (*LMStudioClient)(nil)
	_ ConnectionChecker = (*LMStudioClient)(nil)
)
