package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
	internalerrors "github.com/olegiv/accesslog-ai-go/internal/errors"
)

// messageCreator is the part of the Anthropic SDK the client uses.
type messageCreator interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// Client wraps the Anthropic API client
type Client struct {
	client    messageCreator
	model     string
	maxTokens int
}

// Stats holds statistics about the API call
type Stats struct {
	Provider            string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	DurationSeconds     float64
}

// NewClient creates a new Claude client. An empty proxyURL means no proxy.
func NewClient(apiKey, model, proxyURL string, timeoutSeconds, maxTokens int) (*Client, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}

	if proxyURL != "" {
		proxyURLParsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if proxyURLParsed.Scheme != "http" && proxyURLParsed.Scheme != "https" {
			return nil, fmt.Errorf("proxy URL must use http or https scheme, got: %s", proxyURLParsed.Scheme)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURLParsed),
		}
	}

	return &Client{
		client:    anthropic.NewClient(apiKey, anthropic.WithHTTPClient(httpClient)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Analyze sends the prompts to Claude and parses the structured answer.
func (c *Client) Analyze(ctx context.Context, systemPrompt, userPrompt string) (*Analysis, *Stats, error) {
	startTime := time.Now()

	response, err := retryWithBackoff(ctx, defaultMaxRetries, func() (anthropic.MessagesResponse, error) {
		return c.callAPI(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, nil, err
	}

	if len(response.Content) == 0 {
		return nil, nil, fmt.Errorf("empty response from Claude")
	}

	var responseText strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" && content.Text != nil {
			responseText.WriteString(*content.Text)
		}
	}

	analysis, err := ParseAnalysis(responseText.String())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse analysis: %w", err)
	}

	return analysis, c.calculateStats(response, time.Since(startTime).Seconds()), nil
}

// AnalyzeSummary builds the prompts for an access log summary and analyzes it.
func (c *Client) AnalyzeSummary(ctx context.Context, s *accesslog.Summary) (*Analysis, *Stats, error) {
	return c.Analyze(ctx, GetSystemPrompt(), GetUserPrompt(s))
}

func (c *Client) callAPI(ctx context.Context, systemPrompt, userPrompt string) (anthropic.MessagesResponse, error) {
	request := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(userPrompt),
				},
			},
		},
		System:    systemPrompt,
		MaxTokens: c.maxTokens,
	}

	response, err := c.client.CreateMessages(ctx, request)
	if err != nil {
		// The SDK may echo request headers, including the API key.
		return anthropic.MessagesResponse{}, internalerrors.Wrapf(err, "API call failed")
	}

	return response, nil
}

// calculateStats prices a response at Claude Sonnet rates:
// $3/MTok input, $15/MTok output, $3.75/MTok cache write, $0.30/MTok cache read.
func (c *Client) calculateStats(response anthropic.MessagesResponse, durationSeconds float64) *Stats {
	usage := response.Usage

	inputCost := float64(usage.InputTokens) / 1000000 * 3.0
	outputCost := float64(usage.OutputTokens) / 1000000 * 15.0
	cacheWriteCost := float64(usage.CacheCreationInputTokens) / 1000000 * 3.75
	cacheReadCost := float64(usage.CacheReadInputTokens) / 1000000 * 0.30

	return &Stats{
		Provider:            c.GetProviderName(),
		Model:               c.model,
		InputTokens:         usage.InputTokens,
		OutputTokens:        usage.OutputTokens,
		CacheCreationTokens: usage.CacheCreationInputTokens,
		CacheReadTokens:     usage.CacheReadInputTokens,
		CostUSD:             inputCost + outputCost + cacheWriteCost + cacheReadCost,
		DurationSeconds:     durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      c.GetProviderName(),
		"max_tokens":    c.maxTokens,
		"context_limit": 200000,
	}
}

// GetProviderName returns the name of the provider
func (c *Client) GetProviderName() string {
	return "Anthropic"
}

var _ Provider = (*Client)(nil)
