package ai

import (
	"context"

	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
)

// Provider produces an Analysis of a finished access log summary.
type Provider interface {
	// AnalyzeSummary assesses the summary and reports token usage
	AnalyzeSummary(ctx context.Context, s *accesslog.Summary) (*Analysis, *Stats, error)

	// GetModelInfo returns information about the configured model
	GetModelInfo() map[string]interface{}

	// GetProviderName returns the name of the provider
	GetProviderName() string
}

// ConnectionChecker is implemented by providers that can verify, before any
// analysis, that their server is up and the model is available.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// ProviderType selects the LLM backend.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
	ProviderLMStudio  ProviderType = "lmstudio"
)

// ValidProviderTypes returns a list of valid provider types
func ValidProviderTypes() []ProviderType {
	return []ProviderType{ProviderAnthropic, ProviderOllama, ProviderLMStudio}
}

// IsValidProviderType checks if the given provider type is valid
func IsValidProviderType(pt string) bool {
	for _, valid := range ValidProviderTypes() {
		if string(valid) == pt {
			return true
		}
	}
	return false
}
