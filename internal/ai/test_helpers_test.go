package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// localAnalysisContent is a model answer as a local LLM would produce it.
const localAnalysisContent = `{
	"trafficStatus": "Elevated",
	"summary": "Mostly normal traffic with a burst of 404s from one client.",
	"threats": [],
	"warnings": ["404 share is 25%"],
	"recommendations": ["Check links to /old-page"],
	"metrics": {"notFoundRate": "25%"}
}`

// newJSONServer serves a fixed status and body on every request and counts calls.
func newJSONServer(t *testing.T, wantPath string, status int, body interface{}) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != wantPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(status)
		if str, ok := body.(string); ok {
			_, _ = w.Write([]byte(str))
			return
		}
		_ = writeJSON(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// verifyOpenAIChatRequest decodes an OpenAI-style chat completion request and
// checks that it carries a system and a user message.
func verifyOpenAIChatRequest(t *testing.T, r *http.Request, w http.ResponseWriter) *openAIChatRequest {
	t.Helper()

	var req openAIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("failed to decode request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	if req.Model == "" {
		t.Error("model is empty")
	}
	if len(req.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(req.Messages))
		return &req
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message should be system, got %s", req.Messages[0].Role)
	}
	if req.Messages[1].Role != "user" {
		t.Errorf("second message should be user, got %s", req.Messages[1].Role)
	}

	return &req
}

// verifyOllamaChatRequest decodes an Ollama chat request and checks that it
// carries a system and a user message.
func verifyOllamaChatRequest(t *testing.T, r *http.Request, w http.ResponseWriter) *ollamaChatRequest {
	t.Helper()

	var req ollamaChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("failed to decode request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	if req.Model == "" {
		t.Error("model is empty")
	}
	if len(req.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(req.Messages))
		return &req
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message should be system, got %s", req.Messages[0].Role)
	}
	if req.Messages[1].Role != "user" {
		t.Errorf("second message should be user, got %s", req.Messages[1].Role)
	}

	return &req
}

// verifyAnalysisResult checks an analysis parsed from localAnalysisContent.
func verifyAnalysisResult(t *testing.T, analysis *Analysis) {
	t.Helper()

	if analysis.TrafficStatus != StatusElevated {
		t.Errorf("TrafficStatus = %v, want %s", analysis.TrafficStatus, StatusElevated)
	}
	if len(analysis.Warnings) != 1 {
		t.Errorf("len(Warnings) = %v, want 1", len(analysis.Warnings))
	}
	if len(analysis.Recommendations) != 1 {
		t.Errorf("len(Recommendations) = %v, want 1", len(analysis.Recommendations))
	}
}

// verifyLocalProviderStats checks stats from local LLM providers, which
// report 1500 input and 250 output tokens in these tests and cost nothing.
func verifyLocalProviderStats(t *testing.T, stats *Stats, provider, model string) {
	t.Helper()

	if stats.InputTokens != 1500 {
		t.Errorf("InputTokens = %v, want 1500", stats.InputTokens)
	}
	if stats.OutputTokens != 250 {
		t.Errorf("OutputTokens = %v, want 250", stats.OutputTokens)
	}
	if stats.CostUSD != 0 {
		t.Errorf("CostUSD = %v, want 0 (local inference)", stats.CostUSD)
	}
	if stats.Provider != provider {
		t.Errorf("Provider = %v, want %s", stats.Provider, provider)
	}
	if stats.Model != model {
		t.Errorf("Model = %v, want %s", stats.Model, model)
	}
}
