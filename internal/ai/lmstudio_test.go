package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNewLMStudioClient(t *testing.T) {
	tests := []struct {
		name        string
		cfg         LMStudioConfig
		wantBaseURL string
		wantModel   string
	}{
		{
			name: "valid config",
			cfg: LMStudioConfig{
				BaseURL:        "http://localhost:1234",
				Model:          "qwen2.5-32b-instruct",
				TimeoutSeconds: 120,
				MaxTokens:      8000,
			},
			wantBaseURL: "http://localhost:1234",
			wantModel:   "qwen2.5-32b-instruct",
		},
		{
			name:        "empty model uses default",
			cfg:         LMStudioConfig{BaseURL: "http://localhost:1234"},
			wantBaseURL: "http://localhost:1234",
			wantModel:   lmStudioAnyModel,
		},
		{
			name:        "default base URL",
			cfg:         LMStudioConfig{Model: "phi-4"},
			wantBaseURL: defaultLMStudioBaseURL,
			wantModel:   "phi-4",
		},
		{
			name:        "trailing slash in base URL",
			cfg:         LMStudioConfig{BaseURL: "http://localhost:1234/"},
			wantBaseURL: "http://localhost:1234",
			wantModel:   lmStudioAnyModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLMStudioClient(tt.cfg)
			if err != nil {
				t.Fatalf("NewLMStudioClient() error = %v", err)
			}
			if client.baseURL != tt.wantBaseURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.wantBaseURL)
			}
			if client.model != tt.wantModel {
				t.Errorf("model = %q, want %q", client.model, tt.wantModel)
			}
		})
	}
}

func TestLMStudioClient_GetModelInfo(t *testing.T) {
	client, err := NewLMStudioClient(LMStudioConfig{
		BaseURL:   "http://localhost:1234",
		Model:     "phi-4",
		MaxTokens: 6000,
	})
	if err != nil {
		t.Fatalf("NewLMStudioClient() error = %v", err)
	}

	info := client.GetModelInfo()

	if info["model"] != "phi-4" {
		t.Errorf("GetModelInfo() model = %v, want phi-4", info["model"])
	}
	if info["provider"] != "LMStudio" {
		t.Errorf("GetModelInfo() provider = %v, want LMStudio", info["provider"])
	}
	if info["max_tokens"] != 6000 {
		t.Errorf("GetModelInfo() max_tokens = %v, want 6000", info["max_tokens"])
	}
}

func TestLMStudioClient_GetProviderName(t *testing.T) {
	client, err := NewLMStudioClient(LMStudioConfig{})
	if err != nil {
		t.Fatalf("NewLMStudioClient() error = %v", err)
	}

	if got := client.GetProviderName(); got != "LMStudio" {
		t.Errorf("GetProviderName() = %v, want LMStudio", got)
	}
}

func TestLMStudioClient_CheckConnection(t *testing.T) {
	loaded := map[string]interface{}{
		"data": []map[string]interface{}{
			{"id": "qwen2.5-32b-instruct"},
			{"id": "phi-4"},
		},
	}

	tests := []struct {
		name       string
		model      string
		response   interface{}
		statusCode int
		wantErr    string
	}{
		{"model loaded with local-model", lmStudioAnyModel, loaded, http.StatusOK, ""},
		{"specific model found", "phi-4", loaded, http.StatusOK, ""},
		{"partial model id", "qwen2.5", loaded, http.StatusOK, ""},
		{"specific model not found", "llama-3.3-70b", loaded, http.StatusOK, "not found in LM Studio"},
		{"no models loaded", lmStudioAnyModel, map[string]interface{}{"data": []interface{}{}}, http.StatusOK, "no models loaded"},
		{"server error", lmStudioAnyModel, "Internal Server Error", http.StatusInternalServerError, "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newJSONServer(t, "/v1/models", tt.statusCode, tt.response)

			client, err := NewLMStudioClient(LMStudioConfig{BaseURL: server.URL, Model: tt.model})
			if err != nil {
				t.Fatalf("NewLMStudioClient() error = %v", err)
			}

			err = client.CheckConnection(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckConnection() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckConnection() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLMStudioClient_AnalyzeSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		req := verifyOpenAIChatRequest(t, r, w)
		if req == nil {
			return
		}
		if req.MaxTokens != 5000 {
			t.Errorf("MaxTokens = %d, want 5000", req.MaxTokens)
		}
		if req.Stream {
			t.Error("Stream should be false")
		}

		response := openAIChatResponse{ID: "chatcmpl-1", Model: req.Model}
		response.Choices = append(response.Choices, struct {
			Index        int           `json:"index"`
			Message      openAIMessage `json:"message"`
			FinishReason string        `json:"finish_reason"`
		}{Message: openAIMessage{Role: "assistant", Content: localAnalysisContent}, FinishReason: "stop"})
		response.Usage.PromptTokens = 1500
		response.Usage.CompletionTokens = 250

		w.WriteHeader(http.StatusOK)
		_ = writeJSON(w, response)
	}))
	defer server.Close()

	client, err := NewLMStudioClient(LMStudioConfig{BaseURL: server.URL, MaxTokens: 5000})
	if err != nil {
		t.Fatalf("NewLMStudioClient() error = %v", err)
	}

	s := summaryOf(t, `192.0.2.4 - - [1/Jan/2024:00:00:00 +0000] "GET /old-page HTTP/1.1" 404 0 "-" "curl/8.0"`)
	analysis, stats, err := client.AnalyzeSummary(context.Background(), s)
	if err != nil {
		t.Fatalf("AnalyzeSummary() error = %v", err)
	}

	verifyAnalysisResult(t, analysis)
	verifyLocalProviderStats(t, stats, "LMStudio", lmStudioAnyModel)
}

func TestLMStudioClient_Analyze_Error(t *testing.T) {
	noSleep(t)

	tests := []struct {
		name       string
		statusCode int
		response   string
		wantCalls  int32
	}{
		{"server error", http.StatusInternalServerError, "Internal Server Error", defaultMaxRetries},
		{"bad request", http.StatusBadRequest, `{"error": "model not loaded"}`, 1},
		{"empty choices", http.StatusOK, `{"choices": []}`, 1},
		{"empty content", http.StatusOK, `{"choices": [{"message": {"role": "assistant", "content": ""}}]}`, 1},
		{"invalid JSON in content", http.StatusOK, `{"choices": [{"message": {"role": "assistant", "content": "not valid json"}}]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := newJSONServer(t, "/v1/chat/completions", tt.statusCode, tt.response)

			client, err := NewLMStudioClient(LMStudioConfig{BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewLMStudioClient() error = %v", err)
			}

			if _, _, err := client.Analyze(context.Background(), "System prompt", "User prompt"); err == nil {
				t.Error("Analyze() expected error, got nil")
			}
			if got := atomic.LoadInt32(calls); got != tt.wantCalls {
				t.Errorf("server called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestLMStudioClient_ImplementsProvider(t *testing.T) {
	var _ Provider = (*LMStudioClient)(nil)
	var _ ConnectionChecker = (*LMStudioClient)(nil)
}
