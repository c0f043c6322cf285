package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

func TestNewOpenAIGenerator_MissingKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", "")
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Dane, WI improves.  "}
			}]
		}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator("test-key", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewOpenAIGenerator: %v", err)
	}
	if gen.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", gen.Model(), DefaultModel)
	}

	text, err := NewFormatter(gen).Format(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if text != "Dane, WI improves." {
		t.Errorf("text = %q", text)
	}

	if got.Model != DefaultModel {
		t.Errorf("model = %q, want %q", got.Model, DefaultModel)
	}
	if got.Temperature != 0.25 {
		t.Errorf("temperature = %v, want 0.25", got.Temperature)
	}
	if got.MaxTokens != 220 {
		t.Errorf("max_tokens = %v, want 220", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v, want system then user", got.Messages)
	}
	if got.Messages[0].Content != SystemPrompt {
		t.Errorf("system content = %q", got.Messages[0].Content)
	}
}

func TestOpenAIGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator("test-key", "gpt-4o", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewFormatter(gen).Format(context.Background(), testInput())
	if !errors.Is(err, ErrNarrativeService) {
		t.Errorf("error = %v, want ErrNarrativeService", err)
	}
}
