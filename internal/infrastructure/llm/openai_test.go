package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FeedSummarizer/internal/config"
)

type capturedRequest struct {
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, content string, seen *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string, maxChars int) *Client {
	return NewClient(config.LLMConfig{BaseURL: url + "/v1", Model: "gpt-4o-mini", MaxTokens: 500, Temperature: 0.7}, maxChars)
}

func TestSummarizeSuccess(t *testing.T) {
	t.Parallel()

	var seen capturedRequest
	server := completionServer(t, http.StatusOK, `{"title": "“Daily Digest”", "summary": "Body text."}`, &seen)
	defer server.Close()

	client := newTestClient(server.URL, 5)
	res, err := client.Summarize(context.Background(), "abcdefghij", "Be brief.", "Catchy title.", "sk-test")
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if res.Title != "Daily Digest" {
		t.Fatalf("quotes not stripped: %q", res.Title)
	}
	if res.Body != "Body text." {
		t.Fatalf("unexpected body: %q", res.Body)
	}

	if seen.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %q", seen.ResponseFormat.Type)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", seen.Messages)
	}
	system := seen.Messages[0].Content
	if !strings.Contains(system, "Be brief.") || !strings.Contains(system, "Catchy title.") {
		t.Fatalf("system message misses prompts: %q", system)
	}
	if seen.Messages[1].Content != "abcde" {
		t.Fatalf("text not truncated: %q", seen.Messages[1].Content)
	}
}

func TestSummarizeFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status  int
		content string
	}{
		"server error":    {status: http.StatusInternalServerError},
		"not json":        {status: http.StatusOK, content: "Here is your summary"},
		"missing title":   {status: http.StatusOK, content: `{"summary":"x"}`},
		"missing summary": {status: http.StatusOK, content: `{"title":"x"}`},
		"empty title":     {status: http.StatusOK, content: `{"title":"\"\"","summary":"x"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := completionServer(t, tc.status, tc.content, nil)
			defer server.Close()

			res, err := newTestClient(server.URL, 0).Summarize(context.Background(), "text", "", "", "sk-test")
			if err == nil {
				t.Fatalf("expected failure, got %+v", res)
			}
			if res.Title != "" || res.Body != "" {
				t.Fatalf("failure must not carry a partial result: %+v", res)
			}
		})
	}
}

func TestSummarizeRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(config.LLMConfig{}, 0).Summarize(context.Background(), "t", "", "", " "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestVerifyKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	if err := client.VerifyKey(context.Background(), "sk-good"); err != nil {
		t.Fatalf("VerifyKey good key: %v", err)
	}
	if err := client.VerifyKey(context.Background(), "sk-bad"); err == nil {
		t.Fatalf("expected bad key to be rejected")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	if got := truncate("héllo wörld", 7); got != "héllo w" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
