package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"FeedSummarizer/internal/config"
	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const jsonInstruction = `Respond with a single JSON object of the form {"title": "...", "summary": "..."}. ` +
	`"summary" holds the post body. Do not add any other keys or text outside the JSON object.`

const titleQuotes = "\"'`“”‘’«»„"

var (
	_ ports.Summarizer  = (*Client)(nil)
	_ ports.KeyVerifier = (*Client)(nil)
)

// Client summarizes article text through an OpenAI-compatible chat completion API.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	maxChars    int
	httpClient  *http.Client
}

// NewClient builds a client from configuration; maxChars bounds the text sent per request.
func NewClient(cfg config.LLMConfig, maxChars int) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxChars:    maxChars,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) api(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	cfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(cfg)
}

// Summarize issues one JSON-constrained completion and returns the parsed title and body.
func (c *Client) Summarize(ctx context.Context, text, contextPrompt, titlePrompt, apiKey string) (domain.SummaryResult, error) {
	if strings.TrimSpace(apiKey) == "" {
		return domain.SummaryResult{}, errors.New("api key is empty")
	}

	resp, err := c.api(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(contextPrompt, titlePrompt)},
			{Role: openai.ChatMessageRoleUser, Content: truncate(text, c.maxChars)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.SummaryResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.SummaryResult{}, errors.New("chat completion returned no choices")
	}

	return parseResult(resp.Choices[0].Message.Content)
}

// VerifyKey lists models with the key; any error means the key is not usable.
func (c *Client) VerifyKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("api key is empty")
	}
	if _, err := c.api(apiKey).ListModels(ctx); err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("api key rejected: %s", apiErr.Message)
		}
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func systemPrompt(contextPrompt, titlePrompt string) string {
	parts := make([]string, 0, 3)
	if p := strings.TrimSpace(contextPrompt); p != "" {
		parts = append(parts, p)
	}
	if p := strings.TrimSpace(titlePrompt); p != "" {
		parts = append(parts, "Title instructions: "+p)
	}
	parts = append(parts, jsonInstruction)
	return strings.Join(parts, "\n\n")
}

func parseResult(content string) (domain.SummaryResult, error) {
	var payload struct {
		Title   *string `json:"title"`
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return domain.SummaryResult{}, fmt.Errorf("decode completion json: %w", err)
	}
	if payload.Title == nil || payload.Summary == nil {
		return domain.SummaryResult{}, errors.New("completion json missing title or summary")
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(*payload.Title), titleQuotes))
	body := strings.TrimSpace(*payload.Summary)
	if title == "" || body == "" {
		return domain.SummaryResult{}, errors.New("completion returned empty title or summary")
	}
	return domain.SummaryResult{Title: title, Body: body}, nil
}

// truncate cuts s to at most max code points; max <= 0 disables the limit.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
