// Package provider implements the outbound chat-completions client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"contentforge/internal/domain"
)

// BuildHTTPClient creates an HTTP client with the specified connection settings
func BuildHTTPClient(settings domain.ConnectionSettings) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        settings.MaxIdleConnections,
		MaxIdleConnsPerHost: settings.MaxIdleConnections,
		MaxConnsPerHost:     settings.MaxConnections,
		IdleConnTimeout:     time.Duration(settings.IdleTimeoutSec) * time.Second,
		DisableKeepAlives:   !settings.EnableKeepAlive,
		ForceAttemptHTTP2:   settings.EnableHTTP2,
	}

	return &http.Client{
		Timeout:   time.Duration(settings.RequestTimeoutSec) * time.Second,
		Transport: transport,
	}
}

// APIError is a non-2xx provider response
type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // -1 when the server sent no usable hint
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.Status, e.Body)
}

// Client calls a chat-completions-style HTTP API that accepts an ordered
// model fallback list, so a rejected or failing primary is retried by the
// provider itself without another round trip from this layer.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client
func NewClient(apiKey, baseURL string, settings ...domain.ConnectionSettings) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	connSettings := domain.DefaultConnectionSettings()
	if len(settings) > 0 {
		connSettings = settings[0]
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: BuildHTTPClient(connSettings),
	}, nil
}

// ChatComplete performs a non-streaming chat completion
func (c *Client) ChatComplete(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	url := c.baseURL + "/chat/completions"

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			Status:     resp.StatusCode,
			Body:       string(bodyBytes),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return c.normalize(&result)
}

// buildRequest maps the domain call onto the wire shape
func (c *Client) buildRequest(req *domain.ChatRequest) map[string]any {
	messages := []map[string]any{}
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	wire := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   false,
	}

	// Provider-side fallback: the ordered model list includes the primary
	// at index 0 so the provider walks the chain on rejection or error.
	if len(req.FallbackModels) > 0 {
		models := append([]string{req.Model}, req.FallbackModels...)
		wire["models"] = models
	}

	if req.MaxTokens > 0 {
		wire["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		wire["temperature"] = req.Temperature
	}

	if req.BudgetRouted {
		wire["provider"] = map[string]any{"sort": "price"}
	} else {
		wire["provider"] = map[string]any{"require_parameters": true}
	}

	if len(req.ResponseSchema) > 0 {
		wire["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "response",
				"strict": true,
				"schema": json.RawMessage(req.ResponseSchema),
			},
		}
	}

	return wire
}

// chatCompletionResponse is the wire response shape
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// normalize converts the wire response into the domain shape
func (c *Client) normalize(result *chatCompletionResponse) (*domain.ChatResponse, error) {
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("response contains no choices")
	}

	choice := result.Choices[0]
	text, images, err := extractContent(choice.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	finish := domain.FinishReasonStop
	switch choice.FinishReason {
	case "length", "max_tokens":
		finish = domain.FinishReasonLength
	case "error", "content_filter":
		finish = domain.FinishReasonError
	}

	return &domain.ChatResponse{
		Text:         text,
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		FinishReason: finish,
		Images:       images,
	}, nil
}

// parseRetryAfter parses a Retry-After header as delay seconds.
// Returns -1 when missing or unusable.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return -1
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d >= 0 {
			return d
		}
	}
	return -1
}
