// Package completion is a client for an OpenAI-compatible chat completion
// API that can constrain responses to a caller-supplied JSON schema.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harmonia-app/harmonia/pkg/metrics"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []Message
	Schema      *Schema
	Temperature *float64
	MaxTokens   *int
}

// Config holds the completion service connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the chat completion endpoint. It performs no retries; retry
// policy is the caller's responsibility.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     ectologger.Logger
}

func NewClient(config Config, logger ectologger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		logger:     logger,
	}
}

type chatPayload struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the request and returns the raw text content of the model's
// reply. When a schema is supplied, the schema is serialized and appended to
// the last message as an instruction and the service is asked to emit a JSON
// object; content validation against the schema is the caller's concern (see
// Structured).
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "completion.Complete")
	defer span.End()

	if len(req.Messages) == 0 {
		return "", &ValidationError{Err: errors.New("at least one message is required")}
	}

	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)

	payload := chatPayload{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return "", &ValidationError{Err: fmt.Errorf("failed to serialize response schema: %w", err)}
		}

		last := &payload.Messages[len(payload.Messages)-1]
		last.Content = fmt.Sprintf("%s Always respond with a JSON object that respects the following JSON schema: %s", last.Content, schemaJSON)
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordCompletionRequest(req.Model, "network_error", time.Since(start).Seconds())
		c.logger.WithContext(ctx).WithError(err).Error("completion request could not be sent")
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordCompletionRequest(req.Model, "network_error", time.Since(start).Seconds())
		return "", &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordCompletionRequest(req.Model, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status_code": resp.StatusCode,
			"model":       req.Model,
		}).Error("completion service returned an error")
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	metrics.RecordCompletionRequest(req.Model, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ValidationError{Err: fmt.Errorf("failed to parse completion response: %w", err)}
	}

	if len(parsed.Choices) == 0 {
		return "", &ValidationError{Err: errors.New("completion response has no choices")}
	}

	return parsed.Choices[0].Message.Content, nil
}

// Structured performs a schema-constrained completion and returns the
// parsed, schema-validated result.
func Structured[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T

	if req.Schema == nil {
		return out, &ValidationError{Err: errors.New("a response schema is required")}
	}

	content, err := c.Complete(ctx, req)
	if err != nil {
		return out, err
	}

	if strings.TrimSpace(content) == "" {
		return out, &ValidationError{Err: errors.New("response content is empty or missing")}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return out, &ValidationError{Err: fmt.Errorf("failed to parse response content as JSON: %w", err)}
	}

	if err := req.Schema.Validate(raw); err != nil {
		return out, &ValidationError{Err: err}
	}

	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, &ValidationError{Err: fmt.Errorf("response content does not match the expected shape: %w", err)}
	}

	return out, nil
}
