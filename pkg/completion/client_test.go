package completion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	zapLogger, _ := zap.NewDevelopment()
	return NewClient(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, zapadapter.NewZapEctoLogger(zapLogger, nil))
}

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

type summaryResult struct {
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

func summarySchema() *Schema {
	return &Schema{
		Name: "summary_result",
		Properties: map[string]Property{
			"summary": {Type: "string"},
			"score":   {Type: "number"},
		},
		Required: []string{"summary", "score"},
	}
}

func TestCompleteSendsSchemaInstruction(t *testing.T) {
	var captured chatPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Write([]byte(chatReply(`{"summary":"fine","score":0.5}`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.Complete(context.Background(), Request{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "You are a mediator."},
			{Role: "user", Content: "Summarize this."},
		},
		Schema: summarySchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"fine","score":0.5}`, content)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "You are a mediator.", captured.Messages[0].Content)
	assert.True(t, strings.HasPrefix(captured.Messages[1].Content, "Summarize this. Always respond with a JSON object that respects the following JSON schema:"))
	assert.Contains(t, captured.Messages[1].Content, `"additionalProperties":false`)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestCompleteDoesNotMutateCallerMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("{}")))
	}))
	defer server.Close()

	messages := []Message{{Role: "user", Content: "original"}}
	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: messages,
		Schema:   &Schema{Name: "empty"},
	})
	require.NoError(t, err)
	assert.Equal(t, "original", messages[0].Content)
}

func TestCompleteRequiresMessages(t *testing.T) {
	client := newTestClient("http://localhost:1")
	_, err := client.Complete(context.Background(), Request{Model: "test-model"})
	assert.True(t, IsValidationError(err))
}

func TestCompleteNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsAPIError(err))
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.True(t, IsAPIError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.True(t, IsValidationError(err))
}

func TestStructuredParsesValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(`{"summary":"calm discussion","score":0.8}`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := Structured[summaryResult](context.Background(), client, Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Schema:   summarySchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, "calm discussion", result.Summary)
	assert.Equal(t, 0.8, result.Score)
}

func TestStructuredRequiresSchema(t *testing.T) {
	client := newTestClient("http://localhost:1")
	_, err := Structured[summaryResult](context.Background(), client, Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.True(t, IsValidationError(err))
}

func TestStructuredRejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty content", content: "   "},
		{name: "not json", content: "I cannot respond in JSON."},
		{name: "missing required field", content: `{"summary":"fine"}`},
		{name: "wrong field type", content: `{"summary":"fine","score":"high"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(chatReply(tt.content)))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := Structured[summaryResult](context.Background(), client, Request{
				Model:    "test-model",
				Messages: []Message{{Role: "user", Content: "hi"}},
				Schema:   summarySchema(),
			})
			assert.True(t, IsValidationError(err))
		})
	}
}
