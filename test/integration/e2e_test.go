//go:build integration

// Package integration contains end-to-end tests for the Harmonia API.
// Run with: go test -v ./test/integration/... -tags=integration
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseURL = getEnv("TEST_BASE_URL", "http://localhost:3000/api/v1")

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// TestClient wraps http.Client with common headers
type TestClient struct {
	*http.Client
	baseURL string
	userID  string
}

func NewTestClient() *TestClient {
	return &TestClient{
		Client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		userID:  uuid.NewString(),
	}
}

func (c *TestClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	return c.Client.Do(req)
}

func (c *TestClient) Get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Post(path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Put(path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("PUT", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Delete(path string) (*http.Response, error) {
	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func parseResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "failed to parse response: %s", string(body))
	}
}

func createCharacter(t *testing.T, client *TestClient, name string) string {
	t.Helper()
	resp, err := client.Post("/characters", map[string]any{
		"name": name,
		"role": "friend",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "failed to create character")

	var created map[string]any
	parseResponse(t, resp, &created)
	return created["id"].(string)
}

// TestHealthCheck verifies the API is running
func TestHealthCheck(t *testing.T) {
	client := NewTestClient()

	resp, err := client.Client.Get(getEnv("TEST_HEALTH_URL", "http://localhost:3000/api/v1/health"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestProfileUpsert tests the profile read and upsert flow
func TestProfileUpsert(t *testing.T) {
	client := NewTestClient()

	resp, err := client.Get("/profile")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.Put("/profile", map[string]any{
		"name": "Me",
		"role": "self",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var profile map[string]any
	parseResponse(t, resp, &profile)
	assert.Equal(t, true, profile["is_owner"])

	resp, err = client.Put("/profile", map[string]any{
		"name": "Still me",
		"role": "self",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// TestEventLifecycle tests event creation, the analysis dispatch, editing
// rules, and deletion
func TestEventLifecycle(t *testing.T) {
	client := NewTestClient()
	suffix := time.Now().UnixNano()

	annaID := createCharacter(t, client, fmt.Sprintf("Anna %d", suffix))
	marekID := createCharacter(t, client, fmt.Sprintf("Marek %d", suffix))

	// Fewer than two participants is rejected up front
	resp, err := client.Post("/events", map[string]any{
		"title":           "Solo event",
		"description":     "Not enough participants",
		"participant_ids": []string{annaID},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Create dispatches the analysis and returns pending immediately
	resp, err = client.Post("/events", map[string]any{
		"title":           fmt.Sprintf("Argument %d", suffix),
		"description":     "They argued over chores.",
		"participant_ids": []string{annaID, marekID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	parseResponse(t, resp, &created)
	eventID := created["id"].(string)
	assert.Equal(t, "pending", created["analysis_status"])
	assert.Len(t, created["participants"], 2)

	// Read it back
	resp, err = client.Get("/events/" + eventID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched map[string]any
	parseResponse(t, resp, &fetched)
	assert.Equal(t, eventID, fetched["id"])

	// List is paginated
	resp, err = client.Get("/events?page=1&pageSize=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page map[string]any
	parseResponse(t, resp, &page)
	assert.NotNil(t, page["data"])
	assert.NotNil(t, page["pagination"])

	// Partial update keeps omitted fields
	resp, err = client.Put("/events/"+eventID, map[string]any{
		"description": "They argued over chores, loudly.",
	})
	require.NoError(t, err)

	var updated map[string]any
	if resp.StatusCode == http.StatusOK {
		parseResponse(t, resp, &updated)
		assert.Equal(t, created["title"], updated["title"])
		assert.Equal(t, "They argued over chores, loudly.", updated["description"])
	} else {
		// the background analysis already completed and locked the event
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}

	// Analyses endpoint always answers, even while pending
	resp, err = client.Get("/events/" + eventID + "/analyses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Delete
	resp, err = client.Delete("/events/" + eventID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.Get("/events/" + eventID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// TestUserIsolation verifies users cannot see each other's data
func TestUserIsolation(t *testing.T) {
	owner := NewTestClient()
	other := NewTestClient()
	suffix := time.Now().UnixNano()

	characterID := createCharacter(t, owner, fmt.Sprintf("Private %d", suffix))

	resp, err := other.Get("/characters/" + characterID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
