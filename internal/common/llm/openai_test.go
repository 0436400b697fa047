package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-rag-functions/internal/common/config"
)

type staticCredential struct {
	token string
	err   error
}

func (c *staticCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if c.err != nil {
		return azcore.AccessToken{}, c.err
	}
	return azcore.AccessToken{Token: c.token}, nil
}

type capturedRequest struct {
	Path     string
	Query    string
	APIKey   string
	Bearer   string
	Messages []map[string]interface{}
}

func completionJSON(contents ...string) string {
	choices := make([]map[string]interface{}, 0, len(contents))
	for i, c := range contents {
		choices = append(choices, map[string]interface{}{
			"index":         i,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": c},
		})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": choices,
	})
	return string(body)
}

func newChatServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []map[string]interface{} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		captured = append(captured, capturedRequest{
			Path:     r.URL.Path,
			Query:    r.URL.RawQuery,
			APIKey:   r.Header.Get("Api-Key"),
			Bearer:   r.Header.Get("Authorization"),
			Messages: payload.Messages,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func testChatConfig(endpoint string) config.ChatConfig {
	return config.ChatConfig{
		Endpoint:   endpoint,
		APIKey:     "chat-key",
		APIVersion: "2024-06-01",
		Deployment: "gpt-4o",
	}
}

func TestClient_Complete_WithAPIKey(t *testing.T) {
	srv, captured := newChatServer(t, http.StatusOK, completionJSON("Appeals are due within 30 days."))

	client := NewClient(testChatConfig(srv.URL), nil, srv.Client())
	answer, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a law proceedings assistant."},
		{Role: RoleUser, Content: "Question: What is the appeal deadline?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Appeals are due within 30 days.", answer)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.True(t, strings.HasSuffix(req.Path, "/openai/deployments/gpt-4o/chat/completions"), req.Path)
	assert.Contains(t, req.Query, "api-version=2024-06-01")
	assert.Equal(t, "chat-key", req.APIKey)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0]["role"])
	assert.Equal(t, "user", req.Messages[1]["role"])
	assert.Equal(t, "Question: What is the appeal deadline?", req.Messages[1]["content"])
}

func TestClient_Complete_WithTokenCredential(t *testing.T) {
	srv, captured := newChatServer(t, http.StatusOK, completionJSON("ok"))

	cfg := testChatConfig(srv.URL)
	cfg.APIKey = ""
	client := NewClient(cfg, &staticCredential{token: "entra-token"}, srv.Client())

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	assert.Equal(t, "Bearer entra-token", (*captured)[0].Bearer)
}

func TestClient_Complete_CredentialFailureMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := testChatConfig(srv.URL)
	cfg.APIKey = ""
	cfg.MaxRetries = 3
	client := NewClient(cfg, &staticCredential{err: stderrors.New("managed identity unavailable")}, srv.Client())

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestClient_Complete_RejectedKey(t *testing.T) {
	srv, captured := newChatServer(t, http.StatusUnauthorized, `{"error":{"code":"401","message":"Access denied"}}`)

	cfg := testChatConfig(srv.URL)
	cfg.MaxRetries = 2
	client := NewClient(cfg, nil, srv.Client())

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Len(t, *captured, 1)
}

func TestClient_Complete_ServerError(t *testing.T) {
	srv, _ := newChatServer(t, http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`)

	client := NewClient(testChatConfig(srv.URL), nil, srv.Client())

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", FirstText(nil))
	assert.Equal(t, "", FirstText(&openai.ChatCompletion{}))

	var completion openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(completionJSON("", "second")), &completion))
	assert.Equal(t, "second", FirstText(&completion))

	var blank openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(completionJSON("  ", "second")), &blank))
	assert.Equal(t, "  ", FirstText(&blank))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(stderrors.New("connection reset")))
	assert.False(t, IsRetryable(&AuthError{Err: stderrors.New("401")}))
}
