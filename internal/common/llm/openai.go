// Package llm provides the chat completion client for Azure OpenAI deployments.
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"legal-rag-functions/internal/common/auth"
	"legal-rag-functions/internal/common/config"
)

// Role tags a message as instruction/context or as the user's question.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Client issues chat completions against a single deployment.
type Client struct {
	client     openai.Client
	deployment string
	cred       azcore.TokenCredential
}

// NewClient builds a client for cfg. When cfg.APIKey is empty, cred supplies an
// Entra ID bearer token per request. httpClient may be nil.
func NewClient(cfg config.ChatConfig, cred azcore.TokenCredential, httpClient *http.Client) *Client {
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	c := &Client{deployment: cfg.Deployment}
	if cfg.APIKey != "" {
		opts = append(opts, azure.WithAPIKey(cfg.APIKey))
	} else {
		c.cred = cred
	}

	c.client = openai.NewClient(opts...)
	return c
}

// Complete sends messages and returns the first non-empty choice text, or ""
// when the model produced none.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	var reqOpts []option.RequestOption
	if c.cred != nil {
		// Token failures are returned before the SDK's retry loop sees them.
		tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{auth.CognitiveServicesScope}})
		if err != nil {
			return "", &AuthError{Err: err}
		}
		reqOpts = append(reqOpts, option.WithHeader("Authorization", "Bearer "+tok.Token))
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.deployment,
		Messages: convertMessages(messages),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		var apiErr *openai.Error
		if stderrors.As(err, &apiErr) && auth.IsAuthStatus(apiErr.StatusCode) {
			return "", &AuthError{Err: err}
		}
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	return FirstText(completion), nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		default:
			out = append(out, openai.SystemMessage(msg.Content))
		}
	}
	return out
}

// FirstText returns the first choice with non-empty text, unmodified.
func FirstText(completion *openai.ChatCompletion) string {
	if completion == nil {
		return ""
	}
	for _, choice := range completion.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content
		}
	}
	return ""
}

// AuthError marks a rejected or unobtainable credential. It is never retried.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("chat authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a Complete error may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return false
	}
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !stderrors.Is(err, context.Canceled)
}
