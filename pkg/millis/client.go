package millis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/client"
)

const DefaultBaseURL = "https://api-west.millis.ai"

// APIError is a non-2xx answer from the platform.
type APIError struct {
	StatusCode int
	Message    string
	Operation  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("millis %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("millis %s: %s (status %d)", e.Operation, e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// PlatformMessage returns the platform's own error text, if err carries one.
func PlatformMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Resource is a platform object mirrored verbatim into the tenant store.
type Resource map[string]interface{}

// String returns the string field key, or "" when absent or not a string.
func (r Resource) String(key string) string {
	s, _ := r[key].(string)
	return s
}

type Client struct {
	baseURL string
	token   string
	auth    string
	http    *client.HTTPClient
	logger  *zap.Logger
}

type Config struct {
	BaseURL string
	Token   string
	Auth    string
	Timeout time.Duration

	Transport http.RoundTripper
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		auth:    cfg.Auth,
		http: client.NewHTTPClient(client.Config{
			ServiceName: "millis",
			Timeout:     cfg.Timeout,
			Transport:   cfg.Transport,
		}),
		logger: logger,
	}
}

// HTTP exposes the underlying client for health reporting.
func (c *Client) HTTP() *client.HTTPClient {
	return c.http
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("token", c.token)
	if c.auth != "" {
		req.Header.Set("authorization", c.auth)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends payload as JSON and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	var body []byte
	contentType := ""
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		contentType = "application/json"
	}

	return c.send(ctx, operation, method, path, body, contentType, out)
}

func (c *Client) send(ctx context.Context, operation, method, path string, body []byte, contentType string, out interface{}) error {
	resp, err := c.http.Do(ctx, operation, method, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, method, path, body, contentType)
	})
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
			Operation:  operation,
		}
		c.logger.Warn("Agent platform returned error",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], resp.Body...)
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", operation, err)
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Message != "":
			return parsed.Message
		case parsed.Error != "":
			return parsed.Error
		case parsed.Detail != "":
			return parsed.Detail
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// Agents

func (c *Client) CreateAgent(ctx context.Context, name string, config AgentConfig) (Resource, error) {
	var agent Resource
	err := c.do(ctx, "create_agent", http.MethodPost, "/agents", map[string]interface{}{
		"name":   name,
		"config": config,
	}, &agent)
	if err != nil {
		return nil, err
	}
	if agent.String("id") == "" {
		return nil, fmt.Errorf("millis create_agent: response has no agent id")
	}
	return agent, nil
}

func (c *Client) GetAgent(ctx context.Context, agentID string) (Resource, error) {
	var agent Resource
	if err := c.do(ctx, "get_agent", http.MethodGet, "/agents/"+escape(agentID), nil, &agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (c *Client) UpdateAgent(ctx context.Context, agentID, name string, config AgentConfig) error {
	return c.do(ctx, "update_agent", http.MethodPut, "/agents/"+escape(agentID), map[string]interface{}{
		"name":   name,
		"config": config,
	}, nil)
}

// Voices

func (c *Client) ListVoices(ctx context.Context, language string) (json.RawMessage, error) {
	path := "/voices"
	if language != "" {
		path += "?language=" + url.QueryEscape(language)
	}

	var voices json.RawMessage
	if err := c.do(ctx, "list_voices", http.MethodGet, path, nil, &voices); err != nil {
		return nil, err
	}
	return voices, nil
}

// Calls

func (c *Client) OutboundCall(ctx context.Context, fromNumber, toNumber string) (json.RawMessage, error) {
	var call json.RawMessage
	err := c.do(ctx, "outbound_call", http.MethodPost, "/calls/outbound", map[string]string{
		"from_number": fromNumber,
		"to_number":   toNumber,
	}, &call)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// StartWebCall returns the access token the browser SDK joins with.
func (c *Client) StartWebCall(ctx context.Context, agentID string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, "start_web_call", http.MethodPost, "/calls/web", map[string]string{"agent_id": agentID}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("millis start_web_call: response has no access token")
	}
	return out.AccessToken, nil
}
