package copilotclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin typed wrapper over outbound HTTP calls to GitHub's and
// Copilot's APIs. It holds no credentials of its own; every method takes
// whatever token the call needs.
type Client struct {
	httpClient *http.Client
}

// New builds a Client. A nil transport falls back to DefaultTransport.
func New(transport http.RoundTripper) *Client {
	if transport == nil {
		transport = DefaultTransport()
	}
	return &Client{httpClient: &http.Client{Transport: transport}}
}

// DefaultTransport clones http.DefaultTransport and bounds how long the
// proxy waits for upstream response headers, so a hung Copilot connection
// cannot wedge a request handler forever. It adds no retry behavior: the
// spec's non-goals forbid retrying upstream 5xx.
func DefaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}

// ExchangeToken exchanges a GitHub credential for a short-lived Copilot
// token. Any non-2xx response is an exchange failure.
func (c *Client) ExchangeToken(ctx context.Context, ghToken, vscodeVersion string) (*CopilotTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIBaseURL+"/copilot_internal/v2/token", nil)
	if err != nil {
		return nil, err
	}
	req.Header = githubHeaders(ghToken, vscodeVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token exchange failed: upstream returned %d", resp.StatusCode)
	}

	var out CopilotTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding token exchange response: %w", err)
	}
	return &out, nil
}

// FetchModels retrieves the raw Copilot model list.
func (c *Client) FetchModels(ctx context.Context, copilotToken, accountType, vscodeVersion string) (*ModelsResponse, error) {
	url := BaseURL(accountType) + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header = copilotHeaders(copilotToken, vscodeVersion, false)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("models fetch failed: upstream returned %d", resp.StatusCode)
	}

	var out ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding models response: %w", err)
	}
	return &out, nil
}

// ChatCompletions sends a raw OpenAI-shaped request body to Copilot and
// returns the live HTTP response (caller owns the body). vision and isAgent
// drive the copilot-vision-request and x-initiator headers, per spec §6.
func (c *Client) ChatCompletions(ctx context.Context, copilotToken, accountType, vscodeVersion string, body []byte, vision, isAgent bool) (*http.Response, error) {
	url := BaseURL(accountType) + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = copilotHeaders(copilotToken, vscodeVersion, vision)
	if isAgent {
		req.Header.Set("X-Initiator", "agent")
	} else {
		req.Header.Set("X-Initiator", "user")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat completions failed: upstream returned %d: %s", resp.StatusCode, errBody)
	}

	return resp, nil
}
