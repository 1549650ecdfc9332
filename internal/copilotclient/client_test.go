package copilotclient_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// mockTransport captures the outgoing request and returns a canned response.
type mockTransport struct {
	capturedRequest *http.Request
	responseBody    string
	responseStatus  int
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.capturedRequest = req
	return &http.Response{
		StatusCode: m.responseStatus,
		Body:       io.NopCloser(strings.NewReader(m.responseBody)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestExchangeToken(t *testing.T) {
	mock := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody:   `{"token":"tok_abc","refresh_in":1500,"expires_at":1999999999}`,
	}
	c := copilotclient.New(mock)

	resp, err := c.ExchangeToken(context.Background(), "ghp_test", "1.90.0")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Token != "tok_abc" || resp.RefreshIn != 1500 || resp.ExpiresAt != 1999999999 {
		t.Fatalf("got %+v", resp)
	}

	if got := mock.capturedRequest.Header.Get("Authorization"); got != "token ghp_test" {
		t.Errorf("Authorization = %q", got)
	}
	if got := mock.capturedRequest.Header.Get("Editor-Version"); got != "vscode/1.90.0" {
		t.Errorf("Editor-Version = %q", got)
	}
	if mock.capturedRequest.URL.String() != "https://api.github.com/copilot_internal/v2/token" {
		t.Errorf("URL = %q", mock.capturedRequest.URL.String())
	}
}

func TestExchangeTokenNon2xxIsError(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusUnauthorized, responseBody: `{"error":"bad credentials"}`}
	c := copilotclient.New(mock)

	_, err := c.ExchangeToken(context.Background(), "ghp_bad", "1.90.0")
	if err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestFetchModelsUsesAccountTypeHost(t *testing.T) {
	mock := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody:   `{"object":"list","data":[{"id":"gpt-4o","name":"GPT-4o","object":"model","vendor":"Azure OpenAI","version":"1"}]}`,
	}
	c := copilotclient.New(mock)

	resp, err := c.FetchModels(context.Background(), "cop_tok", "business", "1.90.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "gpt-4o" {
		t.Fatalf("got %+v", resp)
	}
	if got := mock.capturedRequest.URL.String(); got != "https://api.business.githubcopilot.com/models" {
		t.Errorf("URL = %q", got)
	}
	if got := mock.capturedRequest.Header.Get("Authorization"); got != "Bearer cop_tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestFetchModelsIndividualAccountUsesBareDomain(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusOK, responseBody: `{"object":"list","data":[]}`}
	c := copilotclient.New(mock)

	if _, err := c.FetchModels(context.Background(), "cop_tok", "individual", "1.90.0"); err != nil {
		t.Fatal(err)
	}
	if got := mock.capturedRequest.URL.String(); got != "https://api.githubcopilot.com/models" {
		t.Errorf("URL = %q", got)
	}
}

func TestChatCompletionsSetsInitiatorHeader(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusOK, responseBody: `{}`}
	c := copilotclient.New(mock)

	resp, err := c.ChatCompletions(context.Background(), "cop_tok", "individual", "1.90.0", []byte(`{"model":"gpt-4o"}`), false, true)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := mock.capturedRequest.Header.Get("X-Initiator"); got != "agent" {
		t.Errorf("X-Initiator = %q, want agent", got)
	}
}

func TestChatCompletionsUserInitiator(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusOK, responseBody: `{}`}
	c := copilotclient.New(mock)

	resp, err := c.ChatCompletions(context.Background(), "cop_tok", "individual", "1.90.0", []byte(`{}`), false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := mock.capturedRequest.Header.Get("X-Initiator"); got != "user" {
		t.Errorf("X-Initiator = %q, want user", got)
	}
}

func TestChatCompletionsSetsVisionHeaderWhenRequested(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusOK, responseBody: `{}`}
	c := copilotclient.New(mock)

	resp, err := c.ChatCompletions(context.Background(), "cop_tok", "individual", "1.90.0", []byte(`{}`), true, false)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := mock.capturedRequest.Header.Get("Copilot-Vision-Request"); got != "true" {
		t.Errorf("Copilot-Vision-Request = %q, want true", got)
	}
}

func TestChatCompletionsNon2xxReturnsBodyInError(t *testing.T) {
	mock := &mockTransport{responseStatus: http.StatusBadGateway, responseBody: `upstream overloaded`}
	c := copilotclient.New(mock)

	_, err := c.ChatCompletions(context.Background(), "cop_tok", "individual", "1.90.0", []byte(`{}`), false, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "upstream overloaded") {
		t.Errorf("error = %v, want it to include upstream body", err)
	}
}
