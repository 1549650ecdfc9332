package proxy_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/proxy"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
)

// roundTripFunc lets a test supply an inline RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestModelsHandlerFetchesAndRenamesOnColdCache(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(r.URL.Path, "copilot_internal"):
			return jsonResponse(200, `{"token":"tok","refresh_in":1500,"expires_at":9999999999}`), nil
		case strings.HasSuffix(r.URL.Path, "/models"):
			return jsonResponse(200, `{"data":[{"id":"claude-3.5-sonnet","name":"Claude 3.5 Sonnet"}],"object":"list"}`), nil
		}
		t.Fatalf("unexpected request to %s", r.URL.Path)
		return nil, nil
	})

	client := copilotclient.New(transport)
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(true, nil)

	h := &proxy.ModelsHandler{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		Cache:             proxy.NewModelsCache(time.Hour),
		DefaultCredential: "ghp_default",
		AccountType:       "individual",
		VSCodeVersion:     "1.100.0",
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "claude-sonnet-3-5") {
		t.Errorf("expected renamed model id in response, got %s", rec.Body.String())
	}
}

func TestModelsHandlerAnthropicEnvelopeOnVersionHeader(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(r.URL.Path, "copilot_internal"):
			return jsonResponse(200, `{"token":"tok","refresh_in":1500,"expires_at":9999999999}`), nil
		case strings.HasSuffix(r.URL.Path, "/models"):
			return jsonResponse(200, `{"data":[{"id":"gpt-4.1","name":"GPT-4.1"}],"object":"list"}`), nil
		}
		t.Fatalf("unexpected request to %s", r.URL.Path)
		return nil, nil
	})

	client := copilotclient.New(transport)
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(false, nil)

	h := &proxy.ModelsHandler{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		Cache:             proxy.NewModelsCache(time.Hour),
		DefaultCredential: "ghp_default",
		AccountType:       "individual",
		VSCodeVersion:     "1.100.0",
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("anthropic-version", "2023-06-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"display_name"`) {
		t.Errorf("expected anthropic-flavoured envelope, got %s", rec.Body.String())
	}
}

func TestModelsHandlerColdCacheNoCredentialIsUnavailable(t *testing.T) {
	client := copilotclient.New(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("no upstream call expected")
		return nil, nil
	}))
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(true, nil)

	h := &proxy.ModelsHandler{
		Client:        client,
		Tokens:        tokens,
		Renamer:       rn,
		Cache:         proxy.NewModelsCache(time.Hour),
		AccountType:   "individual",
		VSCodeVersion: "1.100.0",
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"unavailable"`) {
		t.Errorf("expected unavailable envelope, got %s", rec.Body.String())
	}
}

func TestModelsHandlerExchangeFailureIsAuthenticationError(t *testing.T) {
	client := copilotclient.New(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"error":"bad credentials"}`), nil
	}))
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(true, nil)

	h := &proxy.ModelsHandler{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		Cache:             proxy.NewModelsCache(time.Hour),
		DefaultCredential: "ghp_bad",
		AccountType:       "individual",
		VSCodeVersion:     "1.100.0",
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "authentication_error") {
		t.Errorf("expected authentication_error envelope, got %s", rec.Body.String())
	}
}
