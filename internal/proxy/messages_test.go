package proxy_test

import (
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

func TestMessagesHandlerNonStreamingUsesDisplayModel(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(r.URL.Path, "copilot_internal"):
			return jsonResponse(200, `{"token":"tok","refresh_in":1500,"expires_at":9999999999}`), nil
		case strings.HasSuffix(r.URL.Path, "/models"):
			// The learned rename map starts empty, so the handler fetches the model list first.
			return jsonResponse(200, `{"object":"list","data":[{"id":"gpt-4.1","name":"GPT-4.1"}]}`), nil
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			return jsonResponse(200, `{"id":"chatcmpl-1","object":"chat.completion","created":1,`+
				`"model":"gpt-4.1","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},`+
				`"finish_reason":"stop"}]}`), nil
		}
		t.Fatalf("unexpected request to %s", r.URL.Path)
		return nil, nil
	})

	client := copilotclient.New(transport)
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(false, map[string]string{"gpt-4.1": "claude-sonnet-4-5"})

	h := &proxy.MessagesHandler{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		ModelsCache:       proxy.NewModelsCache(time.Hour),
		DefaultCredential: "ghp_default",
		AccountType:       "individual",
		VSCodeVersion:     "1.100.0",
	}

	body := `{"model":"claude-sonnet-4-5","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"model":"claude-sonnet-4-5"`) {
		t.Errorf("expected response to carry the client's display model, got %s", rec.Body.String())
	}
}

func TestMessagesHandlerMissingCredentialIsForbidden(t *testing.T) {
	client := copilotclient.New(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("no upstream call expected")
		return nil, nil
	}))
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(false, nil)

	h := &proxy.MessagesHandler{
		Client:        client,
		Tokens:        tokens,
		Renamer:       rn,
		ModelsCache:   proxy.NewModelsCache(time.Hour),
		AccountType:   "individual",
		VSCodeVersion: "1.100.0",
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestMessagesHandlerMalformedBodyIsInvalidRequest(t *testing.T) {
	client := copilotclient.New(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("no upstream call expected")
		return nil, nil
	}))
	tokens := tokencache.New(client, "1.100.0")
	rn := renamer.New(false, nil)

	h := &proxy.MessagesHandler{
		Client:            client,
		Tokens:            tokens,
		Renamer:           rn,
		ModelsCache:       proxy.NewModelsCache(time.Hour),
		DefaultCredential: "ghp_default",
		AccountType:       "individual",
		VSCodeVersion:     "1.100.0",
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_request_error") {
		t.Errorf("expected invalid_request_error envelope, got %s", rec.Body.String())
	}
}
