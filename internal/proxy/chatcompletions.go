package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
)

// ChatCompletionsHandler proxies the OpenAI-shaped /v1/chat/completions
// surface straight through to Copilot: only the requested model name is
// rewritten, display -> upstream, via the Renamer; every other field and
// the full response body (streaming or not) passes through unchanged.
type ChatCompletionsHandler struct {
	Client            *copilotclient.Client
	Tokens            *tokencache.Cache
	Renamer           *renamer.Renamer
	DefaultCredential string
	AccountType       string
	VSCodeVersion     string
}

func (h *ChatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential, ok := resolveCredential(r, h.DefaultCredential)
	if !ok {
		writeAnthropicError(ctx, w, http.StatusForbidden, "authentication_error", "no GitHub credential supplied")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeAnthropicError(ctx, w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	rewritten := rewriteModelField(raw, h.Renamer)
	vision, isAgent := detectVisionAndAgent(raw)

	token, err := h.Tokens.GetOrExchange(ctx, credential)
	if err != nil {
		writeAnthropicError(ctx, w, http.StatusUnauthorized, "authentication_error", "failed to exchange GitHub credential")
		return
	}

	resp, err := h.Client.ChatCompletions(ctx, token, h.AccountType, h.VSCodeVersion, rewritten, vision, isAgent)
	if err != nil {
		slog.WarnContext(ctx, "upstream chat completions call failed", "error", err)
		writeAnthropicError(ctx, w, http.StatusBadGateway, "api_error", "upstream request failed")
		return
	}
	defer resp.Body.Close()

	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if flusher, ok := w.(http.Flusher); ok && strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		streamCopy(ctx, w, flusher, resp.Body)
		return
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.WarnContext(ctx, "failed to copy upstream response body", "error", err)
	}
}

// streamCopy copies upstream SSE bytes through to the client, flushing after
// every read so streaming latency is not buffered away.
func streamCopy(ctx interface{ Done() <-chan struct{} }, w io.Writer, flusher http.Flusher, body io.Reader) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// rewriteModelField rewrites the top-level "model" field from its display
// name to the upstream identifier, leaving every other field untouched.
func rewriteModelField(body []byte, rn *renamer.Renamer) []byte {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}

	if rawModel, ok := payload["model"]; ok {
		var model string
		if err := json.Unmarshal(rawModel, &model); err == nil {
			resolved := rn.Resolve(model)
			if encoded, err := json.Marshal(resolved); err == nil {
				payload["model"] = encoded
			}
		}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return out
}

// detectVisionAndAgent reports whether the request carries image content or
// an assistant/tool turn, the signals Client.ChatCompletions uses to set the
// copilot-vision-request and x-initiator headers. Tool results arrive as a literal
// role:"tool" message on this OpenAI-shaped surface (unlike the Anthropic
// side, where they live inside a user turn), so both roles count as agent
// turns, mirroring detect_agent.
func detectVisionAndAgent(body []byte) (vision, isAgent bool) {
	var req copilotclient.ChatCompletionsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return false, false
	}
	for _, msg := range req.Messages {
		if msg.Role == "assistant" || msg.Role == "tool" {
			isAgent = true
		}
		if msg.Content == nil {
			continue
		}
		for _, part := range msg.Content.Parts {
			if part.Type == "image_url" {
				vision = true
			}
		}
	}
	return vision, isAgent
}
