package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/sse"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
	"github.com/florianilch/copilot-bridge/internal/translate"
)

// MessagesHandler implements the full Anthropic <-> OpenAI translation path
// for POST /v1/messages, streaming or not.
type MessagesHandler struct {
	Client            *copilotclient.Client
	Tokens            *tokencache.Cache
	Renamer           *renamer.Renamer
	ModelsCache       *ModelsCache
	DefaultCredential string
	AccountType       string
	VSCodeVersion     string
	EmulateThinking   bool
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential, ok := resolveCredential(r, h.DefaultCredential)
	if !ok {
		writeAnthropicError(ctx, w, http.StatusForbidden, "authentication_error", "no GitHub credential supplied")
		return
	}

	var req anthropic.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnthropicError(ctx, w, http.StatusUnprocessableEntity, "invalid_request_error", "request body is not valid JSON")
		return
	}
	displayModel := req.Model

	if h.Renamer.LearnedEmpty() {
		if _, err := ensureModelsCached(ctx, h.Client, h.Tokens, h.Renamer, h.ModelsCache, credential, h.AccountType, h.VSCodeVersion); err != nil {
			slog.WarnContext(ctx, "on-demand model fetch before translation failed, continuing with identity mapping", "error", err)
		}
	}
	upstreamModel := h.Renamer.Resolve(displayModel)

	token, err := h.Tokens.GetOrExchange(ctx, credential)
	if err != nil {
		writeAnthropicError(ctx, w, http.StatusUnauthorized, "authentication_error", "failed to exchange GitHub credential")
		return
	}

	outbound := translate.Request(&req, upstreamModel)
	body, err := json.Marshal(outbound)
	if err != nil {
		slog.ErrorContext(ctx, "failed to serialize translated request", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	vision := translate.HasVisionContent(&req)
	isAgent := translate.IsAgentCall(&req)

	resp, err := h.Client.ChatCompletions(ctx, token, h.AccountType, h.VSCodeVersion, body, vision, isAgent)
	if err != nil {
		slog.WarnContext(ctx, "upstream chat completions call failed", "error", err)
		writeAnthropicError(ctx, w, http.StatusBadGateway, "api_error", "upstream request failed")
		return
	}
	defer resp.Body.Close()

	if req.Stream != nil && *req.Stream {
		h.streamResponse(ctx, w, resp.Body, displayModel)
		return
	}
	h.writeResponse(ctx, w, resp.Body, displayModel)
}

func (h *MessagesHandler) writeResponse(ctx context.Context, w http.ResponseWriter, body io.Reader, displayModel string) {
	var upstream copilotclient.ChatCompletionResponse
	if err := json.NewDecoder(body).Decode(&upstream); err != nil {
		slog.ErrorContext(ctx, "failed to decode upstream response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	out := translate.Response(&upstream, h.EmulateThinking)
	out.Model = displayModel

	writeJSON(ctx, w, out, http.StatusOK)
}

func (h *MessagesHandler) streamResponse(ctx context.Context, w http.ResponseWriter, body io.Reader, displayModel string) {
	writer, err := sse.NewWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported by this ResponseWriter", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	framer := sse.NewFramer()
	translator := translate.NewStreamTranslator(h.EmulateThinking)

	reader := bufio.NewReader(body)
	buf := make([]byte, 4096)

	emit := func(events []anthropic.StreamEvent) bool {
		for _, ev := range events {
			if ev.MessageStart != nil {
				ev.MessageStart.Model = displayModel
			}
			if err := writer.WriteEvent(ev); err != nil {
				slog.WarnContext(ctx, "failed to write SSE event to client", "error", err)
				return false
			}
		}
		return true
	}

	for {
		if ctx.Err() != nil {
			return
		}

		n, readErr := reader.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n])
			for {
				data, ok := framer.Next()
				if !ok {
					break
				}
				if data == "[DONE]" {
					continue
				}
				var chunk copilotclient.ChatCompletionChunk
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					slog.WarnContext(ctx, "skipping unparseable upstream SSE chunk", "error", err)
					continue
				}
				if !emit(translator.Chunk(&chunk)) {
					return
				}
			}
		}

		if readErr != nil {
			if readErr != io.EOF {
				slog.WarnContext(ctx, "upstream stream read failed", "error", readErr)
			}
			break
		}
	}

	emit(translator.Finish())
}
