package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
	"github.com/florianilch/copilot-bridge/internal/renamer"
	"github.com/florianilch/copilot-bridge/internal/tokencache"
)

// ModelsHandler serves the model list, from cache when valid and from an
// on-demand upstream fetch otherwise, applying the Renamer to every ID and
// registering the display<->upstream mapping as it goes.
type ModelsHandler struct {
	Client            *copilotclient.Client
	Tokens            *tokencache.Cache
	Renamer           *renamer.Renamer
	Cache             *ModelsCache
	DefaultCredential string
	AccountType       string
	VSCodeVersion     string
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential, _ := resolveCredential(r, h.DefaultCredential)
	resp, err := ensureModelsCached(ctx, h.Client, h.Tokens, h.Renamer, h.Cache, credential, h.AccountType, h.VSCodeVersion)
	if err != nil {
		var classified *modelsCacheError
		if errors.As(err, &classified) {
			switch classified.kind {
			case modelsCacheErrorNoCredential:
				writeUnavailableError(ctx, w, classified.Error())
			case modelsCacheErrorExchange:
				writeAnthropicError(ctx, w, http.StatusUnauthorized, "authentication_error", classified.Error())
			case modelsCacheErrorFetch:
				writeAnthropicError(ctx, w, http.StatusBadGateway, "api_error", classified.Error())
			default:
				writeUnavailableError(ctx, w, classified.Error())
			}
			return
		}
		writeUnavailableError(ctx, w, err.Error())
		return
	}

	if r.Header.Get("anthropic-version") != "" {
		writeJSON(ctx, w, toAnthropicModelsResponse(resp), http.StatusOK)
		return
	}
	writeJSON(ctx, w, resp, http.StatusOK)
}

// ensureModelsCached serves the cached model list if valid, else performs an
// on-demand upstream fetch, rename pass, and cache fill. Also used by the
// /v1/messages handler to populate the Renamer's learned map before the
// first translation when nothing has been learned yet.
func ensureModelsCached(
	ctx context.Context,
	client *copilotclient.Client,
	tokens *tokencache.Cache,
	rn *renamer.Renamer,
	cache *ModelsCache,
	credential string,
	accountType string,
	vscodeVersion string,
) (*copilotclient.ModelsResponse, error) {
	if cached, ok := cache.Get(); ok {
		return cached, nil
	}

	if credential == "" {
		return nil, &modelsCacheError{kind: modelsCacheErrorNoCredential, msg: "models not cached and no GitHub credential available"}
	}

	token, err := tokens.GetOrExchange(ctx, credential)
	if err != nil {
		slog.WarnContext(ctx, "token exchange failed for on-demand model fetch", "error", err)
		return nil, &modelsCacheError{kind: modelsCacheErrorExchange, msg: "failed to exchange GitHub credential", cause: err}
	}

	resp, err := client.FetchModels(ctx, token, accountType, vscodeVersion)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch models on-demand", "error", err)
		return nil, &modelsCacheError{kind: modelsCacheErrorFetch, msg: "failed to fetch models from upstream", cause: err}
	}

	for i := range resp.Data {
		upstreamID := resp.Data[i].ID
		renamed := rn.Rename(upstreamID)
		rn.Register(upstreamID, renamed)
		resp.Data[i].ID = renamed
	}

	cache.Set(resp)
	slog.InfoContext(ctx, "fetched and cached models on-demand", "count", len(resp.Data))
	return resp, nil
}

type modelsCacheErrorKind int

const (
	modelsCacheErrorNoCredential modelsCacheErrorKind = iota
	modelsCacheErrorExchange
	modelsCacheErrorFetch
)

// modelsCacheError classifies why an on-demand model fetch failed, so
// callers can map each distinct failure to the status code spec §7 assigns
// it (503 cold-cache, 401 exchange failure, 502 upstream fetch failure).
type modelsCacheError struct {
	kind  modelsCacheErrorKind
	msg   string
	cause error
}

func (e *modelsCacheError) Error() string { return e.msg }

func (e *modelsCacheError) Unwrap() error { return e.cause }

// toAnthropicModelsResponse converts Copilot's own model list shape into the
// Anthropic-flavoured envelope, selected when the caller sends an
// anthropic-version header.
func toAnthropicModelsResponse(resp *copilotclient.ModelsResponse) copilotclient.AnthropicModelsResponse {
	out := copilotclient.AnthropicModelsResponse{
		Data:    make([]copilotclient.AnthropicModelInfo, 0, len(resp.Data)),
		HasMore: false,
	}
	for _, m := range resp.Data {
		out.Data = append(out.Data, copilotclient.AnthropicModelInfo{
			ID:          m.ID,
			CreatedAt:   strconv.FormatInt(time.Now().Unix(), 10),
			DisplayName: m.Name,
			Type:        "model",
		})
	}
	if len(out.Data) > 0 {
		first := out.Data[0].ID
		last := out.Data[len(out.Data)-1].ID
		out.FirstID = &first
		out.LastID = &last
	}
	return out
}
