package proxy

import (
	"context"
	"log/slog"
	"net/http"
)

// anthropicError is the error envelope every failure path on the Anthropic
// surface returns, matching the shape Anthropic's own API uses.
type anthropicError struct {
	Type  string              `json:"type"`
	Error anthropicErrorInner `json:"error"`
}

type anthropicErrorInner struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeAnthropicError logs at warn and writes the Anthropic-shaped error
// envelope described by spec §7.
func writeAnthropicError(ctx context.Context, w http.ResponseWriter, status int, errType, message string) {
	slog.WarnContext(ctx, "request failed", "status", status, "error_type", errType, "message", message)
	writeJSON(ctx, w, anthropicError{
		Type: "error",
		Error: anthropicErrorInner{
			Type:    errType,
			Message: message,
		},
	}, status)
}

// unavailableError is the narrower envelope used when the model cache is
// cold and cannot be populated — spec §7 gives it a distinct shape from the
// rest of the Anthropic error family.
type unavailableError struct {
	Error unavailableErrorInner `json:"error"`
}

type unavailableErrorInner struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeUnavailableError(ctx context.Context, w http.ResponseWriter, message string) {
	slog.WarnContext(ctx, "models unavailable", "message", message)
	writeJSON(ctx, w, unavailableError{
		Error: unavailableErrorInner{Type: "unavailable", Message: message},
	}, http.StatusServiceUnavailable)
}
