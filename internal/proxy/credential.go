package proxy

import (
	"net/http"

	"github.com/florianilch/copilot-bridge/internal/credential"
)

// resolveCredential tries the request's own headers first, falling back to
// the configured default credential. Returns false only when neither yields
// anything to authenticate with.
func resolveCredential(r *http.Request, defaultCredential string) (string, bool) {
	if cred, ok := credential.Extract(r.Header); ok {
		return cred, true
	}
	if defaultCredential != "" {
		return defaultCredential, true
	}
	return "", false
}
