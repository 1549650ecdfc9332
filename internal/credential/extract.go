// Package credential extracts GitHub-style credentials from inbound request
// headers. It is a pure function over header values; it never rejects a
// request itself, it only reports whether one of the recognized headers
// carried something that looks like a GitHub token.
package credential

import (
	"net/http"
	"strings"
)

// ghPrefixes lists the recognized prefixes of a GitHub personal-access-token
// style credential: classic PAT, OAuth token, user-to-server token, and the
// newer fine-grained PAT.
var ghPrefixes = []string{"ghp_", "gho_", "ghu_", "github_pat_"}

// Extract probes, in order, x-api-key, authorization (Bearer, case
// insensitive), and api-key, returning the first header value that looks
// like a GitHub credential. A header present but not GitHub-shaped is
// ignored, not rejected — extraction moves on to the next header.
func Extract(h http.Header) (string, bool) {
	if v, ok := looksLikeCredential(h.Get("x-api-key")); ok {
		return v, true
	}

	if auth := h.Get("authorization"); auth != "" {
		if rest, ok := stripBearer(auth); ok {
			if v, ok := looksLikeCredential(rest); ok {
				return v, true
			}
		}
	}

	if v, ok := looksLikeCredential(h.Get("api-key")); ok {
		return v, true
	}

	return "", false
}

// stripBearer strips a case-insensitive "Bearer " prefix.
func stripBearer(v string) (string, bool) {
	const prefix = "bearer "
	if len(v) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	return v[len(prefix):], true
}

func looksLikeCredential(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	for _, p := range ghPrefixes {
		if strings.HasPrefix(v, p) {
			return v, true
		}
	}
	return "", false
}
