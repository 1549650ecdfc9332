// Package renamer maps Copilot's upstream model identifiers to the display
// names clients see, and back, so that a client can address a model by the
// name it expects while the upstream call still uses the name Copilot
// accepts.
package renamer

import (
	"strings"
	"sync"
)

const claudePrefix = "claude-"

// Renamer holds the immutable rename rules plus the mutable mapping learned
// from whatever model list has actually been fetched from upstream.
//
// The immutable fields (auto, customForward, customReverse) need no lock.
// learnedReverse is guarded by mu: reads dominate writes (one bulk register
// per model-list fetch versus many resolves per request), so RWMutex is the
// right primitive.
type Renamer struct {
	auto          bool
	customForward map[string]string // upstream -> display
	customReverse map[string]string // display -> upstream, inverted once at construction

	mu             sync.RWMutex
	learnedReverse map[string]string // display -> upstream
}

// New builds a Renamer. customForward may be nil or empty.
func New(autoEnabled bool, customForward map[string]string) *Renamer {
	customReverse := make(map[string]string, len(customForward))
	for upstream, display := range customForward {
		customReverse[display] = upstream
	}
	return &Renamer{
		auto:           autoEnabled,
		customForward:  customForward,
		customReverse:  customReverse,
		learnedReverse: make(map[string]string),
	}
}

// HasRules reports whether renaming can ever do anything: either auto mode
// is on, or a custom map was supplied. Callers use this to skip straight to
// identity on the fast path.
func (r *Renamer) HasRules() bool {
	return r.auto || len(r.customForward) > 0
}

// Rename maps an upstream model ID to the display name a client should see.
func (r *Renamer) Rename(upstreamID string) string {
	if display, ok := r.customForward[upstreamID]; ok {
		return display
	}
	if r.auto && strings.HasPrefix(upstreamID, claudePrefix) {
		if renamed, changed := autoRename(upstreamID); changed {
			return renamed
		}
	}
	return upstreamID
}

// Resolve maps a display name back to the upstream model ID a client
// addressed it by. Custom rules win over learned ones; unknown names pass
// through unchanged.
func (r *Renamer) Resolve(displayID string) string {
	if upstream, ok := r.customReverse[displayID]; ok {
		return upstream
	}
	r.mu.RLock()
	upstream, ok := r.learnedReverse[displayID]
	r.mu.RUnlock()
	if ok {
		return upstream
	}
	return displayID
}

// Register records a display -> upstream mapping learned from a model-list
// fetch. A no-op when the names are identical (nothing to look up later).
func (r *Renamer) Register(upstreamID, displayID string) {
	if upstreamID == displayID {
		return
	}
	r.mu.Lock()
	r.learnedReverse[displayID] = upstreamID
	r.mu.Unlock()
}

// LearnedEmpty reports whether any model has ever been registered. The
// router uses this to decide whether an on-demand model fetch is needed
// before translating a /v1/messages request.
func (r *Renamer) LearnedEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.learnedReverse) == 0
}

// autoRename applies the pattern-based claude-* normalization described by
// the renamer's design: segments after "claude-" are split on "-" and
// classified as version segments (leading ASCII digit) or variant segments.
// Reports whether the ID actually changed.
func autoRename(id string) (string, bool) {
	if !strings.HasPrefix(id, claudePrefix) {
		return id, false
	}
	remainder := strings.TrimPrefix(id, claudePrefix)
	if remainder == "" {
		return id, false
	}
	segments := strings.Split(remainder, "-")

	if isVersionSegment(segments[0]) {
		runEnd := 0
		for runEnd < len(segments) && isVersionSegment(segments[runEnd]) {
			runEnd++
		}
		if runEnd == len(segments) {
			// every segment is a version segment: no variant to move.
			return id, false
		}
		versionRun := strings.Join(segments[:runEnd], "-")
		variant := strings.Join(segments[runEnd:], "-")
		version := replaceVersionDots(versionRun)
		return claudePrefix + variant + "-" + version, true
	}

	replaced := replaceVersionDots(remainder)
	if replaced == remainder {
		return id, false
	}
	return claudePrefix + replaced, true
}

// isVersionSegment reports whether s's first character is an ASCII digit.
func isVersionSegment(s string) bool {
	return s != "" && isASCIIDigit(rune(s[0]))
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// replaceVersionDots replaces every '.' flanked by ASCII digits on both
// sides with '-'. "3.5" -> "3-5", "3.5.1" -> "3-5-1", "v2.beta" and ".5"
// are left alone.
func replaceVersionDots(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '.' && i > 0 && i < len(runes)-1 && isASCIIDigit(runes[i-1]) && isASCIIDigit(runes[i+1]) {
			b.WriteRune('-')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
