// Package sse provides the two halves of this proxy's Server-Sent Events
// handling: Framer scans upstream SSE bytes into individual data payloads,
// and Writer serializes Anthropic-shaped stream events to the client.
package sse

import "strings"

// Framer incrementally extracts "data:" payloads from a raw upstream SSE
// byte stream, buffering partial events across reads until a full
// `\n\n`-or-`\r\n\r\n`-terminated block arrives.
type Framer struct {
	buffer strings.Builder
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends newly-read upstream bytes to the internal buffer.
func (f *Framer) Feed(chunk []byte) {
	f.buffer.Write(chunk)
}

// Next pulls the next complete event's joined data payload out of the
// buffer, or ("", false) if no complete event is currently buffered.
// Blocks with no "data:" line (comments, blank keepalives) are silently
// skipped; the scan continues until a data-bearing block is found or the
// buffer is exhausted.
func (f *Framer) Next() (string, bool) {
	buf := f.buffer.String()

	for {
		block, rest, ok := splitNextBlock(buf)
		if !ok {
			if buf != f.buffer.String() {
				f.reset(buf)
			}
			return "", false
		}
		buf = rest

		if data, ok := parseSSEData(block); ok {
			f.reset(buf)
			return data, true
		}
	}
}

func (f *Framer) reset(remaining string) {
	f.buffer.Reset()
	f.buffer.WriteString(remaining)
}

// splitNextBlock finds the first "\n\n" or "\r\n\r\n" boundary in buf and
// returns the block before it and the remainder after it.
func splitNextBlock(buf string) (block, rest string, ok bool) {
	lfIdx := strings.Index(buf, "\n\n")
	crlfIdx := strings.Index(buf, "\r\n\r\n")

	switch {
	case lfIdx < 0 && crlfIdx < 0:
		return "", buf, false
	case crlfIdx >= 0 && (lfIdx < 0 || crlfIdx < lfIdx):
		return buf[:crlfIdx], buf[crlfIdx+4:], true
	default:
		return buf[:lfIdx], buf[lfIdx+2:], true
	}
}

// parseSSEData joins every "data:" line in block (leading single space
// after the colon stripped, per the SSE spec) with "\n". A block with no
// data lines at all (e.g. a bare comment) yields ok=false.
func parseSSEData(block string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimLeft(line, " \t")
		line = strings.TrimPrefix(line, "\r")
		rest, found := strings.CutPrefix(line, "data:")
		if !found {
			continue
		}
		rest = strings.TrimPrefix(rest, " ")
		rest = strings.TrimSuffix(rest, "\r")
		parts = append(parts, rest)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
