package translate

import (
	"strings"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
)

const (
	thinkingOpenTag  = "<thinking>"
	thinkingCloseTag = "</thinking>"
)

// ParseThinkingBlocks splits text on <thinking>...</thinking> tags into a
// sequence of assistant content blocks. Text outside the tags becomes text
// blocks; an unclosed opening tag is treated as ordinary text, including
// the tag itself. If no tags are found at all, the whole text comes back
// as a single text block.
func ParseThinkingBlocks(text string) []anthropic.AssistantContentBlock {
	var blocks []anthropic.AssistantContentBlock
	remaining := text
	foundThinking := false

	for {
		startIdx := strings.Index(remaining, thinkingOpenTag)
		if startIdx < 0 {
			break
		}
		foundThinking = true

		prefix := remaining[:startIdx]
		if strings.TrimSpace(prefix) != "" {
			blocks = append(blocks, anthropic.NewTextBlock(prefix))
		}

		afterOpen := remaining[startIdx+len(thinkingOpenTag):]
		endIdx := strings.Index(afterOpen, thinkingCloseTag)
		if endIdx < 0 {
			blocks = append(blocks, anthropic.NewTextBlock(remaining[startIdx:]))
			remaining = ""
			break
		}

		blocks = append(blocks, anthropic.NewThinkingBlock(afterOpen[:endIdx]))
		remaining = afterOpen[endIdx+len(thinkingCloseTag):]
	}

	if remaining != "" {
		blocks = append(blocks, anthropic.NewTextBlock(remaining))
	}

	if !foundThinking {
		return []anthropic.AssistantContentBlock{anthropic.NewTextBlock(text)}
	}

	return blocks
}

// ThinkingEventKind distinguishes the events ThinkingParser emits.
type ThinkingEventKind int

const (
	ThinkingStart ThinkingEventKind = iota
	ThinkingDelta
	ThinkingEnd
	TextDelta
)

// ThinkingEvent is one unit of output from ThinkingParser.Push: a
// start/end marker, or a chunk of text/thinking content.
type ThinkingEvent struct {
	Kind ThinkingEventKind
	Text string
}

// ThinkingParser incrementally extracts <thinking>...</thinking> spans from
// a stream of text chunks, emitting Start/Delta/End events as they are
// recognized. It holds back a tag-length reserve of buffered bytes so a
// split tag never leaks into an emitted delta.
type ThinkingParser struct {
	buffer    strings.Builder
	inThink   bool
}

// NewThinkingParser returns a parser ready to process the first chunk of a
// new stream.
func NewThinkingParser() *ThinkingParser {
	return &ThinkingParser{}
}

// Push feeds the next chunk of upstream text and returns whatever events it
// produced. Call Finish once the stream ends to flush anything still held
// back by the reserve.
func (p *ThinkingParser) Push(chunk string) []ThinkingEvent {
	p.buffer.WriteString(chunk)
	var events []ThinkingEvent

	for {
		buf := p.buffer.String()

		if p.inThink {
			endIdx := strings.Index(buf, thinkingCloseTag)
			if endIdx >= 0 {
				if endIdx > 0 {
					events = append(events, ThinkingEvent{Kind: ThinkingDelta, Text: buf[:endIdx]})
				}
				events = append(events, ThinkingEvent{Kind: ThinkingEnd})
				p.reset(buf[endIdx+len(thinkingCloseTag):])
				p.inThink = false
				continue
			}

			reserve := min(len(thinkingCloseTag), len(buf))
			if len(buf) > reserve {
				emitLen := len(buf) - reserve
				toEmit := buf[:emitLen]
				if toEmit != "" {
					events = append(events, ThinkingEvent{Kind: ThinkingDelta, Text: toEmit})
				}
				p.reset(buf[emitLen:])
			}
			break
		}

		startIdx := strings.Index(buf, thinkingOpenTag)
		if startIdx >= 0 {
			if startIdx > 0 {
				prefix := buf[:startIdx]
				if prefix != "" {
					events = append(events, ThinkingEvent{Kind: TextDelta, Text: prefix})
				}
			}
			events = append(events, ThinkingEvent{Kind: ThinkingStart})
			p.reset(buf[startIdx+len(thinkingOpenTag):])
			p.inThink = true
			continue
		}

		reserve := min(len(thinkingOpenTag), len(buf))
		if len(buf) > reserve {
			emitLen := len(buf) - reserve
			toEmit := buf[:emitLen]
			if toEmit != "" {
				events = append(events, ThinkingEvent{Kind: TextDelta, Text: toEmit})
			}
			p.reset(buf[emitLen:])
		}
		break
	}

	return events
}

func (p *ThinkingParser) reset(remaining string) {
	p.buffer.Reset()
	p.buffer.WriteString(remaining)
}

// Finish flushes any content still held in the reserve buffer, tagged as
// thinking or text depending on where the stream left off. Call this once,
// after the last Push.
func (p *ThinkingParser) Finish() *ThinkingEvent {
	remaining := p.buffer.String()
	if remaining == "" {
		return nil
	}
	if p.inThink {
		return &ThinkingEvent{Kind: ThinkingDelta, Text: remaining}
	}
	return &ThinkingEvent{Kind: TextDelta, Text: remaining}
}
