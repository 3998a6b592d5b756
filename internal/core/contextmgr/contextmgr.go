// Package contextmgr tracks conversation token usage and decides when to
// micro-compact oversized messages or fully compact the thread to a
// summary. It mirrors internal/core's Compact helper but generalizes the
// fixed 95%-of-limit threshold in internal/message.NeedsCompaction into a
// configurable auto-compact threshold, and adds the retained-tail
// algorithm for full compaction.
package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/system"
)

const (
	// defaultPerMessageCeiling is the approximate token ceiling above
	// which an individual message is micro-compacted in place.
	defaultPerMessageCeiling = 8000
	// charsPerToken approximates English prose/code token density for
	// the same word/character heuristic internal/message uses.
	charsPerToken = 4

	defaultAutoCompactThreshold = 0.85
	defaultRetainedTailTurns    = 3
	elidedExcerptChars          = 200
)

// Config tunes ContextManager thresholds.
type Config struct {
	// PerMessageCeiling is the token ceiling for micro-compaction.
	// Default ~8000 (see spec.md §9 Open Question #2: an implementation
	// parameter, not a contract constant).
	PerMessageCeiling int
	// AutoCompactThreshold triggers full compaction once aggregate usage
	// reaches this fraction of ContextWindow. Default 0.85.
	AutoCompactThreshold float64
	// ContextWindow is the model's declared context window in tokens.
	ContextWindow int
	// RetainedTailTurns is how many of the most recent user turns stay
	// verbatim through full compaction. Default 3.
	RetainedTailTurns int
}

func (c Config) withDefaults() Config {
	if c.PerMessageCeiling <= 0 {
		c.PerMessageCeiling = defaultPerMessageCeiling
	}
	if c.AutoCompactThreshold <= 0 {
		c.AutoCompactThreshold = defaultAutoCompactThreshold
	}
	if c.RetainedTailTurns <= 0 {
		c.RetainedTailTurns = defaultRetainedTailTurns
	}
	return c
}

// Manager implements the ContextManager component: accounting, micro-
// compaction, and full compaction via a dedicated provider call.
type Manager struct {
	Client *client.Client
	Config Config
}

// New builds a Manager with defaults applied.
func New(c *client.Client, cfg Config) *Manager {
	return &Manager{Client: c, Config: cfg.withDefaults()}
}

// NeedsFullCompaction reports whether aggregate input token usage has
// crossed AutoCompactThreshold of ContextWindow.
func (m *Manager) NeedsFullCompaction(inputTokens int) bool {
	cfg := m.Config.withDefaults()
	if cfg.ContextWindow <= 0 || inputTokens <= 0 {
		return false
	}
	return float64(inputTokens)/float64(cfg.ContextWindow) >= cfg.AutoCompactThreshold
}

// MicroCompact replaces the body of any message whose content exceeds the
// per-message ceiling with a stub, preserving tool_call/tool_result id
// correspondence (the stub carries the same ToolCallID/ToolName).
func (m *Manager) MicroCompact(msgs []message.Message) []message.Message {
	cfg := m.Config.withDefaults()
	limit := cfg.PerMessageCeiling * charsPerToken

	out := make([]message.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = microCompactOne(msg, limit)
	}
	return out
}

func microCompactOne(msg message.Message, limit int) message.Message {
	if msg.ToolResult != nil && len(msg.ToolResult.Content) > limit {
		tr := *msg.ToolResult
		tr.Content = elide(tr.Content, "tool", tr.ToolName, limit)
		tr.Truncated = true
		msg.ToolResult = &tr
		return msg
	}
	if len(msg.Content) > limit {
		kind := "text"
		msg.Content = elide(msg.Content, kind, "", limit)
	}
	return msg
}

func elide(body, kind, toolName string, limit int) string {
	head := body
	if len(head) > elidedExcerptChars {
		head = head[:elidedExcerptChars]
	}
	tail := ""
	if len(body) > elidedExcerptChars {
		tail = body[len(body)-elidedExcerptChars:]
	}
	stub := fmt.Sprintf("[elided: kind=%s, bytes=%d", kind, len(body))
	if toolName != "" {
		stub += fmt.Sprintf(", tool=%s", toolName)
	}
	stub += "]"
	_ = limit
	return stub + "\n" + head + "\n...\n" + tail
}

// FullCompact runs the retained-tail algorithm: everything before the
// retained tail is summarized via a dedicated provider call and replaced
// by a single system-role message; the tail (the most recent user turns
// plus any pending tool_call awaiting its result) is kept verbatim.
func (m *Manager) FullCompact(ctx context.Context, msgs []message.Message, focus string) (
	newMsgs []message.Message, summary string, err error) {
	if len(msgs) == 0 {
		return msgs, "", nil
	}

	cfg := m.Config.withDefaults()
	tailStart := retainedTailStart(msgs, cfg.RetainedTailTurns)

	prefix := msgs[:tailStart]
	tail := msgs[tailStart:]
	if len(prefix) == 0 {
		return msgs, "", nil
	}

	summary, _, err = m.compact(ctx, prefix, focus)
	if err != nil {
		return nil, "", err
	}

	out := make([]message.Message, 0, len(tail)+1)
	out = append(out, message.SystemMessage(summary))
	out = append(out, tail...)
	return out, summary, nil
}

// retainedTailStart finds the index of the Kth-from-last user turn, then
// walks backward further to fold in any orphaned tool_call (one without a
// matching tool_result yet) from the assistant step immediately before it,
// so compaction never separates a tool_call from its pending result.
func retainedTailStart(msgs []message.Message, k int) int {
	userTurns := 0
	idx := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleUser && msgs[i].ToolResult == nil {
			userTurns++
			idx = i
			if userTurns >= k {
				break
			}
		}
	}

	// Pull in a preceding assistant step whose tool_calls aren't all
	// answered within [idx, len(msgs)) yet.
	for idx > 0 {
		prev := msgs[idx-1]
		if prev.Role != message.RoleAssistant || len(prev.ToolCalls) == 0 {
			break
		}
		if allToolCallsAnswered(prev.ToolCalls, msgs[idx:]) {
			break
		}
		idx--
	}

	return idx
}

func allToolCallsAnswered(calls []message.ToolCall, after []message.Message) bool {
	answered := make(map[string]bool, len(calls))
	for _, m := range after {
		if m.ToolResult != nil {
			answered[m.ToolResult.ToolCallID] = true
		}
	}
	for _, c := range calls {
		if !answered[c.ID] {
			return false
		}
	}
	return true
}

// compact sends a prefix of the conversation to the LLM for summarization.
// Mirrors internal/core.Compact, duplicated here (rather than imported) to
// avoid a core<->contextmgr import cycle: core.Loop holds a *Manager field.
func (m *Manager) compact(ctx context.Context, msgs []message.Message, focus string) (string, int, error) {
	count := len(msgs)
	text := message.BuildConversationText(msgs)
	if focus != "" {
		text += fmt.Sprintf("\n\n**Important**: Focus the summary on: %s", focus)
	}

	resp, err := m.Client.Complete(ctx, system.CompactPrompt(),
		[]message.Message{message.UserMessage(text, nil)}, 2048)
	if err != nil {
		return "", count, fmt.Errorf("failed to generate summary: %w", err)
	}
	return strings.TrimSpace(resp.Content), count, nil
}
