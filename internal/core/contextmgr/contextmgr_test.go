package contextmgr_test

import (
	"context"
	"strings"
	"testing"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/core/contextmgr"
	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/provider"
)

func newClientWithResponses(responses ...message.CompletionResponse) *client.Client {
	fake := &client.FakeClient{Responses: responses}
	return &client.Client{Provider: &fakeProvider{fake}, Model: "fake-model", MaxTokens: 8192}
}

// fakeProvider adapts client.FakeClient to provider.LLMProvider, mirroring
// tests/integration/testutil.FakeProvider without importing the tests tree.
type fakeProvider struct{ c *client.FakeClient }

func (p *fakeProvider) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	return p.c.Stream(ctx, opts.Messages, opts.Tools, opts.SystemPrompt)
}
func (p *fakeProvider) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (p *fakeProvider) Name() string                                            { return p.c.Name() }

func TestNeedsFullCompaction(t *testing.T) {
	m := contextmgr.New(nil, contextmgr.Config{ContextWindow: 1000, AutoCompactThreshold: 0.85})

	if m.NeedsFullCompaction(800) {
		t.Error("800/1000 should not trigger at 0.85 threshold")
	}
	if !m.NeedsFullCompaction(850) {
		t.Error("850/1000 should trigger at 0.85 threshold")
	}
	if m.NeedsFullCompaction(0) {
		t.Error("zero tokens should never trigger")
	}
}

func TestMicroCompact_ElidesOversizedToolResult(t *testing.T) {
	m := contextmgr.New(nil, contextmgr.Config{PerMessageCeiling: 10}) // 10 tokens ~ 40 chars

	big := strings.Repeat("x", 1000)
	msgs := []message.Message{
		message.UserMessage("hi", nil),
		message.ToolResultMessage(message.ToolResult{ToolCallID: "tc1", ToolName: "Grep", Content: big}),
	}

	out := m.MicroCompact(msgs)
	if out[0].Content != "hi" {
		t.Errorf("short message should be untouched, got %q", out[0].Content)
	}
	tr := out[1].ToolResult
	if tr == nil {
		t.Fatal("expected tool result to survive compaction")
	}
	if tr.ToolCallID != "tc1" {
		t.Errorf("expected tool_call_id preserved, got %q", tr.ToolCallID)
	}
	if !tr.Truncated {
		t.Error("expected Truncated=true")
	}
	if !strings.Contains(tr.Content, "elided") {
		t.Errorf("expected elided stub, got %q", tr.Content)
	}
}

func TestFullCompact_PreservesToolCallCorrespondence(t *testing.T) {
	c := newClientWithResponses(message.CompletionResponse{Content: "summary text", StopReason: "end_turn"})
	m := contextmgr.New(c, contextmgr.Config{RetainedTailTurns: 1})

	msgs := []message.Message{
		message.UserMessage("turn 1", nil),
		message.AssistantMessage("ok", "", nil),
		message.UserMessage("turn 2: use a tool", nil),
		message.AssistantMessage("", "", []message.ToolCall{{ID: "tc1", Name: "Grep", Input: "{}"}}),
		message.ToolResultMessage(message.ToolResult{ToolCallID: "tc1", ToolName: "Grep", Content: "found"}),
	}

	out, summary, err := m.FullCompact(context.Background(), msgs, "")
	if err != nil {
		t.Fatalf("FullCompact() error: %v", err)
	}
	if summary != "summary text" {
		t.Errorf("expected summary text, got %q", summary)
	}
	if out[0].Role != message.RoleSystem {
		t.Errorf("expected first message to be system summary, got role %q", out[0].Role)
	}

	// The tool_call/tool_result pair from turn 2 must survive together.
	var sawCall, sawResult bool
	for _, mm := range out {
		for _, tc := range mm.ToolCalls {
			if tc.ID == "tc1" {
				sawCall = true
			}
		}
		if mm.ToolResult != nil && mm.ToolResult.ToolCallID == "tc1" {
			sawResult = true
		}
	}
	if !sawCall || !sawResult {
		t.Error("expected tc1's call and result to both survive compaction")
	}
}

func TestFullCompact_EmptyPrefixIsNoop(t *testing.T) {
	m := contextmgr.New(nil, contextmgr.Config{RetainedTailTurns: 5})
	msgs := []message.Message{message.UserMessage("only turn", nil)}

	out, summary, err := m.FullCompact(context.Background(), msgs, "")
	if err != nil {
		t.Fatalf("FullCompact() error: %v", err)
	}
	if summary != "" {
		t.Errorf("expected no summary when nothing to compact, got %q", summary)
	}
	if len(out) != 1 {
		t.Errorf("expected thread unchanged, got %d messages", len(out))
	}
}
