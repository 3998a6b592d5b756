package agent_test

import (
	"context"
	"testing"

	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/subagent"
	"github.com/yanmxa/gencode/internal/tool"
	"github.com/yanmxa/gencode/tests/integration/testutil"
)

func newExecutor(t *testing.T, parentModel string, responses ...message.CompletionResponse) *subagent.Executor {
	t.Helper()
	mp := &testutil.MockProvider{Responses: responses}
	manager := subagent.NewManager(10, 3)
	return subagent.NewExecutor(nil, manager, mp, t.TempDir(), parentModel, nil, nil)
}

func endTurn(content string) message.CompletionResponse {
	return message.CompletionResponse{Content: content, StopReason: "end_turn",
		Usage: message.Usage{InputTokens: 10, OutputTokens: 5}}
}

func TestAgent_ExploreAgent(t *testing.T) {
	executor := newExecutor(t, "fake-model", endTurn("Explored the codebase"))

	result, err := executor.Run(context.Background(), tool.AgentExecRequest{
		Agent:       "Explore",
		Prompt:      "Find all Go files",
		Description: "explore codebase",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got error: %s", result.Error)
	}
	if result.AgentName != "Explore" {
		t.Errorf("expected agent name 'Explore', got %q", result.AgentName)
	}
	if result.Content != "Explored the codebase" {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestAgent_UnknownAgent(t *testing.T) {
	executor := newExecutor(t, "fake-model")

	_, err := executor.Run(context.Background(), tool.AgentExecRequest{
		Agent:  "NonExistent",
		Prompt: "do something",
	})
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestAgent_ModelResolution(t *testing.T) {
	tests := []struct {
		name        string
		reqModel    string
		parentModel string
	}{
		{"request override", "custom-model", "parent-model"},
		{"parent inherited", "", "parent-model"},
		{"fallback", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := newExecutor(t, tt.parentModel, endTurn("ok"))

			if tt.parentModel != "" && executor.GetParentModelID() != tt.parentModel {
				t.Errorf("parent model mismatch: got %q, want %q",
					executor.GetParentModelID(), tt.parentModel)
			}

			_, err := executor.Run(context.Background(), tool.AgentExecRequest{
				Agent:  "Explore",
				Prompt: "test",
				Model:  tt.reqModel,
			})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
		})
	}
}

func TestAgent_BackgroundExecution(t *testing.T) {
	executor := newExecutor(t, "fake-model", endTurn("background result"))

	info, err := executor.RunBackground(tool.AgentExecRequest{
		Agent:       "Explore",
		Prompt:      "background task",
		Description: "bg test",
	})
	if err != nil {
		t.Fatalf("RunBackground() error: %v", err)
	}
	if info.TaskID == "" {
		t.Fatal("expected non-empty task id")
	}
	if info.AgentName != "Explore" {
		t.Errorf("expected agent name 'Explore', got %q", info.AgentName)
	}
}

func TestAgent_GetAgentConfig(t *testing.T) {
	executor := newExecutor(t, "fake-model")

	cfg, ok := executor.GetAgentConfig("Explore")
	if !ok {
		t.Fatal("expected Explore to be a known agent type")
	}
	if cfg.Name != "Explore" {
		t.Errorf("cfg.Name = %q, want Explore", cfg.Name)
	}

	if _, ok := executor.GetAgentConfig("NonExistent"); ok {
		t.Error("expected NonExistent to be unknown")
	}
}
