package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/yanmxa/gencode/internal/tool/ui"
)

type stubTool struct{ name string }

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool for testing" }
func (s *stubTool) Icon() string        { return "x" }
func (s *stubTool) Execute(_ context.Context, _ map[string]any, _ string) ui.ToolResult {
	return ui.NewSuccessResult(s.name, "x", "", 0, 0, 0, 0)
}

func TestDeferredExpansion_HidesAuxiliaryPastThreshold(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < DeferredThreshold; i++ {
		r.Register(&stubTool{name: fmt.Sprintf("Core%d", i)})
	}
	r.Register(&stubTool{name: "TodoCreate"})

	if !r.IsHidden("TodoCreate") {
		t.Fatal("expected TodoCreate to be deferred-hidden once the registry passes the threshold")
	}

	for _, d := range r.VisibleTools(nil, OmitHidden) {
		if d.Name == "TodoCreate" {
			t.Fatal("OmitHidden policy should exclude TodoCreate from the request tool list")
		}
	}

	found := false
	for _, d := range r.VisibleTools(nil, IncludeHidden) {
		if d.Name == "TodoCreate" {
			found = true
		}
	}
	if !found {
		t.Fatal("IncludeHidden policy (ToolSearch's view) should still list TodoCreate")
	}
}

func TestDeferredExpansion_OneWay(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < DeferredThreshold; i++ {
		r.Register(&stubTool{name: fmt.Sprintf("Core%d", i)})
	}
	r.Register(&stubTool{name: "KillShell"})
	if !r.IsHidden("KillShell") {
		t.Fatal("expected KillShell hidden before its first dispatch")
	}

	result := r.Execute(context.Background(), "KillShell", map[string]any{}, ".")
	if !result.Success {
		t.Fatalf("expected dispatch success, got error: %s", result.Error)
	}
	if r.IsHidden("KillShell") {
		t.Fatal("first successful dispatch should flip hidden -> expanded")
	}

	// Re-registration (what tests and MCP reconnects do) must not revert
	// an already-expanded tool back to hidden.
	r.Register(&stubTool{name: "KillShell"})
	if r.IsHidden("KillShell") {
		t.Fatal("deferred expansion is one-way: re-registration must not re-hide an expanded tool")
	}
}

func TestRegistryExecute_UnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), "Nonexistent", nil, ".")
	if result.Success {
		t.Fatal("expected failure for an unregistered tool name")
	}
}

func TestValidateInput_RejectsMissingRequiredField(t *testing.T) {
	if err := ValidateInput("Read", map[string]any{}); err == nil {
		t.Fatal("expected a validation error for a Read call missing file_path")
	}
}

func TestValidateInput_AcceptsWellFormedInput(t *testing.T) {
	if err := ValidateInput("Read", map[string]any{"file_path": "main.go"}); err != nil {
		t.Fatalf("expected well-formed input to pass validation, got: %v", err)
	}
}

func TestValidateInput_UnknownToolPassesThrough(t *testing.T) {
	if err := ValidateInput("SomeMCPTool", map[string]any{"anything": true}); err != nil {
		t.Fatalf("tools without a known schema should not be validated, got: %v", err)
	}
}
