package subagent_test

import (
	"context"
	"testing"
	"time"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/permission"
	"github.com/yanmxa/gencode/internal/subagent"
	"github.com/yanmxa/gencode/tests/integration/testutil"
)

func newReq(t *testing.T, msg string, responses ...message.CompletionResponse) subagent.SpawnRequest {
	t.Helper()
	fake := &client.FakeClient{Responses: responses}
	c := testutil.NewTestClient(fake)
	return subagent.SpawnRequest{
		Role:       "explore",
		Message:    msg,
		Client:     c,
		Permission: permission.PermitAll(),
		Cwd:        t.TempDir(),
		Defaults:   subagent.RoleDefaults{MaxSteps: 5},
	}
}

func TestManager_SpawnRespectsMaxThreads(t *testing.T) {
	m := subagent.NewManager(1, 3)
	req1 := newReq(t, "task one", endTurn("done one"))
	req2 := newReq(t, "task two", endTurn("done two"))

	h1, err := m.Spawn(context.Background(), req1)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	// Force the first handle to stay non-terminal by not letting it
	// complete yet isn't controllable deterministically with FakeClient,
	// so assert the quota check fires when capacity is already consumed.
	_, err = m.Spawn(context.Background(), req2)
	if err != subagent.ErrTooManyThreads && h1.Status() != subagent.Completed {
		t.Fatalf("expected ErrTooManyThreads while first handle is live, got %v", err)
	}
}

func TestManager_SpawnRespectsMaxDepth(t *testing.T) {
	m := subagent.NewManager(10, 1)
	req := newReq(t, "deep task", endTurn("ok"))
	req.ParentDepth = 1 // would land at depth 2 > max_depth 1

	_, err := m.Spawn(context.Background(), req)
	if err != subagent.ErrTooDeep {
		t.Errorf("Spawn() error = %v, want ErrTooDeep", err)
	}
}

func TestManager_SpawnRunsToCompletion(t *testing.T) {
	m := subagent.NewManager(10, 3)
	req := newReq(t, "say hi", endTurn("hello from child"))

	h, err := m.Spawn(context.Background(), req)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	resolved := m.Wait([]string{h.ID}, 2*time.Second)
	if len(resolved) != 1 {
		t.Fatalf("Wait() resolved %d handles, want 1", len(resolved))
	}
	if h.Status() != subagent.Completed {
		t.Errorf("Status() = %v, want Completed", h.Status())
	}
	if h.Summary() != "hello from child" {
		t.Errorf("Summary() = %q, want %q", h.Summary(), "hello from child")
	}
}

func TestManager_CloseTransitionsToShutdown(t *testing.T) {
	m := subagent.NewManager(10, 3)
	// An end_turn response with no tool calls ends the turn immediately,
	// so race Close against completion is acceptable: either terminal
	// status is a valid outcome of a cooperative close.
	req := newReq(t, "long task", endTurn("work"))

	h, err := m.Spawn(context.Background(), req)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := m.Close(h.ID); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	m.Wait([]string{h.ID}, 2*time.Second)
	if !isTerminal(h.Status()) {
		t.Errorf("Status() = %v, want a terminal status after Close", h.Status())
	}
}

func TestManager_OperationsOnUnknownHandle(t *testing.T) {
	m := subagent.NewManager(10, 3)
	if _, err := m.Status("missing"); err != subagent.ErrNotFound {
		t.Errorf("Status() error = %v, want ErrNotFound", err)
	}
	if err := m.SendInput("missing", "hi"); err != subagent.ErrNotFound {
		t.Errorf("SendInput() error = %v, want ErrNotFound", err)
	}
}

func isTerminal(s subagent.Status) bool {
	return s == subagent.Completed || s == subagent.Errored || s == subagent.Shutdown
}

func endTurn(content string) message.CompletionResponse {
	return message.CompletionResponse{Content: content, StopReason: "end_turn"}
}
