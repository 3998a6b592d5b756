// Package subagent implements the SubagentManager: spawning, tracking,
// cancelling, and joining child agent loops underneath a parent turn.
// Each handle owns a single core.Loop running on its own task.
package subagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/core"
	"github.com/yanmxa/gencode/internal/hooks"
	"github.com/yanmxa/gencode/internal/permission"
	"github.com/yanmxa/gencode/internal/system"
	"github.com/yanmxa/gencode/internal/tool"
)

// Status is a SubagentHandle's lifecycle state.
type Status string

const (
	PendingInit Status = "PendingInit"
	Running     Status = "Running"
	Completed   Status = "Completed"
	Errored     Status = "Errored"
	Shutdown    Status = "Shutdown"
)

// ErrTooManyThreads is returned by Spawn when max_threads is already reached.
var ErrTooManyThreads = errors.New("subagent: too many concurrent threads")

// ErrTooDeep is returned by Spawn when the child's depth would exceed max_depth.
var ErrTooDeep = errors.New("subagent: max depth exceeded")

// ErrNotFound is returned by operations addressing an unknown handle id.
var ErrNotFound = errors.New("subagent: handle not found")

// ErrTerminal is returned by operations that require a non-terminal handle
// (SendInput on a Completed/Errored/Shutdown agent).
var ErrTerminal = errors.New("subagent: handle is terminal")

// ErrNotTerminal is returned by Resume on a handle that hasn't reached a
// terminal status yet.
var ErrNotTerminal = errors.New("subagent: handle is not terminal")

// ErrInboxFull is returned by SendInput when a handle's inbox is backed up.
var ErrInboxFull = errors.New("subagent: inbox full")

// SharedContext is the read-mostly bundle rendered into a text briefing and
// prepended to a spawned child's initial message.
type SharedContext struct {
	RecentChanges       []string // capped at 20 by Brief
	ActiveTodos         []string
	ConversationSummary string
	ProjectRoot         string
	MemoryExcerpt       string
}

// Brief renders the bundle into a text briefing of at most 60 lines.
func (sc SharedContext) Brief() string {
	var lines []string
	lines = append(lines, "## Shared context from parent session")

	if sc.ProjectRoot != "" {
		lines = append(lines, "Project root: "+sc.ProjectRoot)
	}
	if sc.ConversationSummary != "" {
		lines = append(lines, "Summary: "+sc.ConversationSummary)
	}

	changes := sc.RecentChanges
	if len(changes) > 20 {
		changes = changes[len(changes)-20:]
	}
	if len(changes) > 0 {
		lines = append(lines, "Recent changes:")
		for _, c := range changes {
			lines = append(lines, "- "+c)
		}
	}

	if len(sc.ActiveTodos) > 0 {
		lines = append(lines, "Active todos:")
		for _, t := range sc.ActiveTodos {
			lines = append(lines, "- "+t)
		}
	}

	if sc.MemoryExcerpt != "" {
		lines = append(lines, "Memory:", sc.MemoryExcerpt)
	}

	if len(lines) > 60 {
		lines = lines[:59]
		lines = append(lines, "... [briefing truncated]")
	}

	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// RoleDefaults layers role-specific overrides over the parent's RunConfig
// when building a child Loop (spec §4.6: "role may override system prompt,
// model, max_steps, read-only flag, allowed/disallowed tools").
type RoleDefaults struct {
	Role                 string
	SystemPromptOverride string
	Model                string
	MaxSteps             int
	ReadOnly             bool
	AllowTools           []string
	DisallowTools        []string
}

// SpawnRequest carries everything needed to spawn a child agent.
type SpawnRequest struct {
	Role        string
	Message     string
	ParentDepth int
	Shared      SharedContext
	Defaults    RoleDefaults

	// Inherited from the parent, used to build the child Loop.
	Client     *client.Client
	Permission permission.Checker
	Hooks      *hooks.Engine
	Cwd        string
	RunConfig  core.RunConfig
}

// Handle is a live or terminal subagent. Status is guarded by mu; it is
// written by the goroutine running the child loop and by Spawn, Close and
// Resume on the caller's goroutine.
type Handle struct {
	ID       string
	Nickname string
	Role     string
	Depth    int

	mu      sync.RWMutex
	status  Status
	summary string
	errMsg  string

	inbox      chan string
	cancel     context.CancelFunc
	watchers   []chan Status
	lastResult *core.Result
}

func (h *Handle) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	watchers := h.watchers
	h.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- s:
		default:
		}
	}
}

// Status returns the handle's current lifecycle state.
func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Summary returns the completion summary, if any.
func (h *Handle) Summary() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.summary
}

// Error returns the error reason for an Errored handle, if any.
func (h *Handle) Error() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.errMsg
}

func (h *Handle) isTerminal() bool {
	s := h.Status()
	return s == Completed || s == Errored || s == Shutdown
}

func (h *Handle) subscribe() <-chan Status {
	ch := make(chan Status, 8)
	h.mu.Lock()
	h.watchers = append(h.watchers, ch)
	h.mu.Unlock()
	return ch
}

func (h *Handle) waitFor(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if h.isTerminal() {
			return true
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// buildChildTools filters the full registry by the role's allow/disallow
// lists, mirroring internal/tool.Set's agent-mode filtering (allowed ∩
// ¬disallowed — both lists apply together, not as alternatives).
func buildChildTools(defaults RoleDefaults) *tool.Set {
	if defaults.ReadOnly {
		return &tool.Set{Access: &tool.AccessConfig{
			Allow: readOnlyToolNames(defaults.AllowTools),
			Deny:  defaults.DisallowTools,
		}}
	}
	return &tool.Set{Access: &tool.AccessConfig{
		Allow: defaults.AllowTools,
		Deny:  defaults.DisallowTools,
	}}
}

func readOnlyToolNames(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return []string{"Read", "Glob", "Grep", "WebFetch", "WebSearch"}
}

func childSystem(parentCwd string, defaults RoleDefaults, c *client.Client) *system.System {
	return &system.System{
		Client: c,
		Cwd:    parentCwd,
		Extra:  extraFor(defaults),
	}
}

func extraFor(defaults RoleDefaults) []string {
	if defaults.SystemPromptOverride == "" {
		return nil
	}
	return []string{defaults.SystemPromptOverride}
}

func classifiedError(id string, err error) error {
	return fmt.Errorf("subagent %s: %w", id, err)
}
