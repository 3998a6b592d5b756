package tool

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yanmxa/gencode/internal/tool/ui"
)

// DeferredState is a registered tool's position in the deferred-expansion
// state machine. A growing tool surface hides its rarely-reached-for tail
// from the provider's tool list (yes_hidden) until something dispatches
// it directly by name or finds it through ToolSearch, at which point it
// flips to yes_expanded for the rest of the process — a one-way
// transition; it never flips back to hidden.
type DeferredState string

const (
	DeferredNo       DeferredState = "no"
	DeferredHidden   DeferredState = "yes_hidden"
	DeferredExpanded DeferredState = "yes_expanded"
)

// DeferredThreshold is the registered-tool count past which auxiliary
// tools (see auxiliaryTools) default to hidden instead of always-visible.
const DeferredThreshold = 15

// auxiliaryTools are deferred-expansion candidates: maintenance and
// bookkeeping tools an agent reaches for far less often in a given turn
// than Read/Edit/Bash/Grep, so they're the ones worth hiding once the
// registry's surface grows past DeferredThreshold.
var auxiliaryTools = map[string]bool{
	"TodoCreate":      true,
	"TodoGet":         true,
	"TodoList":        true,
	"TodoUpdate":      true,
	"TaskOutput":      true,
	"TaskStop":        true,
	"KillShell":       true,
	"AskUserQuestion": true,
}

// ToolDescriptor is a registered tool's identity independent of its
// Execute implementation — what visible_tools and ToolSearch report.
type ToolDescriptor struct {
	Name        string
	Description string
	Permission  PermissionClass
	Deferred    DeferredState
}

type registryEntry struct {
	tool     Tool
	deferred DeferredState
}

// DeferredPolicy controls whether VisibleTools includes yes_hidden
// entries. ToolSearch passes IncludeHidden to search the full catalog;
// the provider-facing tool list passes OmitHidden.
type DeferredPolicy int

const (
	OmitHidden DeferredPolicy = iota
	IncludeHidden
)

// Registry manages tool registration, dispatch, and deferred-expansion
// state. Reads (visible_tools, once per turn) vastly outnumber writes
// (Register at startup, mark_expanded on a hidden tool's first
// successful dispatch), so the hot read path loads an atomic snapshot
// rather than taking the RWMutex; the mutex guards the write side only.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*registryEntry
	snapshot atomic.Pointer[[]ToolDescriptor]
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]*registryEntry)}
	r.storeSnapshotLocked()
	return r
}

// Register adds a tool to the registry. Re-registering an existing name
// (tests swap in fakes) keeps that name's current deferred state.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(t.Name())
	deferred := DeferredNo
	if existing, ok := r.tools[key]; ok {
		deferred = existing.deferred
	}
	r.tools[key] = &registryEntry{tool: t, deferred: deferred}
	r.applyDeferredPolicyLocked()
	r.storeSnapshotLocked()
}

// applyDeferredPolicyLocked hides auxiliary tools once the registry's
// surface exceeds DeferredThreshold. Already-expanded tools are left
// alone — deferred state only ever moves no -> hidden (here) or
// hidden -> expanded (MarkExpanded), never back.
func (r *Registry) applyDeferredPolicyLocked() {
	if len(r.tools) <= DeferredThreshold {
		return
	}
	for name, e := range r.tools {
		if e.deferred == DeferredNo && auxiliaryTools[e.tool.Name()] {
			r.tools[name].deferred = DeferredHidden
		}
	}
}

// storeSnapshotLocked rebuilds the published descriptor list. Must be
// called with mu held.
func (r *Registry) storeSnapshotLocked() {
	list := make([]ToolDescriptor, 0, len(r.tools))
	for _, e := range r.tools {
		list = append(list, ToolDescriptor{
			Name:        e.tool.Name(),
			Description: e.tool.Description(),
			Permission:  permissionClassOf(e.tool),
			Deferred:    e.deferred,
		})
	}
	r.snapshot.Store(&list)
}

func permissionClassOf(t Tool) PermissionClass {
	if pat, ok := t.(PermissionAwareTool); ok && pat.RequiresPermission() {
		return NeedsApproval
	}
	return ReadOnly
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// List returns all registered tool names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for _, e := range r.tools {
		names = append(names, e.tool.Name())
	}
	return names
}

// VisibleTools returns descriptors passing filter (nil = all) under the
// given deferred policy. It reads the latest published snapshot rather
// than taking mu, so it never blocks behind a concurrent Register or
// MarkExpanded.
func (r *Registry) VisibleTools(filter func(name string) bool, policy DeferredPolicy) []ToolDescriptor {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(*snap))
	for _, d := range *snap {
		if policy == OmitHidden && d.Deferred == DeferredHidden {
			continue
		}
		if filter != nil && !filter(d.Name) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IsHidden reports whether name is currently deferred-hidden: registered
// but omitted from the provider-facing tool list until found via
// ToolSearch or dispatched directly. Names the registry doesn't track
// (e.g. MCP-adapted tools) report false.
func (r *Registry) IsHidden(name string) bool {
	snap := r.snapshot.Load()
	if snap == nil {
		return false
	}
	for _, d := range *snap {
		if strings.EqualFold(d.Name, name) {
			return d.Deferred == DeferredHidden
		}
	}
	return false
}

// MarkExpanded flips a yes_hidden tool to yes_expanded. One-way: calling
// it on a tool that is "no" or already "yes_expanded" is a no-op.
func (r *Registry) MarkExpanded(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tools[strings.ToLower(name)]
	if !ok || e.deferred != DeferredHidden {
		return
	}
	e.deferred = DeferredExpanded
	r.storeSnapshotLocked()
}

// Execute runs a tool by name: resolve, validate the parameters against
// its registered schema, dispatch, and — on a hidden tool's first
// successful dispatch — flip it to expanded.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, cwd string) ui.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return ui.NewErrorResult(name, "unknown tool: "+name)
	}

	if err := ValidateInput(t.Name(), params); err != nil {
		return ui.NewErrorResult(t.Name(), "invalid input: "+err.Error())
	}

	result := t.Execute(ctx, params, cwd)
	if result.Success {
		r.MarkExpanded(t.Name())
	}
	return result
}

// DefaultRegistry is the global default tool registry
var DefaultRegistry = NewRegistry()

// Register adds a tool to the default registry
func Register(tool Tool) {
	DefaultRegistry.Register(tool)
}

// Get retrieves a tool from the default registry
func Get(name string) (Tool, bool) {
	return DefaultRegistry.Get(name)
}

// Execute runs a tool from the default registry
func Execute(ctx context.Context, name string, params map[string]any, cwd string) ui.ToolResult {
	return DefaultRegistry.Execute(ctx, name, params, cwd)
}
