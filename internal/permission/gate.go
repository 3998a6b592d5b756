package permission

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yanmxa/gencode/internal/tool"
)

// TrustMode controls how aggressively the gate auto-approves mutating tool calls.
type TrustMode int

const (
	Off TrustMode = iota
	Limited
	AutoEdit
	Full
)

// toolClass distinguishes the three columns of the decision table beyond
// deny/allow lists: ReadOnly tools never need approval, editing tools are
// the file-mutating core (write/edit/apply_patch/multi_edit), everything
// else mutating (Bash, Task, Skill, ...) is "other".
type toolClass int

const (
	classReadOnly toolClass = iota
	classEditing
	classOther
)

// editingTools names the tools that count as "Editing tool" in the
// decision table (write, edit, apply_patch, multi_edit, file-mutate fs ops).
var editingTools = map[string]bool{
	"Write":      true,
	"Edit":       true,
	"MultiEdit":  true,
	"ApplyPatch": true,
}

func classify(name string) toolClass {
	if tool.Classify(name) == tool.ReadOnly {
		return classReadOnly
	}
	if editingTools[name] {
		return classEditing
	}
	return classOther
}

// PathExtractor lets a tool declare which filesystem paths its arguments
// touch, for allow_paths/deny_paths matching. Tools that don't implement it
// are treated as touching the project root.
type PathExtractor interface {
	TouchedPaths(params map[string]any) []string
}

// TrustConfig carries the per-session trust mode plus allow/deny lists.
type TrustConfig struct {
	Mode              TrustMode
	AllowTools        []string
	DenyTools         []string
	AllowPaths        []string
	DenyPaths         []string
	AlwaysAsk         []string
	RememberApprovals bool
	ProjectRoot       string
}

// Gate implements the PermissionGate decision table (spec §4.3): for each
// mutating call, decide Allow/Ask/Deny from trust mode plus allow/deny lists.
// Session-scoped remembered approvals are cached by (tool, normalized paths).
type Gate struct {
	mu         sync.Mutex
	remembered map[string]Decision
}

// NewGate returns an empty Gate with no remembered approvals.
func NewGate() *Gate {
	return &Gate{remembered: map[string]Decision{}}
}

// Decide resolves a single call against cfg, following the precedence:
// deny lists > always_ask > remembered approval > ReadOnly > allow lists >
// trust-mode column for the call's class.
func (g *Gate) Decide(name string, params map[string]any, cfg TrustConfig) Decision {
	paths := touchedPaths(name, params, cfg.ProjectRoot)

	if matchesAny(name, cfg.DenyTools) || pathsMatchAny(paths, cfg.DenyPaths) {
		return Reject
	}
	if matchesAny(name, cfg.AlwaysAsk) {
		return Prompt
	}

	key := rememberKey(name, paths)
	if cfg.RememberApprovals {
		if d, ok := g.lookup(key); ok {
			return d
		}
	}

	if classify(name) == classReadOnly {
		return Permit
	}

	allowListed := matchesAny(name, cfg.AllowTools) && pathsSubsetOf(paths, cfg.AllowPaths)

	var d Decision
	switch cfg.Mode {
	case Off:
		// Allow-list has no effect in Off mode; every mutating class asks.
		d = Prompt
	case Limited:
		if allowListed {
			d = Permit
		} else {
			d = Prompt
		}
	case AutoEdit:
		if allowListed || classify(name) == classEditing {
			d = Permit
		} else {
			d = Prompt
		}
	case Full:
		d = Permit
	}

	if d == Permit && cfg.RememberApprovals {
		g.Remember(key, d)
	}
	return d
}

// Remember caches a decision for the session, keyed by the same
// (tool, normalized paths) key Decide computes internally. Call this after
// the caller's own interactive approval flow grants a Prompt.
func (g *Gate) Remember(key string, d Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remembered[key] = d
}

// RememberKey exposes the cache key for a call, so callers can remember an
// interactively-granted approval via Remember.
func RememberKey(name string, params map[string]any, projectRoot string) string {
	return rememberKey(name, touchedPaths(name, params, projectRoot))
}

func (g *Gate) lookup(key string) (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.remembered[key]
	return d, ok
}

func rememberKey(name string, paths []string) string {
	return name + "|" + strings.Join(paths, ":")
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if matched, _ := doublestar.Match(pat, name); matched {
			return true
		}
	}
	return false
}

// pathsMatchAny reports whether any touched path matches any deny pattern.
func pathsMatchAny(paths []string, patterns []string) bool {
	for _, p := range paths {
		if pathMatchesAny(p, patterns) {
			return true
		}
	}
	return false
}

// pathsSubsetOf reports whether every touched path matches at least one
// allow pattern. An empty pattern list is treated as unrestricted: the
// allow_tools match alone is sufficient (spec leaves this combination
// undocumented; see DESIGN.md Open Question decisions).
func pathsSubsetOf(paths []string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range paths {
		if !pathMatchesAny(p, patterns) {
			return false
		}
	}
	return true
}

func pathMatchesAny(p string, patterns []string) bool {
	for _, pat := range patterns {
		if matched, _ := doublestar.Match(pat, p); matched {
			return true
		}
		if strings.HasPrefix(p, strings.TrimSuffix(pat, "/")) {
			return true
		}
	}
	return false
}

// touchedPaths resolves the paths a call touches via the tool's
// PathExtractor, falling back to common "file_path"/"path" argument names,
// and finally to the project root for tools that declare neither.
func touchedPaths(name string, params map[string]any, root string) []string {
	if t, ok := tool.Get(name); ok {
		if pe, ok := t.(PathExtractor); ok {
			if ps := pe.TouchedPaths(params); len(ps) > 0 {
				return canonicalizeAll(ps, root)
			}
		}
	}
	for _, key := range []string{"file_path", "path"} {
		if v, ok := params[key].(string); ok && v != "" {
			return canonicalizeAll([]string{v}, root)
		}
	}
	return []string{root}
}

func canonicalizeAll(paths []string, root string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = canonicalize(p, root)
	}
	return out
}

func canonicalize(p, root string) string {
	if p == "" {
		return root
	}
	if !filepath.IsAbs(p) && root != "" {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p)
}

// GateChecker adapts Gate to the Checker interface core.Loop consumes,
// binding a fixed TrustConfig to every Check call.
type GateChecker struct {
	Gate   *Gate
	Config TrustConfig
}

// NewGateChecker builds a Checker backed by a fresh Gate.
func NewGateChecker(cfg TrustConfig) *GateChecker {
	return &GateChecker{Gate: NewGate(), Config: cfg}
}

func (c *GateChecker) Check(name string, params map[string]any) Decision {
	return c.Gate.Decide(name, params, c.Config)
}
