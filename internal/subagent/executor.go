package subagent

import (
	"context"
	"fmt"

	"github.com/yanmxa/gencode/internal/agent"
	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/core"
	"github.com/yanmxa/gencode/internal/hooks"
	"github.com/yanmxa/gencode/internal/permission"
	"github.com/yanmxa/gencode/internal/provider"
	"github.com/yanmxa/gencode/internal/tool"
)

// DefaultMaxTokens is used when the caller's RunConfig doesn't carry one.
const DefaultMaxTokens = 8192

// Executor implements tool.AgentExecutor on top of Manager, resolving an
// agent type's configuration from an agent.Registry (AGENT.md/built-in
// definitions) and translating it into a SpawnRequest. This is what
// replaces internal/agent.Executor/ExecutorAdapter as the Task tool's live
// dispatch target.
type Executor struct {
	registry      *agent.Registry
	manager       *Manager
	provider      provider.LLMProvider
	cwd           string
	parentModelID string
	permission    permission.Checker
	hooks         *hooks.Engine
}

var _ tool.AgentExecutor = (*Executor)(nil)

// NewExecutor builds an Executor. registry resolves agent-type config
// (falls back to agent.DefaultRegistry when nil); manager owns the actual
// running handles.
func NewExecutor(registry *agent.Registry, manager *Manager, llmProvider provider.LLMProvider, cwd, parentModelID string, checker permission.Checker, hookEngine *hooks.Engine) *Executor {
	if registry == nil {
		registry = agent.DefaultRegistry
	}
	return &Executor{
		registry:      registry,
		manager:       manager,
		provider:      llmProvider,
		cwd:           cwd,
		parentModelID: parentModelID,
		permission:    checker,
		hooks:         hookEngine,
	}
}

// Run executes an agent in the foreground and blocks until it terminates.
func (e *Executor) Run(ctx context.Context, req tool.AgentExecRequest) (*tool.AgentExecResult, error) {
	spawnReq, err := e.buildSpawnRequest(req)
	if err != nil {
		return nil, err
	}

	h, err := e.manager.Spawn(ctx, spawnReq)
	if err != nil {
		return nil, err
	}

	e.manager.Wait([]string{h.ID}, 0)

	status := h.Status()
	result := &tool.AgentExecResult{
		AgentName: req.Agent,
		Success:   status == Completed,
		Content:   h.Summary(),
		Error:     h.Error(),
	}
	if h.lastResult != nil {
		result.TurnCount = h.lastResult.Turns
		result.TotalTokens = h.lastResult.Tokens
	}
	return result, nil
}

// RunBackground spawns an agent and returns immediately with its handle id.
func (e *Executor) RunBackground(req tool.AgentExecRequest) (tool.AgentTaskInfo, error) {
	spawnReq, err := e.buildSpawnRequest(req)
	if err != nil {
		return tool.AgentTaskInfo{}, err
	}

	h, err := e.manager.Spawn(context.Background(), spawnReq)
	if err != nil {
		return tool.AgentTaskInfo{}, err
	}

	return tool.AgentTaskInfo{TaskID: h.ID, AgentName: req.Agent}, nil
}

// GetAgentConfig surfaces a registered agent type's display config.
func (e *Executor) GetAgentConfig(agentType string) (tool.AgentConfigInfo, bool) {
	cfg, ok := e.registry.Get(agentType)
	if !ok {
		return tool.AgentConfigInfo{}, false
	}
	return tool.AgentConfigInfo{
		Name:           cfg.Name,
		Description:    cfg.Description,
		PermissionMode: string(cfg.PermissionMode),
		Tools:          cfg.Tools.Allow,
	}, true
}

// GetParentModelID returns the parent conversation's model ID.
func (e *Executor) GetParentModelID() string {
	return e.parentModelID
}

func (e *Executor) buildSpawnRequest(req tool.AgentExecRequest) (SpawnRequest, error) {
	cfg, ok := e.registry.Get(req.Agent)
	if !ok {
		return SpawnRequest{}, fmt.Errorf("subagent: unknown agent type %q", req.Agent)
	}

	model := firstNonEmptyStr(req.Model, resolveModelAlias(cfg.Model), e.parentModelID)
	maxSteps := req.MaxTurns
	if maxSteps == 0 {
		maxSteps = cfg.MaxTurns
	}
	if maxSteps == 0 {
		maxSteps = agent.DefaultMaxTurns
	}

	defaults := RoleDefaults{
		Role:                 cfg.Name,
		SystemPromptOverride: cfg.GetSystemPrompt(),
		Model:                model,
		MaxSteps:             maxSteps,
		ReadOnly:             cfg.PermissionMode == agent.PermissionPlan,
	}
	switch cfg.Tools.Mode {
	case agent.ToolAccessAllowlist:
		defaults.AllowTools = cfg.Tools.Allow
	case agent.ToolAccessDenylist:
		defaults.DisallowTools = cfg.Tools.Deny
	}

	cwd := req.Cwd
	if cwd == "" {
		cwd = e.cwd
	}

	// Subagents never prompt interactively (there's no UI loop watching a
	// spawned child); PermissionMode instead gates which tools the role
	// can see at all, via defaults.ReadOnly/AllowTools/DisallowTools above.
	checker := e.permission
	if checker == nil {
		if cfg.PermissionMode == agent.PermissionPlan {
			checker = permission.ReadOnly()
		} else {
			checker = permission.PermitAll()
		}
	}

	return SpawnRequest{
		Role:       cfg.Name,
		Message:    req.Prompt,
		Defaults:   defaults,
		Client:     &client.Client{Provider: e.provider, Model: model, MaxTokens: DefaultMaxTokens},
		Permission: checker,
		Hooks:      e.hooks,
		Cwd:        cwd,
		RunConfig:  core.RunConfig{},
	}, nil
}

// resolveModelAlias returns "" for an empty model or "inherit", so
// firstNonEmptyStr falls through to the parent's model. Any other value,
// including an alias such as "opus", is returned unchanged.
func resolveModelAlias(model string) string {
	if model == "" || model == "inherit" {
		return ""
	}
	return model
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
