// Package core provides a reusable agent loop that manages conversation state
// and orchestrates LLM interactions. It serves as the runtime for all agent types:
// subagents, the TUI, and custom agents.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/core/contextmgr"
	"github.com/yanmxa/gencode/internal/hooks"
	"github.com/yanmxa/gencode/internal/log"
	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/permission"
	"github.com/yanmxa/gencode/internal/system"
	"github.com/yanmxa/gencode/internal/tool"
	"github.com/yanmxa/gencode/internal/tool/ui"
)

const defaultMaxTurns = 50

// RunOptions controls the synchronous Run() loop.
type RunOptions struct {
	MaxTurns    int
	OnResponse  func(resp *message.CompletionResponse)
	OnToolStart func(tc message.ToolCall) bool
	OnToolDone  func(tc message.ToolCall, result message.ToolResult)

	// Config tunes retry, fan-out, and routing behavior. Zero value
	// resolves to defaults that reproduce the loop's original behavior
	// for callers that never touch it.
	Config RunConfig
}

// Result is returned by Loop.Run() upon completion.
type Result struct {
	Content    string
	Messages   []message.Message
	Turns      int
	Tokens     client.TokenUsage
	StopReason string // "end_turn", "max_turns", "cancelled"
}

// --- Loop ---

// Loop is a reusable agent runtime that manages conversation state
// and orchestrates LLM interactions. It supports two execution models:
//
//	Synchronous: loop.Run(ctx, opts) — drives the full turn loop
//	Incremental: loop.Stream()/Collect()/AddResponse()/FilterToolCalls()/ExecTool() — for event-driven callers
type Loop struct {
	System     *system.System
	Client     *client.Client
	Tool       *tool.Set
	Permission permission.Checker
	Hooks      *hooks.Engine

	// Context, when set, prepares the request each step: micro-compacting
	// oversized messages and running full compaction once usage crosses
	// the configured threshold. Nil disables both.
	Context *contextmgr.Manager

	// Events, when set, receives the ordered turn event stream. Sends
	// block on backpressure (respecting ctx), matching a bounded channel.
	Events chan<- Event

	// State (managed by the loop)
	messages []message.Message
}

// --- High-level: synchronous agent loop ---

// Run drives the full conversation loop: stream -> response -> tools -> repeat.
// Stops on end_turn, max turns, or context cancellation.
func (l *Loop) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	cfg := opts.Config.withDefaults()

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return l.buildResult("cancelled", turn), ctx.Err()
		default:
		}

		l.prepareContext(ctx)

		if cfg.RoutingEnabled && cfg.Routing != nil {
			if model, ok := l.route(ctx, cfg); ok {
				l.Client.Model = model
			}
		}

		resp, err := l.streamWithRetry(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return l.buildResult("cancelled", turn), ctx.Err()
			}
			return nil, err
		}

		calls := l.AddResponse(resp)
		if opts.OnResponse != nil {
			opts.OnResponse(resp)
		}
		usage := resp.Usage
		l.emit(ctx, Event{Type: EventUsage, Usage: &usage})

		if len(calls) == 0 {
			r := l.buildResult("end_turn", turn+1)
			r.Content = resp.Content
			l.emit(ctx, Event{Type: EventTurnComplete})
			return r, nil
		}

		allowed, blocked := l.FilterToolCalls(ctx, calls)
		for _, br := range blocked {
			l.AddToolResult(br)
			l.emit(ctx, Event{Type: EventToolResult, ToolResult: &br})
		}

		if err := l.dispatchTools(ctx, allowed, opts, cfg); err != nil {
			return l.buildResult("cancelled", turn+1), err
		}
	}

	return l.buildResult("max_turns", maxTurns), nil
}

// route classifies the most recent user message into a routing tier and
// resolves it to a model name via cfg.Models. Returns ok=false when no
// model is configured for the resolved tier (the caller keeps its model).
func (l *Loop) route(ctx context.Context, cfg RunConfig) (string, bool) {
	text := l.lastUserContent()
	if text == "" {
		return "", false
	}
	tier, err := cfg.Routing.Classify(ctx, text)
	if err != nil {
		return "", false
	}
	model, ok := cfg.Models[tier]
	if !ok || model == "" {
		return "", false
	}
	l.emit(ctx, Event{Type: EventRoutedModel, Model: model, Reason: string(tier)})
	return model, true
}

func (l *Loop) lastUserContent() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == message.RoleUser && l.messages[i].ToolResult == nil {
			return l.messages[i].Content
		}
	}
	return ""
}

// prepareContext asks the ContextManager to micro-compact oversized
// messages and, if usage has crossed the configured threshold, run full
// compaction. No-op when l.Context is nil.
func (l *Loop) prepareContext(ctx context.Context) {
	if l.Context == nil {
		return
	}
	l.messages = l.Context.MicroCompact(l.messages)

	tokens := l.Tokens()
	if !l.Context.NeedsFullCompaction(tokens.InputTokens) {
		return
	}

	newMsgs, _, err := l.Context.FullCompact(ctx, l.messages, "")
	if err != nil {
		log.Logger().Debug("full compaction failed", zap.Error(err))
		return
	}
	l.messages = newMsgs
	l.emit(ctx, Event{Type: EventCompactContext})
}

// streamWithRetry opens a ProviderStream and collects its response,
// retrying transient failures with exponential backoff bounded by
// cfg.MaxRetries. A rate-limit failure attempts credential rotation as a
// side channel (it does not consume a retry) before the next attempt.
func (l *Loop) streamWithRetry(ctx context.Context, cfg RunConfig) (*message.CompletionResponse, error) {
	backoff := cfg.RetryInitial
	attempt := 0

	for {
		resp, err := Collect(ctx, l.Stream(ctx))
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) || attempt >= cfg.MaxRetries {
			return nil, err
		}

		if cfg.Credentials != nil && isRateLimited(err) {
			_, _, _ = cfg.Credentials.RotateOnRateLimit(ctx, l.Client.Name())
		}

		attempt++
		l.emit(ctx, Event{Type: EventRetrying, Attempt: attempt, Err: err})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff *= 2
		if backoff > cfg.RetryMax {
			backoff = cfg.RetryMax
		}
	}
}

// emit sends an event if a channel is wired, blocking for backpressure
// but honoring cancellation. No-op when l.Events is nil.
func (l *Loop) emit(ctx context.Context, ev Event) {
	if l.Events == nil {
		return
	}
	select {
	case l.Events <- ev:
	case <-ctx.Done():
	}
}

func (l *Loop) buildResult(reason string, turns int) *Result {
	return &Result{
		Content:    l.lastAssistantContent(),
		Messages:   l.messages,
		Turns:      turns,
		Tokens:     l.Client.Tokens(),
		StopReason: reason,
	}
}

// lastAssistantContent returns the content of the most recent assistant message.
func (l *Loop) lastAssistantContent() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		msg := l.messages[i]
		if msg.Role == message.RoleAssistant && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// --- Low-level: incremental control (for TUI / event-driven callers) ---

// Stream starts an LLM stream and returns the chunk channel.
// It builds the system prompt and tool set from the loop's fields.
func (l *Loop) Stream(ctx context.Context) <-chan message.StreamChunk {
	sysPrompt := l.System.Prompt()
	tools := l.Tool.Tools()
	return l.Client.Stream(ctx, l.messages, tools, sysPrompt)
}

// Collect synchronously drains a stream into a CompletionResponse.
func Collect(ctx context.Context, ch <-chan message.StreamChunk) (*message.CompletionResponse, error) {
	var response message.CompletionResponse

	for chunk := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch chunk.Type {
		case message.ChunkTypeText:
			response.Content += chunk.Text
		case message.ChunkTypeThinking:
			response.Thinking += chunk.Text
		case message.ChunkTypeToolStart:
			response.ToolCalls = append(response.ToolCalls, message.ToolCall{
				ID:   chunk.ToolID,
				Name: chunk.ToolName,
			})
		case message.ChunkTypeToolInput:
			if len(response.ToolCalls) > 0 {
				idx := len(response.ToolCalls) - 1
				response.ToolCalls[idx].Input += chunk.Text
			}
		case message.ChunkTypeDone:
			if chunk.Response != nil {
				return chunk.Response, nil
			}
			return &response, nil
		case message.ChunkTypeError:
			return nil, chunk.Error
		}
	}

	return &response, nil
}

// --- Message management ---

// Messages returns the current conversation messages.
func (l *Loop) Messages() []message.Message {
	return l.messages
}

// SetMessages replaces the conversation messages.
func (l *Loop) SetMessages(msgs []message.Message) {
	l.messages = msgs
}

// Tokens returns the accumulated token usage from the client.
func (l *Loop) Tokens() client.TokenUsage {
	if l.Client == nil {
		return client.TokenUsage{}
	}
	return l.Client.Tokens()
}

// AddUser appends a user message to the conversation.
func (l *Loop) AddUser(content string, images []message.ImageData) {
	l.messages = append(l.messages, message.UserMessage(content, images))
}

// AddResponse processes a CompletionResponse: appends the assistant message
// to the conversation, updates token counters, and returns the tool calls.
func (l *Loop) AddResponse(resp *message.CompletionResponse) []message.ToolCall {
	if l.Client != nil {
		l.Client.AddUsage(resp.Usage)
	}

	l.messages = append(l.messages, message.AssistantMessage(resp.Content, resp.Thinking, resp.ToolCalls))

	return resp.ToolCalls
}

// AddToolResult appends a tool result message to the conversation.
func (l *Loop) AddToolResult(r message.ToolResult) {
	l.messages = append(l.messages, message.ToolResultMessage(r))
}

// --- Tool dispatch ---

// FilterToolCalls runs PreToolUse hooks, returning allowed tool calls and blocked results.
func (l *Loop) FilterToolCalls(ctx context.Context, calls []message.ToolCall) (
	allowed []message.ToolCall, blocked []message.ToolResult,
) {
	if l.Hooks == nil {
		return calls, nil
	}

	for _, tc := range calls {
		params, _ := message.ParseToolInput(tc.Input)
		outcome := l.Hooks.Execute(ctx, hooks.PreToolUse, hooks.HookInput{
			ToolName:  tc.Name,
			ToolInput: params,
			ToolUseID: tc.ID,
		})

		if outcome.ShouldBlock {
			blocked = append(blocked, *message.ErrorResult(tc, "Blocked by hook: "+outcome.BlockReason))
			continue
		}

		if outcome.UpdatedInput != nil {
			if updated, err := json.Marshal(outcome.UpdatedInput); err == nil {
				tc.Input = string(updated)
			}
		}
		allowed = append(allowed, tc)
	}
	return allowed, blocked
}

// dispatchTools runs one assistant step's allowed tool calls: ReadOnly
// calls are batched and run with bounded concurrency; any NeedsApproval
// call is a barrier — all pending ReadOnly calls join first, and nothing
// else starts until the approval call completes. Results are appended to
// the thread in model-emitted order regardless of completion order.
func (l *Loop) dispatchTools(ctx context.Context, calls []message.ToolCall, opts RunOptions, cfg RunConfig) error {
	results := make([]*message.ToolResult, len(calls))
	var roBatch []int

	flush := func() error {
		if len(roBatch) == 0 {
			return nil
		}
		if err := l.execReadOnlyBatch(ctx, calls, roBatch, results, cfg); err != nil {
			return err
		}
		roBatch = nil
		return nil
	}

	for i, tc := range calls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if tool.Classify(tc.Name) == tool.ReadOnly {
			if opts.OnToolStart != nil && !opts.OnToolStart(tc) {
				continue
			}
			roBatch = append(roBatch, i)
			continue
		}

		if err := flush(); err != nil {
			return err
		}
		if opts.OnToolStart != nil && !opts.OnToolStart(tc) {
			continue
		}
		results[i] = l.execMutating(ctx, tc, cfg)
	}
	if err := flush(); err != nil {
		return err
	}

	for i, tc := range calls {
		r := results[i]
		if r == nil {
			continue // skipped by OnToolStart
		}
		l.AddToolResult(*r)
		l.emit(ctx, Event{Type: EventToolResult, ToolResult: r})
		if opts.OnToolDone != nil {
			opts.OnToolDone(tc, *r)
		}
	}
	return nil
}

// execReadOnlyBatch runs a set of ReadOnly calls concurrently, bounded by
// cfg.ReadOnlyFanout, writing each result into its original index so the
// caller can replay them in model-emitted order.
func (l *Loop) execReadOnlyBatch(ctx context.Context, calls []message.ToolCall,
	idxs []int, results []*message.ToolResult, cfg RunConfig) error {
	if len(idxs) == 1 {
		results[idxs[0]] = l.ExecTool(ctx, calls[idxs[0]])
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.ReadOnlyFanout)

	for _, idx := range idxs {
		tc := calls[idx]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			if cfg.RateLimit != nil {
				if err := cfg.RateLimit.Wait(gctx); err != nil {
					return nil
				}
			}
			results[idx] = l.ExecTool(gctx, tc)
			return nil
		})
	}
	_ = g.Wait() // per-call failures are carried in results, not propagated
	return ctx.Err()
}

// execMutating runs one NeedsApproval call: permission check, optional
// interactive approval, then dispatch.
func (l *Loop) execMutating(ctx context.Context, tc message.ToolCall, cfg RunConfig) *message.ToolResult {
	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	decision := permission.Permit
	if l.Permission != nil {
		decision = l.Permission.Check(tc.Name, params)
	}

	switch decision {
	case permission.Reject:
		return message.ErrorResult(tc, fmt.Sprintf("Tool %s is not permitted in this mode", tc.Name))
	case permission.Prompt:
		l.emit(ctx, Event{Type: EventApprovalRequest, ToolCall: &tc})
		approved := true
		if cfg.Approval != nil {
			approved = cfg.Approval(ctx, tc, params)
		}
		l.emit(ctx, Event{Type: EventApprovalResolved, ToolCall: &tc})
		if !approved {
			return message.ErrorResult(tc, "PermissionDenied")
		}
	}

	return l.runTool(ctx, tc, params)
}

// ExecTool executes a single tool call, consulting the Permission checker.
// Rejected tools return an error result; Prompt decisions are auto-approved.
// Used directly for ReadOnly dispatch, where interactive approval never applies.
func (l *Loop) ExecTool(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	decision := permission.Permit
	if l.Permission != nil {
		decision = l.Permission.Check(tc.Name, params)
	}

	if decision == permission.Reject {
		return message.ErrorResult(tc, fmt.Sprintf("Tool %s is not permitted in this mode", tc.Name))
	}

	// Permit and Prompt both execute the tool (non-interactive callers auto-approve)
	return l.runTool(ctx, tc, params)
}

// runTool runs the actual tool execution.
func (l *Loop) runTool(ctx context.Context, tc message.ToolCall, params map[string]any) *message.ToolResult {
	cwd := ""
	if l.System != nil {
		cwd = l.System.Cwd
	}

	t, ok := tool.Get(tc.Name)
	if !ok {
		return message.ErrorResult(tc, fmt.Sprintf("Unknown tool: %s", tc.Name))
	}

	var toolResult ui.ToolResult
	if err := tool.ValidateInput(t.Name(), params); err != nil {
		toolResult = ui.NewErrorResult(t.Name(), fmt.Sprintf("invalid input: %v", err))
	} else if pat, ok := t.(tool.PermissionAwareTool); ok && pat.RequiresPermission() {
		toolResult = pat.ExecuteApproved(ctx, params, cwd)
	} else {
		toolResult = t.Execute(ctx, params, cwd)
	}

	if toolResult.Success {
		tool.DefaultRegistry.MarkExpanded(t.Name())
	}

	log.Logger().Debug("Tool executed",
		zap.String("tool", tc.Name),
		zap.Bool("success", toolResult.Success),
	)

	return &message.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    toolResult.FormatForLLM(),
		IsError:    !toolResult.Success,
	}
}

// --- Compaction ---

// Compact summarizes a conversation to reduce context window usage.
// It sends the conversation to the LLM with a compact prompt and returns
// the summary text, the original message count, and any error.
func Compact(ctx context.Context, c *client.Client,
	msgs []message.Message, focus string) (summary string, count int, err error) {
	count = len(msgs)

	conversationText := message.BuildConversationText(msgs)

	if focus != "" {
		conversationText += fmt.Sprintf("\n\n**Important**: Focus the summary on: %s", focus)
	}

	response, err := c.Complete(ctx,
		system.CompactPrompt(),
		[]message.Message{message.UserMessage(conversationText, nil)},
		2048,
	)
	if err != nil {
		return "", count, fmt.Errorf("failed to generate summary: %w", err)
	}

	return strings.TrimSpace(response.Content), count, nil
}
