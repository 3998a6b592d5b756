package subagent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanmxa/gencode/internal/core"
	"github.com/yanmxa/gencode/internal/log"
	"go.uber.org/zap"
)

const (
	defaultCloseGrace = 3 * time.Second
)

// Manager is the SubagentManager: it enforces max_threads/max_depth,
// assigns nicknames, and owns every live Handle.
type Manager struct {
	mu         sync.Mutex
	handles    map[string]*Handle
	maxThreads int
	maxDepth   int
	nicknames  *pool
}

// NewManager builds a Manager with the given concurrency and depth caps.
func NewManager(maxThreads, maxDepth int) *Manager {
	if maxThreads <= 0 {
		maxThreads = 10
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Manager{
		handles:    make(map[string]*Handle),
		maxThreads: maxThreads,
		maxDepth:   maxDepth,
		nicknames:  newPool(),
	}
}

func (m *Manager) activeNonTerminal() int {
	n := 0
	for _, h := range m.handles {
		if !h.isTerminal() {
			n++
		}
	}
	return n
}

// Spawn checks quota, builds a child core.Loop from req, and starts it on
// its own goroutine, returning a handle immediately.
func (m *Manager) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	depth := req.ParentDepth + 1

	m.mu.Lock()
	if m.activeNonTerminal() >= m.maxThreads {
		m.mu.Unlock()
		return nil, ErrTooManyThreads
	}
	if depth > m.maxDepth {
		m.mu.Unlock()
		return nil, ErrTooDeep
	}

	id := uuid.NewString()
	nickname := m.nicknames.take()
	m.mu.Unlock()

	childCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		ID:       id,
		Nickname: nickname,
		Role:     req.Role,
		Depth:    depth,
		status:   PendingInit,
		cancel:   cancel,
		inbox:    make(chan string, 8),
	}

	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()

	loop := buildChildLoop(req)
	briefing := req.Shared.Brief()
	initial := req.Message
	if briefing != "" {
		initial = briefing + "\n\n" + req.Message
	}
	loop.AddUser(initial, nil)

	h.setStatus(Running)
	go m.run(childCtx, h, loop, req)

	return h, nil
}

func buildChildLoop(req SpawnRequest) *core.Loop {
	client := req.Client
	if req.Defaults.Model != "" {
		clone := *client
		clone.Model = req.Defaults.Model
		client = &clone
	}

	return &core.Loop{
		System:     childSystem(req.Cwd, req.Defaults, client),
		Client:     client,
		Tool:       buildChildTools(req.Defaults),
		Permission: req.Permission,
		Hooks:      req.Hooks,
	}
}

// run drives one handle's child loop to completion, then blocks on its
// inbox for follow-up input (send_input) until the parent calls Close or
// the handle's context is cancelled.
func (m *Manager) run(ctx context.Context, h *Handle, loop *core.Loop, req SpawnRequest) {
	maxSteps := req.Defaults.MaxSteps
	opts := core.RunOptions{MaxTurns: maxSteps, Config: req.RunConfig}

	for {
		result, err := loop.Run(ctx, opts)

		h.mu.Lock()
		closing := h.status == Shutdown
		h.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil || closing {
				h.setStatus(Shutdown)
				return
			}
			h.mu.Lock()
			h.errMsg = err.Error()
			h.mu.Unlock()
			h.setStatus(Errored)
			log.Logger().Warn("subagent errored", zap.String("id", h.ID), zap.Error(err))
			return
		}

		h.mu.Lock()
		h.summary = result.Content
		h.lastResult = result
		alreadyClosing := h.status == Shutdown
		h.mu.Unlock()
		if alreadyClosing {
			return
		}
		h.setStatus(Completed)

		select {
		case <-ctx.Done():
			return
		case next, ok := <-h.inbox:
			if !ok {
				return
			}
			loop.AddUser(next, nil)
			h.setStatus(Running)
		}
	}
}

// SendInput delivers a follow-up user message to a Running handle.
func (m *Manager) SendInput(id, text string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	if h.isTerminal() {
		return ErrTerminal
	}
	select {
	case h.inbox <- text:
		return nil
	default:
		return classifiedError(id, ErrInboxFull)
	}
}

// Wait blocks until every listed handle reaches a terminal status, or
// timeout elapses (0 means no timeout), returning the ids that resolved.
func (m *Manager) Wait(ids []string, timeout time.Duration) []string {
	var resolved []string
	deadline := time.Now().Add(timeout)
	for _, id := range ids {
		h, err := m.get(id)
		if err != nil {
			continue
		}
		remaining := timeout
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
		}
		if h.waitFor(remaining) {
			resolved = append(resolved, id)
		}
	}
	return resolved
}

// Close requests cooperative shutdown: status flips to Shutdown and the
// handle's context is cancelled after a bounded grace window.
func (m *Manager) Close(id string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	if h.isTerminal() {
		return nil
	}

	h.setStatus(Shutdown)

	go func() {
		time.Sleep(defaultCloseGrace)
		h.cancel()
	}()
	return nil
}

// Resume transitions a Completed/Errored handle back to Running with a
// fresh task carrying the prior thread plus new_input.
func (m *Manager) Resume(ctx context.Context, id, newInput string, req SpawnRequest) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	status := h.Status()
	if status != Completed && status != Errored {
		return ErrNotTerminal
	}

	childCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.errMsg = ""
	h.mu.Unlock()

	loop := buildChildLoop(req)
	if h.lastResult != nil {
		loop.SetMessages(h.lastResult.Messages)
	}
	loop.AddUser(newInput, nil)

	h.setStatus(Running)
	go m.run(childCtx, h, loop, req)
	return nil
}

// Status returns a handle's current lifecycle state.
func (m *Manager) Status(id string) (Status, error) {
	h, err := m.get(id)
	if err != nil {
		return "", err
	}
	return h.Status(), nil
}

// SubscribeStatus returns a channel receiving every status transition for id.
func (m *Manager) SubscribeStatus(id string) (<-chan Status, error) {
	h, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return h.subscribe(), nil
}

func (m *Manager) get(id string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}
