package orchestrator

import (
	"context"
	"sync"

	"github.com/coder/acp-go-sdk"

	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/protocol"
	"github.com/valksor/go-ablauf/internal/tracker"
	"github.com/valksor/go-ablauf/internal/workflow"
)

// agentRuntime lazily owns the agent process for one task run. The
// process starts on the first session request, so a run whose steps all
// skip never spawns it. All steps of a run share the process; each step
// gets its own session.
type agentRuntime struct {
	o       *Orchestrator
	task    *tracker.Task
	workDir string

	mu     sync.Mutex
	client *protocol.Client
	model  string
}

func (o *Orchestrator) newRuntime(task *tracker.Task, workDir string) *agentRuntime {
	return &agentRuntime{o: o, task: task, workDir: workDir}
}

// session opens a new session for a step, starting the agent process on
// first use.
func (rt *agentRuntime) session(ctx context.Context, def workflow.StepDefinition) (*protocol.Session, error) {
	client, err := rt.ensureClient(ctx, def.Model)
	if err != nil {
		return nil, err
	}

	return client.NewSession(ctx, protocol.SessionConfig{
		SystemPrompt:   systemPromptFor(def.AgentRole),
		PermissionMode: def.PermissionMode,
	})
}

func (rt *agentRuntime) ensureClient(ctx context.Context, model string) (*protocol.Client, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.client != nil {
		if model != "" && model != rt.model {
			log.Warn("agent process already running, step model ignored",
				"running_model", rt.model, "requested_model", model)
		}
		return rt.client, nil
	}

	command := rt.o.cfg.Agent.Command
	args := rt.o.cfg.Agent.Args
	if rt.o.opts.AgentCommand != "" {
		command = rt.o.opts.AgentCommand
		args = rt.o.opts.AgentArgs
	}

	env := make(map[string]string, len(rt.o.cfg.Env)+1)
	for k, v := range rt.o.cfg.Env {
		env[k] = v
	}
	if model != "" {
		env["ANTHROPIC_MODEL"] = model
	}

	client := protocol.New(protocol.Options{
		Command:  command,
		Args:     args,
		WorkDir:  rt.workDir,
		Env:      env,
		Approval: rt.o.opts.Approval,
		Sink:     rt.sink,
	})
	if err := client.Start(ctx); err != nil {
		return nil, err
	}

	log.Debug("agent process started", "command", command, log.TaskID(rt.task.ID))
	rt.client = client
	rt.model = model
	return client, nil
}

// Stop shuts the agent process down if one was started. Safe to call
// twice and safe when no step ever needed a session.
func (rt *agentRuntime) Stop() {
	rt.mu.Lock()
	client := rt.client
	rt.mu.Unlock()

	if client != nil {
		client.Stop()
	}
}

// sink translates session notifications into bus events. It runs on the
// connection's dispatch goroutine, so everything publishes
// asynchronously.
func (rt *agentRuntime) sink(n acp.SessionNotification) {
	sessionID := string(n.SessionId)

	switch {
	case n.Update.AgentMessageChunk != nil:
		if t := n.Update.AgentMessageChunk.Content.Text; t != nil {
			rt.o.bus.PublishAsync(events.AgentMessageEvent{
				TaskID:    rt.task.ID,
				SessionID: sessionID,
				Content:   t.Text,
				Role:      "assistant",
			})
		}
	case n.Update.AgentThoughtChunk != nil:
		if t := n.Update.AgentThoughtChunk.Content.Text; t != nil {
			rt.o.bus.PublishAsync(events.AgentMessageEvent{
				TaskID:    rt.task.ID,
				SessionID: sessionID,
				Content:   t.Text,
				Role:      "thought",
			})
		}
	case n.Update.ToolCall != nil:
		rt.o.bus.PublishAsync(events.ToolCallEvent{
			TaskID:    rt.task.ID,
			SessionID: sessionID,
			Title:     n.Update.ToolCall.Title,
			Status:    string(acp.ToolCallStatusPending),
		})
	case n.Update.ToolCallUpdate != nil:
		ev := events.ToolCallEvent{TaskID: rt.task.ID, SessionID: sessionID}
		if t := n.Update.ToolCallUpdate.Title; t != nil {
			ev.Title = *t
		}
		if s := n.Update.ToolCallUpdate.Status; s != nil {
			ev.Status = string(*s)
		}
		rt.o.bus.PublishAsync(ev)
	}
}
