// Package protocol speaks the agent client protocol over a spawned agent
// subprocess. It owns the outbound half of the conversation (initialize,
// session creation, prompting, cancellation) and serves the inbound
// capability surface the agent calls back into while it works: permission
// requests, text file access, and terminals.
//
// One Client wraps one agent process. Sessions created from it share the
// process and the terminal registry; stopping the client kills both.
package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/acp-go-sdk"

	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/transport"
)

// NotificationSink receives every session update the agent sends. It is
// called from the connection's dispatch goroutine, so it must not block.
type NotificationSink func(acp.SessionNotification)

// Options configures the agent process and the client behaviour around it.
type Options struct {
	// Command is the agent binary. Args are passed through verbatim.
	Command string
	Args    []string

	// WorkDir roots sessions and resolves relative file paths the agent
	// asks for.
	WorkDir string

	// Env entries are merged over the parent environment.
	Env map[string]string

	// Approval decides permission requests. Nil means AutoApprove.
	Approval ApprovalStrategy

	// Sink observes session updates. Nil means updates are only folded
	// into turn text.
	Sink NotificationSink
}

// Client runs the agent subprocess and speaks the protocol with it.
type Client struct {
	opts     Options
	approval ApprovalStrategy
	sink     NotificationSink

	proc *transport.Process
	conn *acp.ClientSideConnection

	terminals *terminalRegistry

	mu    sync.Mutex
	turns map[acp.SessionId]*strings.Builder
}

var _ acp.Client = (*Client)(nil)

// New builds a client. Nothing runs until Start.
func New(opts Options) *Client {
	approval := opts.Approval
	if approval == nil {
		approval = AutoApprove{}
	}
	return &Client{
		opts:      opts,
		approval:  approval,
		sink:      opts.Sink,
		terminals: newTerminalRegistry(),
		turns:     make(map[acp.SessionId]*strings.Builder),
	}
}

// Start spawns the agent process and performs the initialize handshake.
// On handshake failure the process is stopped before returning.
func (c *Client) Start(ctx context.Context) error {
	proc, err := transport.Start(ctx, transport.Options{
		Command: c.opts.Command,
		Args:    c.opts.Args,
		Dir:     c.opts.WorkDir,
		Env:     c.opts.Env,
	})
	if err != nil {
		return err
	}
	c.proc = proc

	conn := acp.NewClientSideConnection(c, proc.Stdin(), proc.Stdout())
	conn.SetLogger(log.Logger())
	c.conn = conn

	resp, err := conn.Initialize(ctx, acp.InitializeRequest{
		ProtocolVersion: acp.ProtocolVersionNumber,
		ClientCapabilities: acp.ClientCapabilities{
			Fs: acp.FileSystemCapability{
				ReadTextFile:  true,
				WriteTextFile: true,
			},
			Terminal: true,
		},
	})
	if err != nil {
		c.Stop()
		return fmt.Errorf("initialize agent: %w", err)
	}

	log.Debug("agent initialized", "protocol_version", resp.ProtocolVersion)
	return nil
}

// Stop kills tracked terminals and shuts the agent process down. Safe
// after a failed Start and safe to call twice.
func (c *Client) Stop() {
	c.terminals.releaseAll()
	if c.proc != nil {
		c.proc.Stop()
	}
}

// SessionConfig tunes a new session. The zero value is a plain session.
type SessionConfig struct {
	// SystemPrompt, when set, is prepended to the first prompt turn.
	SystemPrompt string

	// PermissionMode, when set, is forwarded through the session-mode
	// operation. Agents without mode support just decline; the session
	// stays usable.
	PermissionMode string

	// McpServers are handed to the agent at session creation.
	McpServers []acp.McpServer
}

// NewSession opens a fresh conversation rooted at the working directory.
func (c *Client) NewSession(ctx context.Context, cfg ...SessionConfig) (*Session, error) {
	var sc SessionConfig
	if len(cfg) > 0 {
		sc = cfg[0]
	}

	resp, err := c.conn.NewSession(ctx, acp.NewSessionRequest{
		Cwd:        c.opts.WorkDir,
		McpServers: sc.McpServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log.Debug("session created", log.Session(string(resp.SessionId)))

	sess := &Session{id: resp.SessionId, client: c, systemPrompt: sc.SystemPrompt}
	if sc.PermissionMode != "" {
		if err := sess.SetMode(ctx, sc.PermissionMode); err != nil {
			log.Warn("session mode not applied",
				log.Session(sess.ID()),
				"mode", sc.PermissionMode,
				log.Err(err),
			)
		}
	}
	return sess, nil
}

// Session is one conversation with the agent.
type Session struct {
	id     acp.SessionId
	client *Client

	systemPrompt string
	prompted     bool
}

// ID returns the agent-assigned session identifier.
func (s *Session) ID() string { return string(s.id) }

// PromptResult carries the assembled reply of one turn.
type PromptResult struct {
	// Text is every agent message chunk of the turn joined in arrival
	// order.
	Text       string
	StopReason acp.StopReason
}

// turnText folds the system prompt into the first turn.
func (s *Session) turnText(text string) string {
	if s.systemPrompt != "" && !s.prompted {
		text = s.systemPrompt + "\n\n" + text
	}
	s.prompted = true
	return text
}

// Prompt sends text to the agent and blocks until the turn ends.
func (s *Session) Prompt(ctx context.Context, text string) (PromptResult, error) {
	text = s.turnText(text)

	c := s.client
	c.beginTurn(s.id)

	resp, err := c.conn.Prompt(ctx, acp.PromptRequest{
		SessionId: s.id,
		Prompt:    []acp.ContentBlock{acp.TextBlock(text)},
	})
	turnText := c.endTurn(s.id)
	if err != nil {
		return PromptResult{}, fmt.Errorf("prompt: %w", err)
	}
	return PromptResult{Text: turnText, StopReason: resp.StopReason}, nil
}

// Cancel asks the agent to stop the in-flight turn. The turn's Prompt
// call still returns, with a cancelled stop reason.
func (s *Session) Cancel(ctx context.Context) error {
	return s.client.conn.Cancel(ctx, acp.CancelNotification{SessionId: s.id})
}

// SetMode switches the session's permission mode. Agents without mode
// support report an error; callers treat that as advisory.
func (s *Session) SetMode(ctx context.Context, mode string) error {
	_, err := s.client.conn.SetSessionMode(ctx, acp.SetSessionModeRequest{
		SessionId: s.id,
		ModeId:    acp.SessionModeId(mode),
	})
	return err
}

func (c *Client) beginTurn(id acp.SessionId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns[id] = &strings.Builder{}
}

func (c *Client) appendTurnText(id acp.SessionId, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.turns[id]; ok {
		b.WriteString(text)
	}
}

func (c *Client) endTurn(id acp.SessionId) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.turns[id]
	if !ok {
		return ""
	}
	delete(c.turns, id)
	return b.String()
}

// RequestPermission implements acp.Client by delegating to the approval
// strategy.
func (c *Client) RequestPermission(ctx context.Context, params acp.RequestPermissionRequest) (acp.RequestPermissionResponse, error) {
	outcome, err := c.approval.Decide(ctx, params)
	if err != nil {
		return acp.RequestPermissionResponse{}, err
	}

	if outcome.Selected != nil {
		log.Debug("permission decided",
			log.Session(string(params.SessionId)),
			"option_id", string(outcome.Selected.OptionId),
		)
	} else {
		log.Debug("permission cancelled", log.Session(string(params.SessionId)))
	}
	return acp.RequestPermissionResponse{Outcome: outcome}, nil
}

// SessionUpdate implements acp.Client. Agent message chunks are folded
// into the running turn text; every notification also reaches the sink.
func (c *Client) SessionUpdate(ctx context.Context, params acp.SessionNotification) error {
	if chunk := params.Update.AgentMessageChunk; chunk != nil {
		if t := chunk.Content.Text; t != nil {
			c.appendTurnText(params.SessionId, t.Text)
		}
	}
	if c.sink != nil {
		c.sink(params)
	}
	return nil
}

// ReadTextFile implements acp.Client. Relative paths resolve against the
// working directory; failures go back to the agent, not the run.
func (c *Client) ReadTextFile(ctx context.Context, params acp.ReadTextFileRequest) (acp.ReadTextFileResponse, error) {
	data, err := os.ReadFile(c.resolvePath(params.Path))
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}
	return acp.ReadTextFileResponse{Content: string(data)}, nil
}

// WriteTextFile implements acp.Client. Missing parent directories are
// created.
func (c *Client) WriteTextFile(ctx context.Context, params acp.WriteTextFileRequest) (acp.WriteTextFileResponse, error) {
	path := c.resolvePath(params.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	return acp.WriteTextFileResponse{}, nil
}

func (c *Client) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.opts.WorkDir, path)
}
