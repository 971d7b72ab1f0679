package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/coder/acp-go-sdk"

	"github.com/valksor/go-ablauf/internal/log"
)

// defaultTerminalBufferLimit caps retained terminal output when the agent
// does not ask for a limit of its own.
const defaultTerminalBufferLimit = 1 << 20

// tailBuffer retains the last limit bytes written to it and remembers
// whether anything was dropped. The front is trimmed to a rune boundary so
// snapshots never start mid-character.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	data      []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultTerminalBufferLimit
	}
	return &tailBuffer{limit: limit}
}

// Write implements io.Writer. It never fails; overflow drops the oldest
// bytes.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = trimToRuneBoundary(b.data[len(b.data)-b.limit:])
		b.truncated = true
	}
	return len(p), nil
}

// Snapshot returns the retained output and whether older output was
// dropped.
func (b *tailBuffer) Snapshot() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data), b.truncated
}

// trimToRuneBoundary drops leading UTF-8 continuation bytes left behind
// when the cut landed inside a multi-byte character.
func trimToRuneBoundary(p []byte) []byte {
	for i := range p {
		if p[i]&0xC0 != 0x80 {
			return p[i:]
		}
	}
	return p[:0]
}

// terminal is one command the agent asked us to run. Output is stdout and
// stderr combined in arrival order. exitCode and signal are written once,
// before done closes.
type terminal struct {
	id        string
	sessionID acp.SessionId
	cmd       *exec.Cmd
	buf       *tailBuffer
	done      chan struct{}
	exitCode  *int
	signal    *string
}

// exited reports whether the command has finished without blocking.
func (t *terminal) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// kill sends SIGKILL unless the command already exited. The buffer and
// exit status stay readable afterwards.
func (t *terminal) kill() {
	if t.exited() {
		return
	}
	_ = t.cmd.Process.Kill()
}

type terminalRegistry struct {
	mu        sync.Mutex
	terminals map[string]*terminal
}

func newTerminalRegistry() *terminalRegistry {
	return &terminalRegistry{terminals: make(map[string]*terminal)}
}

func (r *terminalRegistry) add(t *terminal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminals[t.id] = t
}

func (r *terminalRegistry) get(id string) (*terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.terminals[id]
	if !ok {
		return nil, fmt.Errorf("terminal not found: %s", id)
	}
	return t, nil
}

// remove unregisters a terminal. Any later use of the id is an error.
func (r *terminalRegistry) remove(id string) (*terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.terminals[id]
	if !ok {
		return nil, fmt.Errorf("terminal not found: %s", id)
	}
	delete(r.terminals, id)
	return t, nil
}

// releaseAll kills and forgets every tracked terminal.
func (r *terminalRegistry) releaseAll() {
	r.mu.Lock()
	terms := make([]*terminal, 0, len(r.terminals))
	for _, t := range r.terminals {
		terms = append(terms, t)
	}
	r.terminals = make(map[string]*terminal)
	r.mu.Unlock()

	for _, t := range terms {
		t.kill()
	}
}

// CreateTerminal implements acp.Client. The command starts immediately and
// runs detached from the request context, since terminals outlive the turn
// that created them.
func (c *Client) CreateTerminal(ctx context.Context, params acp.CreateTerminalRequest) (acp.CreateTerminalResponse, error) {
	cwd := c.opts.WorkDir
	if params.Cwd != nil && *params.Cwd != "" {
		cwd = *params.Cwd
	}

	limit := 0
	if params.OutputByteLimit != nil {
		limit = *params.OutputByteLimit
	}
	buf := newTailBuffer(limit)

	cmd := exec.Command(params.Command, params.Args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Start(); err != nil {
		return acp.CreateTerminalResponse{}, fmt.Errorf("start terminal command: %w", err)
	}

	term := &terminal{
		id:        fmt.Sprintf("term_%d", time.Now().UnixNano()),
		sessionID: params.SessionId,
		cmd:       cmd,
		buf:       buf,
		done:      make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		switch {
		case err == nil:
			code := 0
			term.exitCode = &code
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
					sig := ws.Signal().String()
					term.signal = &sig
				} else {
					code := exitErr.ExitCode()
					term.exitCode = &code
				}
			} else {
				code := -1
				term.exitCode = &code
			}
		}
		close(term.done)
	}()

	c.terminals.add(term)
	log.Debug("terminal created",
		log.Session(string(params.SessionId)),
		"terminal_id", term.id,
		"command", params.Command,
	)
	return acp.CreateTerminalResponse{TerminalId: term.id}, nil
}

// TerminalOutput implements acp.Client. The exit status is only present
// once the command has finished.
func (c *Client) TerminalOutput(ctx context.Context, params acp.TerminalOutputRequest) (acp.TerminalOutputResponse, error) {
	term, err := c.terminals.get(params.TerminalId)
	if err != nil {
		return acp.TerminalOutputResponse{}, err
	}

	output, truncated := term.buf.Snapshot()
	resp := acp.TerminalOutputResponse{Output: output, Truncated: truncated}
	if term.exited() {
		resp.ExitStatus = &acp.TerminalExitStatus{ExitCode: term.exitCode, Signal: term.signal}
	}
	return resp, nil
}

// WaitForTerminalExit implements acp.Client.
func (c *Client) WaitForTerminalExit(ctx context.Context, params acp.WaitForTerminalExitRequest) (acp.WaitForTerminalExitResponse, error) {
	term, err := c.terminals.get(params.TerminalId)
	if err != nil {
		return acp.WaitForTerminalExitResponse{}, err
	}

	select {
	case <-ctx.Done():
		return acp.WaitForTerminalExitResponse{}, ctx.Err()
	case <-term.done:
	}
	return acp.WaitForTerminalExitResponse{ExitCode: term.exitCode, Signal: term.signal}, nil
}

// KillTerminalCommand implements acp.Client. The terminal stays registered so the
// agent can still collect output and exit status.
func (c *Client) KillTerminalCommand(ctx context.Context, params acp.KillTerminalCommandRequest) (acp.KillTerminalCommandResponse, error) {
	term, err := c.terminals.get(params.TerminalId)
	if err != nil {
		return acp.KillTerminalCommandResponse{}, err
	}
	term.kill()
	log.Debug("terminal killed", "terminal_id", term.id)
	return acp.KillTerminalCommandResponse{}, nil
}

// ReleaseTerminal implements acp.Client. Releasing kills the command if it
// is still running and forgets the terminal.
func (c *Client) ReleaseTerminal(ctx context.Context, params acp.ReleaseTerminalRequest) (acp.ReleaseTerminalResponse, error) {
	term, err := c.terminals.remove(params.TerminalId)
	if err != nil {
		return acp.ReleaseTerminalResponse{}, err
	}
	term.kill()
	log.Debug("terminal released", "terminal_id", term.id)
	return acp.ReleaseTerminalResponse{}, nil
}
