// Package transport spawns and supervises the agent subprocess.
//
// The orchestrator talks to a coding agent over stdio. This package owns the
// process half of that arrangement: starting the binary, handing its stdin
// and stdout to the protocol layer, draining stderr into the log, and
// stopping the process exactly once no matter how many callers ask.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/valksor/go-ablauf/internal/log"
)

// stopGrace is how long Stop waits for a clean exit after closing stdin
// before killing the process.
const stopGrace = 5 * time.Second

// Options configures the agent subprocess.
type Options struct {
	Command string            // Agent binary, looked up on PATH
	Args    []string          // Extra CLI arguments
	Dir     string            // Working directory, inherited when empty
	Env     map[string]string // Extra environment, merged over os.Environ
}

// Process is a running agent subprocess speaking over stdio.
// Stdin and Stdout belong to the protocol connection; stderr is drained
// into the log in the background.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
}

// Start launches the agent subprocess. The context covers the whole process
// lifetime: cancelling it kills the process.
func Start(ctx context.Context, opts Options) (*Process, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("no agent command configured")
	}

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command, err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}

	go p.drainStderr(stderr)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	log.Debug("agent process started", "command", opts.Command, "pid", cmd.Process.Pid)
	return p, nil
}

// drainStderr keeps the agent's stderr flowing into the log so the pipe
// never fills up.
func (p *Process) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		log.Debug("agent stderr", "line", line)
	}
}

// Stdin returns the writer connected to the agent's stdin.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the reader connected to the agent's stdout.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop shuts the agent down: closing stdin asks it to exit, and after a
// grace period the process is killed. Safe to call more than once.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		_ = p.stdin.Close()

		select {
		case <-p.done:
		case <-time.After(stopGrace):
			log.Debug("agent did not exit, killing", "pid", p.cmd.Process.Pid)
			_ = p.cmd.Process.Kill()
			<-p.done
		}

		// A non-zero exit after we closed stdin is expected shutdown noise
		if p.waitErr != nil {
			log.Debug("agent exited", "err", p.waitErr)
		}
	})
}

// Version runs the agent binary with --version and returns the first line
// of its output. Used to verify the agent is installed and recent enough.
func Version(ctx context.Context, command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("agent not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("agent version check: %w", err)
	}

	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line, nil
}
