// Package orchestrator ties the pieces of a task run together: it
// resolves the task, prepares the branch (or worktree), drives the
// research/plan/build pipeline against one agent process, and finishes a
// full pass with a pull request. One Orchestrator serves one repository;
// RunTask executes one task at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/extract"
	"github.com/valksor/go-ablauf/internal/tracker"
	"github.com/valksor/go-ablauf/internal/vcs"
	"github.com/valksor/go-ablauf/internal/workflow"
)

// Orchestrator owns the per-repository state shared by task runs.
type Orchestrator struct {
	opts Options
	cfg  *config.Config

	bus       *events.Bus
	git       *vcs.Git
	store     *artifacts.Store
	tracker   *tracker.Client
	extractor *extract.Extractor

	mu      sync.RWMutex
	current *workflow.ExecutionContext
}

// New creates an Orchestrator for the repository containing
// Options.WorkDir. Without a configured tracker base URL the orchestrator
// runs in local mode: tasks come from markdown files and run state stays
// in memory.
func New(ctx context.Context, opts ...Option) (*Orchestrator, error) {
	options := DefaultOptions()
	options.Apply(opts...)

	git, err := vcs.Open(ctx, options.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	cfg := options.Config
	if cfg == nil {
		cfg, err = config.Load(git.Root())
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Git.Remote != "" {
		git.SetRemote(cfg.Git.Remote)
	}

	store, err := artifacts.Open(git.Root())
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		opts:  options,
		cfg:   cfg,
		bus:   events.NewBus(),
		git:   git,
		store: store,
	}

	if cfg.Tracker.BaseURL != "" {
		client, err := tracker.NewClient(cfg.Tracker.BaseURL, cfg.TrackerToken())
		if err != nil {
			return nil, fmt.Errorf("tracker client: %w", err)
		}
		o.tracker = client
	}
	if options.Cloud && o.tracker == nil {
		return nil, errors.New("cloud mode requires a tracker base URL")
	}

	if !cfg.Extract.Disabled {
		o.extractor = extract.New(extract.Options{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  cfg.Extract.Model,
		})
	}

	return o, nil
}

// Bus returns the event bus runs publish to.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Git returns the repository manager.
func (o *Orchestrator) Git() *vcs.Git {
	return o.git
}

// Config returns the loaded configuration.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Tracker returns the tracking service client, nil in local mode.
func (o *Orchestrator) Tracker() *tracker.Client {
	return o.tracker
}

// Cancel stops the in-flight agent turn of the current run. Without an
// active run or session it is a no-op. The interrupted prompt returns
// with a cancelled stop reason and the run halts cleanly.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.RLock()
	ec := o.current
	o.mu.RUnlock()

	if ec == nil {
		return nil
	}
	return ec.Slot.CancelActive(ctx)
}

// Close releases the orchestrator's background resources. Run-scoped
// resources (agent process, sessions) are released by RunTask itself.
func (o *Orchestrator) Close() {
	o.bus.Shutdown()
}

func (o *Orchestrator) setCurrent(ec *workflow.ExecutionContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = ec
}

func (o *Orchestrator) clearCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = nil
}
