package orchestrator

import (
	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/protocol"
)

// Options configures the Orchestrator
type Options struct {
	// WorkDir is the repository the task operates on (default: current dir)
	WorkDir string

	// Cloud marks runs driven by the tracking service. Cloud runs never
	// halt to wait for local answers or plan review.
	Cloud bool

	// FreshBranch starts the run on a new numbered task branch instead of
	// reusing an existing one.
	FreshBranch bool

	// UseWorktree isolates the run in a dedicated git worktree next to
	// the repository, leaving the main checkout untouched.
	UseWorktree bool

	// SkipReview disables the local-mode pause between a freshly written
	// plan and the build phase.
	SkipReview bool

	// SkipPR leaves the run without a pull request after a full pass.
	SkipPR bool

	// DraftPR opens the pull request as a draft.
	DraftPR bool

	// BaseBranch overrides the pull request target branch.
	BaseBranch string

	// Push pushes the task branch after each committing step.
	Push bool

	// AgentCommand overrides the configured agent executable. AgentArgs
	// are only applied together with AgentCommand.
	AgentCommand string
	AgentArgs    []string

	// Approval decides agent permission requests. Nil means the protocol
	// default (approve the first allow-capable option).
	Approval protocol.ApprovalStrategy

	// Config bypasses loading .ablauf/config.yaml when set.
	Config *config.Config
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Options)

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		WorkDir: ".",
	}
}

// WithWorkDir sets the repository directory
func WithWorkDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.WorkDir = dir
		}
	}
}

// WithCloud marks the run as service-driven. Cloud runs push their
// commits so the service sees progress.
func WithCloud(enabled bool) Option {
	return func(o *Options) {
		o.Cloud = enabled
		if enabled {
			o.Push = true
		}
	}
}

// WithFreshBranch forces a new numbered task branch
func WithFreshBranch(enabled bool) Option {
	return func(o *Options) {
		o.FreshBranch = enabled
	}
}

// WithWorktree runs the task in an isolated git worktree
func WithWorktree(enabled bool) Option {
	return func(o *Options) {
		o.UseWorktree = enabled
	}
}

// WithSkipReview skips the plan review pause in local mode
func WithSkipReview(enabled bool) Option {
	return func(o *Options) {
		o.SkipReview = enabled
	}
}

// WithSkipPR disables pull request creation
func WithSkipPR(enabled bool) Option {
	return func(o *Options) {
		o.SkipPR = enabled
	}
}

// WithDraftPR opens pull requests as drafts
func WithDraftPR(enabled bool) Option {
	return func(o *Options) {
		o.DraftPR = enabled
	}
}

// WithBaseBranch overrides the pull request target branch
func WithBaseBranch(branch string) Option {
	return func(o *Options) {
		o.BaseBranch = branch
	}
}

// WithPush pushes the branch after each committing step
func WithPush(enabled bool) Option {
	return func(o *Options) {
		o.Push = enabled
	}
}

// WithAgent overrides the agent executable and its arguments
func WithAgent(command string, args ...string) Option {
	return func(o *Options) {
		o.AgentCommand = command
		o.AgentArgs = args
	}
}

// WithApproval sets the permission approval strategy
func WithApproval(strategy protocol.ApprovalStrategy) Option {
	return func(o *Options) {
		o.Approval = strategy
	}
}

// WithConfig injects configuration instead of loading it from disk
func WithConfig(cfg *config.Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// Apply applies options to the Options struct
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}
