package protocol

import (
	"context"

	"github.com/coder/acp-go-sdk"
)

// ApprovalStrategy decides permission requests the agent raises while it
// works. Implementations must be safe for concurrent use.
type ApprovalStrategy interface {
	Decide(ctx context.Context, req acp.RequestPermissionRequest) (acp.RequestPermissionOutcome, error)
}

// AutoApprove picks the first allow option of every request. Unattended
// runs rely on the session's permission mode as the real gate; the
// protocol level never blocks waiting for a human.
type AutoApprove struct{}

// Decide implements ApprovalStrategy.
func (AutoApprove) Decide(_ context.Context, req acp.RequestPermissionRequest) (acp.RequestPermissionOutcome, error) {
	for _, opt := range req.Options {
		if opt.Kind == acp.PermissionOptionKindAllowOnce || opt.Kind == acp.PermissionOptionKindAllowAlways {
			return acp.RequestPermissionOutcome{
				Selected: &acp.RequestPermissionOutcomeSelected{OptionId: opt.OptionId},
			}, nil
		}
	}

	// No allow option on offer; take whatever is first rather than stall
	if len(req.Options) > 0 {
		return acp.RequestPermissionOutcome{
			Selected: &acp.RequestPermissionOutcomeSelected{OptionId: req.Options[0].OptionId},
		}, nil
	}

	return acp.RequestPermissionOutcome{
		Cancelled: &acp.RequestPermissionOutcomeCancelled{},
	}, nil
}
