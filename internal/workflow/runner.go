package workflow

import (
	"context"
	"fmt"

	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/log"
)

// Runner executes a fixed step sequence against one execution context.
type Runner struct {
	bus   *events.Bus
	steps []Step
}

// NewRunner builds a runner. The bus may be nil when nobody listens.
func NewRunner(bus *events.Bus, steps ...Step) *Runner {
	return &Runner{bus: bus, steps: steps}
}

// RunResult summarizes a full pipeline pass.
type RunResult struct {
	// Halted is set when a step paused the run for outside input.
	Halted   bool
	HaltStep string
}

// Run executes the steps in order. The first step error stops the
// pipeline and is returned wrapped with the step id; a halting step stops
// it without error.
func (r *Runner) Run(ctx context.Context, ec *ExecutionContext) (RunResult, error) {
	for _, step := range r.steps {
		def := step.Definition()

		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		log.Info("step starting", log.TaskID(ec.TaskID()), log.Step(def.ID))
		r.publish(events.StepStartedEvent{TaskID: ec.TaskID(), Step: def.ID})

		res, err := step.Run(ctx, ec)
		if err != nil {
			r.publish(events.ErrorEvent{TaskID: ec.TaskID(), Error: err, Fatal: true})
			return RunResult{}, fmt.Errorf("step %s: %w", def.ID, err)
		}

		ec.RecordResult(def.ID, res)
		log.Info("step finished",
			log.TaskID(ec.TaskID()),
			log.Step(def.ID),
			"status", string(res.Status),
			"halted", res.Halt,
		)
		r.publish(events.StepCompletedEvent{
			TaskID: ec.TaskID(),
			Step:   def.ID,
			Status: string(res.Status),
			Halted: res.Halt,
		})

		if res.Halt {
			return RunResult{Halted: true, HaltStep: def.ID}, nil
		}
	}

	return RunResult{}, nil
}

func (r *Runner) publish(e events.Eventer) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
