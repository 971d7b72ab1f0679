package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/valksor/go-ablauf/internal/events"
)

// shortHashLen is how many hash characters progress lines show.
const shortHashLen = 7

// Renderer translates bus events into progress lines. Subscribe its
// Handle method to the orchestrator's bus; events published from
// goroutines are serialized so lines never interleave.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewRenderer creates a renderer writing to out. With verbose set it also
// shows tool activity.
func NewRenderer(out io.Writer, verbose bool) *Renderer {
	return &Renderer{out: out, verbose: verbose}
}

// Handle renders one event. Unknown event types and streamed message
// chunks are ignored; chunks arrive token-wise and belong in artifacts,
// not on the progress console.
func (r *Renderer) Handle(ev events.Event) {
	line := r.line(ev)
	if line == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, line)
}

func (r *Renderer) line(ev events.Event) string {
	switch ev.Type {
	case events.TypeBranchReady:
		state := "existing"
		if created, _ := ev.Data["created"].(bool); created {
			state = "created"
		}
		return InfoMsg("On branch %s %s", Bold(str(ev, "branch")), Muted("("+state+")"))

	case events.TypeStepStarted:
		return InfoMsg("%s started", str(ev, "step"))

	case events.TypeStepCompleted:
		step := str(ev, "step")
		status := str(ev, "status")
		if halted, _ := ev.Data["halted"].(bool); halted {
			return WarningMsg("%s paused the run", step)
		}
		if status == "skipped" {
			return "  " + Muted(step+" skipped")
		}
		return SuccessMsg("%s %s", step, ColorStepStatus(status))

	case events.TypeCommitCreated:
		hash := str(ev, "hash")
		if len(hash) > shortHashLen {
			hash = hash[:shortHashLen]
		}
		suffix := ""
		if pushed, _ := ev.Data["pushed"].(bool); pushed {
			suffix = ", pushed"
		}
		return SuccessMsg("Commit %s %s", hash, Muted("("+str(ev, "step")+suffix+")"))

	case events.TypeQuestions:
		return WarningMsg("%v open questions recorded", ev.Data["count"])

	case events.TypePRCreated:
		return SuccessMsg("Pull request: %s", str(ev, "pr_url"))

	case events.TypeRunFailed:
		return ErrorMsg("Run failed: %s", str(ev, "error"))

	case events.TypeToolCall:
		if !r.verbose {
			return ""
		}
		title := str(ev, "title")
		if title == "" {
			return ""
		}
		if status := str(ev, "status"); status != "" {
			return "  " + Muted(fmt.Sprintf("tool: %s (%s)", title, status))
		}
		return "  " + Muted("tool: "+title)

	case events.TypeError:
		if fatal, _ := ev.Data["fatal"].(bool); fatal {
			// The matching run_failed event carries the message
			return ""
		}
		if !r.verbose {
			return ""
		}
		return "  " + Muted("warning: "+str(ev, "error"))

	default:
		return ""
	}
}

// str reads a string field from event data, empty when absent.
func str(ev events.Event, key string) string {
	s, _ := ev.Data[key].(string)
	return s
}
