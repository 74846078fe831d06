package coach

import (
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// Op names which orchestrator made a provider call.
type Op string

const (
	OpAnalysis Op = "analysis"
	OpChat     Op = "chat"
)

// Observer receives orchestration events for metrics and event fan-out.
// Implementations must not block.
type Observer interface {
	// Attempt reports one provider call; err is nil on success.
	Attempt(op Op, kind llm.ProviderKind, err *llm.ClassifiedError)
	Rotated(op Op, from, to int)
	Exhausted(op Op)
	Cycle(status CycleStatus)
	Outcome(o types.AnalysisOutcome)
	ChatTurn(t types.ChatTurn)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) Attempt(Op, llm.ProviderKind, *llm.ClassifiedError) {}
func (NopObserver) Rotated(Op, int, int)                               {}
func (NopObserver) Exhausted(Op)                                       {}
func (NopObserver) Cycle(CycleStatus)                                  {}
func (NopObserver) Outcome(types.AnalysisOutcome)                      {}
func (NopObserver) ChatTurn(types.ChatTurn)                            {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) Attempt(op Op, kind llm.ProviderKind, err *llm.ClassifiedError) {
	for _, o := range m {
		o.Attempt(op, kind, err)
	}
}
func (m multiObserver) Rotated(op Op, from, to int) {
	for _, o := range m {
		o.Rotated(op, from, to)
	}
}
func (m multiObserver) Exhausted(op Op) {
	for _, o := range m {
		o.Exhausted(op)
	}
}
func (m multiObserver) Cycle(status CycleStatus) {
	for _, o := range m {
		o.Cycle(status)
	}
}
func (m multiObserver) Outcome(out types.AnalysisOutcome) {
	for _, o := range m {
		o.Outcome(out)
	}
}
func (m multiObserver) ChatTurn(t types.ChatTurn) {
	for _, o := range m {
		o.ChatTurn(t)
	}
}
