// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// StepStatus classifies what eng.eval was doing at the instant an
// ExecutionSnapshot was taken (spec.md §6's single on_step observability
// seam, SPEC_FULL.md §8).
type StepStatus int

const (
	StepRunning StepStatus = iota
	StepEffect
	StepDone
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepEffect:
		return "effect"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameDescriptor is a read-only summary of one entry in the scope chain
// at snapshot time — diagnostic only, never consulted by the evaluator
// itself.
type FrameDescriptor struct {
	Kind        string // "body" or "prompt"
	HandlerName string
}

// ExecutionSnapshot is handed to an installed OnStep hook immediately
// before eng.eval dispatches the effect named by CurrentEffect. doeff
// performs no I/O when building or emitting one — it only calls the
// supplied function — so a JSONL trace writer, a live dashboard, or any
// other consumer lives entirely outside this package (spec.md §6).
type ExecutionSnapshot struct {
	Status        StepStatus
	KStack        []FrameDescriptor
	CurrentEffect Operation
	StepCount     uint64
}

// describeScope renders scope (innermost first) into diagnostic
// FrameDescriptors for an ExecutionSnapshot's KStack.
func (eng *engine) describeScope(scope scopeChain) []FrameDescriptor {
	out := make([]FrameDescriptor, 0, len(scope.ids))
	for _, id := range scope.ids {
		seg, ok := eng.segs.get(id)
		if !ok {
			continue
		}
		switch s := seg.(type) {
		case *BodySegment:
			out = append(out, FrameDescriptor{Kind: "body", HandlerName: s.HandlerName})
		case *PromptBoundarySegment:
			out = append(out, FrameDescriptor{Kind: "prompt"})
		}
	}
	return out
}

// step records a single evaluator step and, if onStep is installed,
// invokes it with an ExecutionSnapshot. Called once per ordinary effect
// eng.eval dispatches to a handler; the dispatch primitives (WithHandler,
// Resume, Transfer, Delegate, park, host-async escape) record no step.
func (eng *engine) step(status StepStatus, scope scopeChain, effect Operation) {
	if eng.onStep == nil {
		return
	}
	eng.stepCount++
	eng.onStep(ExecutionSnapshot{
		Status:        status,
		KStack:        eng.describeScope(scope),
		CurrentEffect: effect,
		StepCount:     eng.stepCount,
	})
}
