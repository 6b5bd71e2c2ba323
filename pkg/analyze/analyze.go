// Package analyze walks a lowered ir.Program and derives the
// information native backends need to decide which values can ride in
// a register across instructions: the saveable and bufferable word
// sets. Grounded on spec.md §4.4 and the original Rust crate's
// analyzer.rs, which this package follows event-for-event.
package analyze

import (
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/hostfuncs"
	"github.com/cellc/cellc/pkg/ir"
)

// EventKind discriminates an Event's payload.
type EventKind uint8

const (
	EventProducer EventKind = iota
	EventConsumer
	EventCaller
)

// Event is one step of the flattened per-instruction analysis stream.
type Event struct {
	Kind EventKind
	Word frame.Word // valid for Producer/Consumer
	Op   string      // valid for Caller
}

// BuildEvents expands prog's code into the event stream spec.md §4.4
// describes: Consumers in a fixed per-kind order, then a Caller, then
// a Producer. Unary emits Consumer(x); Binary emits Consumer(y),
// Consumer(x) (y before x); IfElse emits Consumer(cond), Consumer(x2),
// Consumer(x1), with caller name "select". Debug markers (Num, Var,
// Eq, Nop) contribute nothing.
func BuildEvents(prog *ir.Program) []Event {
	var events []Event
	for _, c := range prog.Code {
		switch c.Op {
		case ir.OpUnary:
			events = append(events,
				Event{Kind: EventConsumer, Word: c.X},
				Event{Kind: EventCaller, Op: c.OpName},
				Event{Kind: EventProducer, Word: c.Dst},
			)
		case ir.OpBinary:
			events = append(events,
				Event{Kind: EventConsumer, Word: c.Y},
				Event{Kind: EventConsumer, Word: c.X},
				Event{Kind: EventCaller, Op: c.OpName},
				Event{Kind: EventProducer, Word: c.Dst},
			)
		case ir.OpIfElse:
			events = append(events,
				Event{Kind: EventConsumer, Word: c.Cond},
				Event{Kind: EventConsumer, Word: c.X2},
				Event{Kind: EventConsumer, Word: c.X1},
				Event{Kind: EventCaller, Op: "select"},
				Event{Kind: EventProducer, Word: c.Dst},
			)
		}
	}
	return events
}

// runCandidateAlgorithm implements the shared shape of find-saveable
// and find-bufferable: maintain a stack of candidate producers; on a
// Consumer, pop the top candidate, check whether c still appears
// below it (meaning something else was produced since c), and push
// the popped candidate back. clearOn, when non-nil, decides whether a
// Caller event clears the whole candidate stack.
func runCandidateAlgorithm(events []Event, clearOn func(op string) bool) map[frame.Word]bool {
	var candidates []frame.Word
	result := make(map[frame.Word]bool)

	contains := func(w frame.Word) bool {
		for _, c := range candidates {
			if c == w {
				return true
			}
		}
		return false
	}

	for _, e := range events {
		switch e.Kind {
		case EventProducer:
			candidates = append(candidates, e.Word)
		case EventConsumer:
			var top frame.Word
			has := false
			if n := len(candidates); n > 0 {
				top = candidates[n-1]
				candidates = candidates[:n-1]
				has = true
			}
			if contains(e.Word) {
				result[e.Word] = true
			}
			if has {
				candidates = append(candidates, top)
			}
		case EventCaller:
			if clearOn != nil && clearOn(e.Op) {
				candidates = candidates[:0]
			}
		}
	}
	return result
}

// FindSaveable returns the set of words that are produced but not
// consumed by the immediately following instruction — values that
// cannot simply linger in the accumulator across an emission.
func FindSaveable(events []Event) map[frame.Word]bool {
	return runCandidateAlgorithm(events, nil)
}

// FindBufferable returns the subset of the saveable set whose live
// range never crosses a call to one of the fixed transcendental host
// functions, which clobber caller-saved vector registers.
func FindBufferable(events []Event) map[frame.Word]bool {
	return runCandidateAlgorithm(events, func(op string) bool {
		return hostfuncs.Transcendental[op]
	})
}

// Note: an earlier revision of this package carried a Stack type and
// AllocTempDepths/MaxTempDepth functions mirroring analyzer.rs's
// Stack/Renamer/alloc_regs — a LIFO depth assignment meant to drive a
// register-plus-scratch-stack allocation for temporaries, distinct
// from the saveable/bufferable analysis above. They were removed: the
// wired original backends (amd/mod.rs, arm/mod.rs) never call
// alloc_regs or Stack either — every caller of that machinery lives
// inside analyzer.rs itself — and cellc's backends address every Word
// including temporaries directly in frame memory (see DESIGN.md), so
// there is no allocator here for a depth assignment to feed. See
// DESIGN.md for the full justification.
