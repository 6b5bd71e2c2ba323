// Package frame owns the numeric memory layout a compiled model runs
// over: reserved constants, the independent variable, states,
// derivatives, parameters, observables and scratch temporaries.
package frame

import (
	"encoding/json"
	"fmt"
	"math"
)

// Tag classifies a slot in the frame.
type Tag uint8

const (
	Const Tag = iota
	Var
	State
	Diff
	Param
	Obs
	Temp
)

func (t Tag) String() string {
	switch t {
	case Const:
		return "const"
	case Var:
		return "var"
	case State:
		return "state"
	case Diff:
		return "diff"
	case Param:
		return "param"
	case Obs:
		return "obs"
	case Temp:
		return "temp"
	default:
		return "unknown"
	}
}

// Word identifies one 64-bit slot. Version distinguishes two logical
// temporaries that happen to share the same reused slot index.
type Word struct {
	Index   int
	Version int
	Tag     Tag
}

// IsTemp reports whether w names a scratch slot.
func (w Word) IsTemp() bool { return w.Tag == Temp }

func (w Word) String() string {
	return fmt.Sprintf("%s%d.%d", w.Tag, w.Index, w.Version)
}

// Reserved constant slots. These never move and are never freed.
var (
	ZERO       = Word{Index: 0, Tag: Const}
	ONE        = Word{Index: 1, Tag: Const}
	MINUS_ONE  = Word{Index: 2, Tag: Const}
	MINUS_ZERO = Word{Index: 3, Tag: Const}
)

type slot struct {
	tag   Tag
	name  string
	value float64
	has   bool
}

// Frame is the ordered sequence of slots backing one compiled program.
type Frame struct {
	slots    []slot
	versions []int
	names    map[string]Word // Var/State/Param/Obs share one namespace
	diffs    map[string]Word // Diff namespace is distinct
	freed    []int           // LIFO free list of Temp slot indices
}

// New creates a frame with the four reserved constants pre-allocated.
func New() *Frame {
	f := &Frame{
		names: make(map[string]Word),
		diffs: make(map[string]Word),
	}
	f.pushSlot(Const, "", 0.0, true)
	f.pushSlot(Const, "", 1.0, true)
	f.pushSlot(Const, "", -1.0, true)
	f.pushSlot(Const, "", math.Copysign(0, -1), true)
	return f
}

func (f *Frame) pushSlot(tag Tag, name string, value float64, has bool) Word {
	idx := len(f.slots)
	f.slots = append(f.slots, slot{tag: tag, name: name, value: value, has: has})
	f.versions = append(f.versions, 0)
	return Word{Index: idx, Version: 0, Tag: tag}
}

// AllocConst allocates a slot for a non-{0,1,-1} literal.
func (f *Frame) AllocConst(value float64) Word {
	return f.pushSlot(Const, "", value, true)
}

// AllocNamed allocates a Var, State, Param or Obs slot. Duplicate names
// across this namespace panic, mirroring a static authoring error.
func (f *Frame) AllocNamed(tag Tag, name string, value float64) Word {
	switch tag {
	case Var, State, Param, Obs:
	default:
		panic(fmt.Sprintf("frame: AllocNamed called with non-named tag %s", tag))
	}
	if _, exists := f.names[name]; exists {
		panic(fmt.Sprintf("frame: key already exists: %s", name))
	}
	w := f.pushSlot(tag, name, value, tag != Obs)
	f.names[name] = w
	return w
}

// AllocDiff allocates the derivative slot for state `name`. The Diff
// namespace is distinct from the Var/State/Param/Obs namespace: a
// state named "x" and its derivative both use the key "x" but in
// different maps.
func (f *Frame) AllocDiff(name string) Word {
	if _, exists := f.diffs[name]; exists {
		panic(fmt.Sprintf("frame: key already exists: d/dt %s", name))
	}
	w := f.pushSlot(Diff, name, 0.0, false)
	f.diffs[name] = w
	return w
}

// AllocTemp returns a freed Temp slot if one is available (LIFO),
// otherwise grows the frame. The returned Word's Version is bumped
// whenever a slot is reused so two logical temporaries sharing an
// index remain distinguishable.
func (f *Frame) AllocTemp() Word {
	if n := len(f.freed); n > 0 {
		idx := f.freed[n-1]
		f.freed = f.freed[:n-1]
		f.versions[idx]++
		return Word{Index: idx, Version: f.versions[idx], Tag: Temp}
	}
	return f.pushSlot(Temp, "", 0.0, false)
}

// Free returns w to the pool iff it is a Temp slot; it is a no-op for
// every other tag, since only temporaries are reused.
func (f *Frame) Free(w Word) {
	if w.Tag != Temp {
		return
	}
	f.freed = append(f.freed, w.Index)
}

// Find looks up a Var/State/Param/Obs slot by name.
func (f *Frame) Find(name string) (Word, bool) {
	w, ok := f.names[name]
	return w, ok
}

// FindDiff looks up the derivative slot for state `name`.
func (f *Frame) FindDiff(name string) (Word, bool) {
	w, ok := f.diffs[name]
	return w, ok
}

func (f *Frame) countTag(tag Tag) int {
	n := 0
	for _, s := range f.slots {
		if s.tag == tag {
			n++
		}
	}
	return n
}

func (f *Frame) firstIndex(tag Tag) (int, bool) {
	for i, s := range f.slots {
		if s.tag == tag {
			return i, true
		}
	}
	return 0, false
}

func (f *Frame) lastIndex(tag Tag) (int, bool) {
	for i := len(f.slots) - 1; i >= 0; i-- {
		if f.slots[i].tag == tag {
			return i, true
		}
	}
	return 0, false
}

func (f *Frame) CountStates() int { return f.countTag(State) }
func (f *Frame) CountParams() int { return f.countTag(Param) }
func (f *Frame) CountObs() int    { return f.countTag(Obs) }
func (f *Frame) CountDiffs() int  { return f.countTag(Diff) }
func (f *Frame) CountTemps() int  { return f.countTag(Temp) }

func (f *Frame) FirstState() (int, bool) { return f.firstIndex(State) }
func (f *Frame) FirstParam() (int, bool) { return f.firstIndex(Param) }
func (f *Frame) FirstObs() (int, bool)   { return f.firstIndex(Obs) }
func (f *Frame) FirstDiff() (int, bool)  { return f.firstIndex(Diff) }
func (f *Frame) LastState() (int, bool)  { return f.lastIndex(State) }

// Len returns the total number of slots, i.e. the frame's memory size.
func (f *Frame) Len() int { return len(f.slots) }

// TagAt returns the tag of the slot at index i.
func (f *Frame) TagAt(i int) Tag { return f.slots[i].tag }

// Mem returns a fresh snapshot of the frame's initial values: Const,
// State and Param slots carry their set value, everything else is 0.
func (f *Frame) Mem() []float64 {
	mem := make([]float64, len(f.slots))
	for i, s := range f.slots {
		if s.has {
			mem[i] = s.value
		}
	}
	return mem
}

// DebugNames returns the name of every named slot, keyed by index, for
// diagnostics (cmd/cellc's --viz dump labels words by name instead of
// raw indices).
func (f *Frame) DebugNames() map[int]string {
	out := make(map[int]string, len(f.names)+len(f.diffs))
	for name, w := range f.names {
		out[w.Index] = name
	}
	for name, w := range f.diffs {
		out[w.Index] = "d/dt " + name
	}
	return out
}

// DebugJSON renders the name→index map as JSON, the same auxiliary
// capability `original_source/src/register.rs`'s `Frame::as_json`
// offers tooling. Not used by any solver-facing operation, and nothing
// in this repository calls it.
func (f *Frame) DebugJSON() ([]byte, error) {
	return json.MarshalIndent(f.DebugNames(), "", "  ")
}
