// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// Typed identities for the VM's arena-backed entities (spec §3.2, §4.1).
//
// SegmentId and ContId are generation-checked: dereferencing a reclaimed
// slot is a detectable internal-VM error rather than a silent alias onto
// whatever now occupies that slot. TaskId/PromiseId/CallbackId/RunnableId
// are scheduler-private monotonic counters — the scheduler never reuses a
// value within a single Run, so they need no generation check.

// SegmentId identifies a Segment in the segment arena.
type SegmentId struct {
	index      uint32
	generation uint32
}

// ContId is a generation-checked continuation identity. No arena in this
// package allocates one: a ContHandle is a plain heap value.
type ContId struct {
	index      uint32
	generation uint32
}

// TaskId identifies a scheduler Task.
type TaskId uint64

// PromiseId identifies a scheduler Promise.
type PromiseId uint64

// CallbackId identifies a registered external-callback entry.
type CallbackId uint64

// RunnableId identifies a single turn of scheduler bookkeeping. Nothing in
// this package assigns one.
type RunnableId uint64

// IsZero reports whether id is the zero value (never allocated).
func (id SegmentId) IsZero() bool { return id.generation == 0 }

// IsZero reports whether id is the zero value (never allocated).
func (id ContId) IsZero() bool { return id.generation == 0 }

// arenaSlot is one slot in a generational arena: either live (holding a T)
// or free (linked into the free list via nextFree).
type arenaSlot[T any] struct {
	value      T
	generation uint32
	live       bool
	nextFree   int32
}

// arena is a generational slot arena, the Go analogue of a Rust SlotMap.
// Allocation reuses freed slots; every handle carries the slot's generation
// at allocation time so a stale handle referencing a reclaimed-and-reused
// slot is detected instead of silently aliasing unrelated data.
type arena[T any] struct {
	slots    []arenaSlot[T]
	freeHead int32 // -1 when empty
}

func newArena[T any]() *arena[T] {
	return &arena[T]{freeHead: -1}
}

// alloc inserts value and returns (index, generation) for the new slot.
func (a *arena[T]) alloc(value T) (uint32, uint32) {
	if a.freeHead >= 0 {
		idx := a.freeHead
		slot := &a.slots[idx]
		a.freeHead = slot.nextFree
		slot.value = value
		slot.live = true
		slot.generation++
		return uint32(idx), slot.generation
	}
	a.slots = append(a.slots, arenaSlot[T]{value: value, generation: 1, live: true})
	return uint32(len(a.slots) - 1), 1
}

// get dereferences (index, generation). ok is false for a stale or
// out-of-range handle; segmentArena's callers skip such an id rather
// than raising an error.
func (a *arena[T]) get(index, generation uint32) (*T, bool) {
	if int(index) >= len(a.slots) {
		return nil, false
	}
	slot := &a.slots[index]
	if !slot.live || slot.generation != generation {
		return nil, false
	}
	return &slot.value, true
}

// free marks a slot reclaimable. Reclamation is otherwise lazy: the caller
// (segmentArena.sweep, dispatch's scope-chain walk) decides when it is safe
// to call free, per spec §4.1's "popping happens the next time the dispatch
// context visits" rule.
func (a *arena[T]) free(index uint32) {
	if int(index) >= len(a.slots) {
		return
	}
	slot := &a.slots[index]
	if !slot.live {
		return
	}
	var zero T
	slot.value = zero
	slot.live = false
	slot.nextFree = a.freeHead
	a.freeHead = int32(index)
}
