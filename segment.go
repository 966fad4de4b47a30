// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// Segment is the sealed sum of the four segment kinds the step machine
// allocates (spec §3.3): Body, PromptBoundary, HandlerReturn, and
// DispatchReturn. Like kont's own Frame, this is a pure marker interface
// with an unexported method — dispatch on segment kind is by type switch,
// never virtual inheritance (spec §9).
type Segment interface{ segment() }

// BodySegment is a running program (or handler body) plus the scope chain
// it was started under.
type BodySegment struct {
	Scope       scopeChain
	HandlerName string // diagnostic label only; empty for plain bodies
}

func (*BodySegment) segment() {}

// PromptBoundarySegment marks an installed handler. Delegate and handler
// lookup walk outward through scope chains to find these.
type PromptBoundarySegment struct {
	Handler     VMHandler
	ParentScope scopeChain
}

func (*PromptBoundarySegment) segment() {}

// HandlerReturnSegment pairs with a PromptBoundarySegment and records the
// final value the handler body evaluated to (spec §3.3).
type HandlerReturnSegment struct {
	For   SegmentId // the PromptBoundarySegment this pairs with
	Value any
	Set   bool
}

func (*HandlerReturnSegment) segment() {}

// DispatchReturnSegment records what the step machine should do once a
// dispatch in flight produces a value: thread it back into the body that
// performed the effect (Resume), or let a caller-installed frame consume it.
type DispatchReturnSegment struct {
	Pending bool
}

func (*DispatchReturnSegment) segment() {}

// scopeChain is an immutable, ordered list of ancestor segment ids, walked
// outward for handler lookup, Delegate, and environment layering (spec
// §3.3). No operation mutates an existing chain: push and splice copy into
// a new backing slice, and parent reslices the existing one.
type scopeChain struct {
	ids []SegmentId // ids[0] is innermost, ids[len-1] is outermost
}

// push returns a new chain with id as the new innermost element.
func (c scopeChain) push(id SegmentId) scopeChain {
	next := make([]SegmentId, 0, len(c.ids)+1)
	next = append(next, id)
	next = append(next, c.ids...)
	return scopeChain{ids: next}
}

// parent returns the chain with the innermost element removed, and whether
// one existed.
func (c scopeChain) parent() (scopeChain, bool) {
	if len(c.ids) == 0 {
		return c, false
	}
	return scopeChain{ids: c.ids[1:]}, true
}

// splice threads a captured (child) scope chain back onto the chain active
// at resume time (parent), per spec §4.2. The result is a new slice holding
// the whole child chain followed by the whole parent chain; ids present in
// both are not deduplicated.
func splice(parentChain, childChain scopeChain) scopeChain {
	if len(childChain.ids) == 0 {
		return parentChain
	}
	combined := make([]SegmentId, 0, len(childChain.ids)+len(parentChain.ids))
	combined = append(combined, childChain.ids...)
	combined = append(combined, parentChain.ids...)
	return scopeChain{ids: combined}
}

// segmentArena owns every live Segment, addressed by SegmentId. Reclamation
// is lazy: markDone only flips a bit, sweep is called opportunistically by
// the dispatch engine when it walks past a segment it no longer needs,
// exactly per spec §4.1 ("popping happens the next time the dispatch
// context visits").
type segmentArena struct {
	arena *arena[segmentSlot]
}

type segmentSlot struct {
	value Segment
	done  bool
}

func newSegmentArena() *segmentArena {
	return &segmentArena{arena: newArena[segmentSlot]()}
}

func (a *segmentArena) push(s Segment) SegmentId {
	idx, gen := a.arena.alloc(segmentSlot{value: s})
	return SegmentId{index: idx, generation: gen}
}

func (a *segmentArena) get(id SegmentId) (Segment, bool) {
	slot, ok := a.arena.get(id.index, id.generation)
	if !ok {
		return nil, false
	}
	return slot.value, true
}

// markDone flags id as finished without freeing its slot; the PromptBoundary
// it pairs with may still need to read its HandlerReturnSegment.
func (a *segmentArena) markDone(id SegmentId) {
	slot, ok := a.arena.get(id.index, id.generation)
	if !ok {
		return
	}
	slot.done = true
}

// sweep frees id's slot if it was previously marked done. Safe to call
// speculatively; it is a no-op for live or unknown segments.
func (a *segmentArena) sweep(id SegmentId) {
	slot, ok := a.arena.get(id.index, id.generation)
	if !ok || !slot.done {
		return
	}
	a.arena.free(id.index)
}

// pushBody allocates a new BodySegment as a child of parent.
func (a *segmentArena) pushBody(parent scopeChain, label string) (SegmentId, scopeChain) {
	id := a.push(&BodySegment{Scope: parent, HandlerName: label})
	return id, parent.push(id)
}

// pushPrompt allocates a new PromptBoundarySegment installing h as a child
// of parent. machine.go evaluates the handler's scoped expression directly
// under the returned chain; no BodySegment is pushed for it.
func (a *segmentArena) pushPrompt(parent scopeChain, h VMHandler) (SegmentId, scopeChain) {
	id := a.push(&PromptBoundarySegment{Handler: h, ParentScope: parent})
	return id, parent.push(id)
}

// handlerReturnFor allocates the HandlerReturnSegment paired with a prompt.
func (a *segmentArena) handlerReturnFor(prompt SegmentId) SegmentId {
	return a.push(&HandlerReturnSegment{For: prompt})
}

// locatePromptFor walks from scope outward and returns the innermost
// PromptBoundarySegment id plus its Handler, or ok=false if scope has no
// enclosing prompt (spec §4.2 locate_prompt_for).
func (a *segmentArena) locatePromptFor(scope scopeChain) (SegmentId, *PromptBoundarySegment, bool) {
	for _, id := range scope.ids {
		seg, ok := a.get(id)
		if !ok {
			continue
		}
		if pb, ok := seg.(*PromptBoundarySegment); ok {
			return id, pb, true
		}
	}
	return SegmentId{}, nil, false
}

// outerOf returns the scope chain starting strictly outside prompt — used
// to enforce "a handler cannot handle its own emissions" (spec §4.4): a
// handler's sub-effects are looked up starting from the prompt boundary's
// own parent scope, never from the prompt itself.
func (a *segmentArena) outerOf(promptID SegmentId) scopeChain {
	seg, ok := a.get(promptID)
	if !ok {
		return scopeChain{}
	}
	pb, ok := seg.(*PromptBoundarySegment)
	if !ok {
		return scopeChain{}
	}
	return pb.ParentScope
}
