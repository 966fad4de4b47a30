// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Cooperative single-threaded scheduler (spec.md §3.7, §5, C5 §7.3).
//
// A Task never blocks the Go goroutine it runs on: an effect that cannot
// complete immediately (AwaitPromise on a pending Promise) parks by
// yielding Park, which eng.eval turns into errTaskParked and propagates
// unmodified through every intervening frame back to runScheduler's driver
// loop. Resuming a parked task later is just another call through the
// ContHandle captured when it parked — the same one-shot resumption
// primitive every other handler in this package uses, not a goroutine
// handoff. This keeps "FIFO within ready queue" (spec.md §5) exact and
// deterministic instead of racing goroutines for VM-internal concurrency.
var errTaskParked = errors.New("doeff: task parked")

type taskStatus int

const (
	taskReady taskStatus = iota
	taskRunning
	taskParked
	taskDone
	taskFailed
)

// Task is a single cooperatively-scheduled strand of execution (spec.md
// §3.7).
type Task struct {
	id      TaskId
	program Program
	status  taskStatus
	result  any
	err     error
}

// Promise is a single-assignment result cell other tasks can await
// (spec.md §3.7).
type Promise struct {
	id      PromiseId
	done    bool
	value   any
	err     error
	waiters []*ContHandle
}

// CallbackToken identifies an external (host-side) promise completion
// (spec.md §6). It is a uuid.UUID rather than a raw PromiseId because it
// crosses a thread/process boundary where a dense arena index would be
// unsafe to hand out (could collide with a later Run's own ids).
type CallbackToken struct{ uuid.UUID }

// Scheduler owns every Task and Promise created during one Run, plus the
// FIFO ready queue and the thread-safe registry external callbacks post
// completions through.
type Scheduler struct {
	eng      *engine
	handlers []VMHandler // the full handler stack, re-applied to every spawned task

	tasks       map[TaskId]*Task
	promises    map[PromiseId]*Promise
	doneHooks   map[TaskId][]func(v any, err error)
	parkOwner   map[*ContHandle]TaskId
	nextTask    TaskId
	nextPromise PromiseId
	ready       []TaskId
	currentTask TaskId

	// pendingResumes holds, for each task woken by complete during this
	// driver tick, the closure that actually re-enters its captured
	// continuation. runScheduler drains these instead of calling eng.eval
	// fresh, since a woken task must resume exactly where it parked.
	pendingResumes []pendingResume

	callbacks chan callbackCompletion // MPSC: any goroutine may send, only the driver receives
	pending   map[CallbackToken]PromiseId

	// Host-async escape pumping (AsyncRun only — nil under Run, where any
	// hostAsyncEscapeSignal is an immediate HostAsyncEscapeError instead).
	// asyncGroup shares one golang.org/x/sync/errgroup.Group across every
	// concurrently-awaited HostAsyncEscape for the whole run, so an error
	// from one cancels asyncCtx for the rest — exactly Gather's
	// first-error-cancels-siblings contract, applied to the host-async
	// half of spec.md §5 rather than the VM-native task half.
	asyncCtx        context.Context
	asyncGroup      *errgroup.Group
	asyncResumes    chan pendingResume
	asyncInFlight   int // escapes pumping concurrently; touched only by the driver goroutine
}

type callbackCompletion struct {
	token CallbackToken
	value any
	err   error
}

func newScheduler(eng *engine, handlers []VMHandler) *Scheduler {
	return &Scheduler{
		eng:       eng,
		handlers:  handlers,
		tasks:     make(map[TaskId]*Task),
		promises:  make(map[PromiseId]*Promise),
		doneHooks: make(map[TaskId][]func(any, error)),
		parkOwner: make(map[*ContHandle]TaskId),
		callbacks: make(chan callbackCompletion, 64),
		pending:   make(map[CallbackToken]PromiseId),
	}
}

func (s *Scheduler) spawn(p Program) *Task {
	s.nextTask++
	t := &Task{id: s.nextTask, program: WithHandlers(s.handlers, p), status: taskReady}
	s.tasks[t.id] = t
	s.ready = append(s.ready, t.id)
	return t
}

// enableAsync switches the scheduler into AsyncRun mode: host-async
// escapes pump concurrently instead of failing immediately.
func (s *Scheduler) enableAsync(ctx context.Context) {
	group, gctx := errgroup.WithContext(ctx)
	s.asyncCtx = gctx
	s.asyncGroup = group
	s.asyncResumes = make(chan pendingResume, 64)
}

// pumpEscape awaits esc.Awaitable on the shared errgroup and, once it
// resolves, computes the program that continues the task and queues it as
// a pendingResume for the driver loop to pick up — never blocking the
// caller (driveTask's own goroutine).
func (s *Scheduler) pumpEscape(id TaskId, esc *HostAsyncEscape) {
	t := s.tasks[id]
	t.status = taskParked
	s.asyncInFlight++
	s.asyncGroup.Go(func() error {
		v, err := esc.Awaitable.Await(s.asyncCtx)
		var next Expr[any]
		if err != nil {
			next = esc.ResumeError(err)
		} else {
			next = esc.Resume(v)
		}
		s.asyncResumes <- pendingResume{task: id, run: func() (any, error) {
			return s.eng.eval(scopeChain{}, next.Value, next.Frame)
		}}
		return err
	})
}

// drainAsync moves every pumped escape's continuation onto pendingResumes
// without blocking if none have resolved yet.
func (s *Scheduler) drainAsync() {
	if s.asyncResumes == nil {
		return
	}
	for {
		select {
		case r := <-s.asyncResumes:
			s.asyncInFlight--
			s.pendingResumes = append(s.pendingResumes, r)
		default:
			return
		}
	}
}

func (s *Scheduler) newPromise() *Promise {
	s.nextPromise++
	p := &Promise{id: s.nextPromise}
	s.promises[p.id] = p
	return p
}

// park records that k belongs to the task currently being driven and
// leaves it on p.waiters for complete to wake later.
func (s *Scheduler) park(p *Promise, k *ContHandle) {
	s.parkOwner[k] = s.currentTask
	p.waiters = append(p.waiters, k)
}

// complete resolves a promise and wakes every waiter: each parked task
// moves back onto the ready queue, driven by resuming its captured k.
func (s *Scheduler) complete(p *Promise, value any, err error) {
	if p.done {
		return
	}
	p.done, p.value, p.err = true, value, err
	waiters := p.waiters
	p.waiters = nil
	for _, k := range waiters {
		k := k
		owner := s.parkOwner[k]
		delete(s.parkOwner, k)
		s.tasks[owner].status = taskReady
		s.ready = append(s.ready, owner)
		s.pendingResumes = append(s.pendingResumes, pendingResume{task: owner, run: func() (any, error) {
			if err != nil {
				return nil, err
			}
			return k.resume(value)
		}})
	}
}

type pendingResume struct {
	task TaskId
	run  func() (any, error)
}

func (s *Scheduler) fireDone(id TaskId, v any, err error) {
	for _, f := range s.doneHooks[id] {
		f(v, err)
	}
	delete(s.doneHooks, id)
}

// Scheduler effect operations. These are ordinary Operation values handled
// by SchedulerHandler exactly like any user-defined effect.
type (
	spawnOp                 struct{ Program Program }
	gatherOp                struct{ Programs []Program }
	raceOp                  struct{ Programs []Program }
	createPromiseOp         struct{}
	awaitPromiseOp          struct{ PromiseId PromiseId }
	completePromiseOp       struct {
		PromiseId PromiseId
		Value     any
	}
	failPromiseOp struct {
		PromiseId PromiseId
		Err       error
	}
	createExternalPromiseOp struct{}
	parkOp                  struct{}
)

// Park suspends the current task until some other task or external
// callback completes the promise it registered itself on.
func Park() Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: parkOp{}, Resume: identityResume, Next: ReturnFrame{}}}
}

// Spawn starts p as a new concurrently-scheduled Task and resumes with its
// TaskId.
func Spawn(p Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: spawnOp{Program: p}, Resume: identityResume, Next: ReturnFrame{}}}
}

// Gather runs every program to completion and resumes with their results
// in input order (spec.md §5, testable scenario S6), regardless of
// completion order.
func Gather(programs ...Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: gatherOp{Programs: programs}, Resume: identityResume, Next: ReturnFrame{}}}
}

// Race resumes with the first program to complete; the rest continue
// running to completion in the background (their results are discarded).
func Race(programs ...Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: raceOp{Programs: programs}, Resume: identityResume, Next: ReturnFrame{}}}
}

// CreatePromise allocates a single-assignment result cell and resumes with
// its PromiseId.
func CreatePromise() Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: createPromiseOp{}, Resume: identityResume, Next: ReturnFrame{}}}
}

// AwaitPromise blocks the current task until id is completed, then resumes
// with its value (or fails the task if it was failed).
func AwaitPromise(id PromiseId) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: awaitPromiseOp{PromiseId: id}, Resume: identityResume, Next: ReturnFrame{}}}
}

// CompletePromise resolves id with value, waking every awaiting task.
func CompletePromise(id PromiseId, value any) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: completePromiseOp{PromiseId: id, Value: value}, Resume: identityResume, Next: ReturnFrame{}}}
}

// FailPromise resolves id with an error, propagated to every awaiting task.
func FailPromise(id PromiseId, err error) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: failPromiseOp{PromiseId: id, Err: err}, Resume: identityResume, Next: ReturnFrame{}}}
}

// CreateExternalPromise allocates a promise a host callback (outside any
// VM task, e.g. a network response arriving on its own goroutine) resolves
// via Scheduler.CompleteExternal. It resumes with [2]any{PromiseId, CallbackToken}.
func CreateExternalPromise() Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{Operation: createExternalPromiseOp{}, Resume: identityResume, Next: ReturnFrame{}}}
}

// CompleteExternal is the thread-safe entry point a host callback (on any
// goroutine) uses to resolve an external promise. It never blocks the
// caller: the completion is queued on Scheduler.callbacks (an MPSC
// channel) and applied the next time the driver drains its ready queue.
func (s *Scheduler) CompleteExternal(token CallbackToken, value any, err error) {
	s.callbacks <- callbackCompletion{token: token, value: value, err: err}
}

// drainCallbacks applies every external completion queued since the last
// drain, without blocking if none are pending.
func (s *Scheduler) drainCallbacks() {
	for {
		select {
		case cc := <-s.callbacks:
			if id, ok := s.pending[cc.token]; ok {
				delete(s.pending, cc.token)
				s.complete(s.promises[id], cc.value, cc.err)
			}
		default:
			return
		}
	}
}

// SchedulerHandler exposes s as a VMHandler for the scheduler operations
// above. driver.go's Run/AsyncRun put it in the handler stack every task
// runs under, inside KPCHandler and outside any user handler.
func SchedulerHandler(s *Scheduler) VMHandler {
	return func(op Operation, k *ContHandle) Program {
		switch o := op.(type) {
		case spawnOp:
			t := s.spawn(o.Program)
			return k.Resume(t.id)

		case createPromiseOp:
			p := s.newPromise()
			return k.Resume(p.id)

		case createExternalPromiseOp:
			p := s.newPromise()
			token := CallbackToken{uuid.New()}
			s.pending[token] = p.id
			return k.Resume([2]any{p.id, token})

		case completePromiseOp:
			s.complete(s.promises[o.PromiseId], o.Value, nil)
			return k.Resume(struct{}{})

		case failPromiseOp:
			s.complete(s.promises[o.PromiseId], nil, o.Err)
			return k.Resume(struct{}{})

		case awaitPromiseOp:
			p := s.promises[o.PromiseId]
			if p.done {
				if p.err != nil {
					return ExprThrowError[error, any](p.err)
				}
				return k.Resume(p.value)
			}
			s.park(p, k)
			return Park()

		case gatherOp:
			return s.gather(o.Programs, k)

		case raceOp:
			return s.race(o.Programs, k)

		default:
			return k.Delegate()
		}
	}
}

func (s *Scheduler) gather(programs []Program, k *ContHandle) Program {
	if len(programs) == 0 {
		return k.Resume([]any{})
	}
	ids := make([]TaskId, len(programs))
	for i, p := range programs {
		ids[i] = s.spawn(p).id
	}
	results := make([]any, len(programs))
	remaining := len(programs)
	done := s.newPromise()
	for i, id := range ids {
		i := i
		s.doneHooks[id] = append(s.doneHooks[id], func(v any, err error) {
			if err != nil {
				s.complete(done, nil, err)
				return
			}
			results[i] = v
			remaining--
			if remaining == 0 {
				s.complete(done, results, nil)
			}
		})
	}
	s.park(done, k)
	return Park()
}

func (s *Scheduler) race(programs []Program, k *ContHandle) Program {
	first := s.newPromise()
	for _, p := range programs {
		id := s.spawn(p).id
		s.doneHooks[id] = append(s.doneHooks[id], func(v any, err error) {
			s.complete(first, v, err)
		})
	}
	s.park(first, k)
	return Park()
}

// runScheduler is the driver loop: it spawns root as the first task and
// keeps driving ready and newly-woken tasks until root finishes, blocking
// only on s.callbacks when every task is either done or parked waiting on
// something outside the VM (spec.md §5's "no busy-waiting").
func (s *Scheduler) runScheduler(root Program) (any, error) {
	rootTask := s.spawn(root)
	var rootResult any
	var rootErr error
	rootDone := false
	s.doneHooks[rootTask.id] = append(s.doneHooks[rootTask.id], func(v any, err error) {
		rootResult, rootErr, rootDone = v, err, true
	})

	for {
		s.drainCallbacks()
		s.drainAsync()

		if resumes := s.pendingResumes; len(resumes) > 0 {
			s.pendingResumes = nil
			for _, r := range resumes {
				s.driveTask(r.task, r.run)
			}
			continue
		}

		if len(s.ready) > 0 {
			id := s.ready[0]
			s.ready = s.ready[1:]
			t := s.tasks[id]
			if t.status != taskReady {
				continue
			}
			s.driveTask(id, func() (any, error) {
				return s.eng.eval(scopeChain{}, t.program.Value, t.program.Frame)
			})
			continue
		}

		if rootDone {
			return rootResult, rootErr
		}

		waiting := 0
		for _, t := range s.tasks {
			if t.status == taskParked {
				waiting++
			}
		}
		if len(s.pending) == 0 && s.asyncInFlight == 0 {
			if waiting > 0 {
				return nil, newDeadlockError(waiting)
			}
			return nil, newInternalError("scheduler drained with no runnable or parked tasks")
		}

		// Every task is parked and only an external callback or a pumping
		// host-async escape can unblock one: block for whichever arrives
		// first rather than spinning. asyncResumes is nil under Run (no
		// asyncGroup), and a nil channel blocks forever in a select, which
		// is exactly "never this case" — the sentinel Go already gives us.
		select {
		case cc := <-s.callbacks:
			if id, ok := s.pending[cc.token]; ok {
				delete(s.pending, cc.token)
				s.complete(s.promises[id], cc.value, cc.err)
			}
		case r := <-s.asyncResumes:
			s.asyncInFlight--
			s.pendingResumes = append(s.pendingResumes, r)
		}
	}
}

// driveTask runs step (either a fresh task start or a captured
// continuation's resume) and classifies the outcome: completed, parked
// again, or failed.
func (s *Scheduler) driveTask(id TaskId, step func() (any, error)) {
	t := s.tasks[id]
	prevCurrent := s.currentTask
	s.currentTask = id
	t.status = taskRunning
	v, err := step()
	s.currentTask = prevCurrent
	var escape *hostAsyncEscapeSignal
	switch {
	case err == nil:
		t.status = taskDone
		t.result = v
		s.fireDone(id, v, nil)
	case errors.Is(err, errTaskParked):
		t.status = taskParked
	case errors.As(err, &escape):
		if s.asyncGroup == nil {
			t.status = taskFailed
			t.err = newHostAsyncEscapeError(escape.Escape)
			s.fireDone(id, nil, t.err)
			return
		}
		s.pumpEscape(id, escape.Escape)
	default:
		t.status = taskFailed
		t.err = err
		s.fireDone(id, nil, err)
	}
}
