// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import "context"

// Option configures a Run or AsyncRun invocation. A functional-options
// slice was chosen over a single options struct so driver.go can grow
// (a cache backend, the sync-bridge semaphore width, ...) without
// breaking either entrypoint's signature (SPEC_FULL.md §8).
type Option func(*runConfig)

type runConfig struct {
	handlers     []VMHandler
	env          map[string]any
	store        map[string]any
	onStep       func(ExecutionSnapshot)
	syncBridge   bool
	bridgeWidth  int64
	cacheBackend VMHandler
}

// WithUserHandlers installs additional user handlers innermost relative to
// the built-ins — exactly WithHandler(h0, WithHandler(h1, ..., program)),
// applied after env/store/writer/cache/KPC/scheduler so a user handler
// sees an ordinary effect before any of those built-ins gets a chance to
// decline it. The Await bridge that Run (without WithSyncBridge) and
// AsyncRun append sits inside the user handlers.
func WithUserHandlers(handlers ...VMHandler) Option {
	return func(c *runConfig) { c.handlers = append(c.handlers, handlers...) }
}

// WithEnv installs a read-only environment reachable via AskEnv/Local.
func WithEnv(env map[string]any) Option {
	return func(c *runConfig) { c.env = env }
}

// WithStore seeds the mutable Get/Put/Modify state.
func WithStore(store map[string]any) Option {
	return func(c *runConfig) { c.store = store }
}

// WithOnStep installs the single on_step observability hook (spec.md §6).
// doeff performs no I/O itself when calling it.
func WithOnStep(f func(ExecutionSnapshot)) Option {
	return func(c *runConfig) { c.onStep = f }
}

// WithCache installs a CacheHandler backed by backend for CacheGet/
// CachePut/CacheDelete/CacheExists (SPEC_FULL.md §7.5).
func WithCache(backend CacheBackend) Option {
	return func(c *runConfig) { c.cacheBackend = CacheHandler(backend) }
}

// WithSyncBridge installs a synchronous Await bridge bounded by width
// concurrent in-flight awaits (SPEC_FULL.md §7.6). Only meaningful under
// Run; AsyncRun always uses its own async pump regardless.
func WithSyncBridge(width int64) Option {
	return func(c *runConfig) { c.syncBridge, c.bridgeWidth = true, width }
}

func newRunConfig(opts []Option) *runConfig {
	c := &runConfig{bridgeWidth: 8}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunResult is what Run and each value AsyncRun's channel delivers
// carries: the program's outcome plus a snapshot of the mutable store at
// the moment it was produced.
type RunResult struct {
	Result   Either[error, any]
	RawStore map[string]any
}

// builtinHandlers assembles the always-on handler stack outermost first:
// env, store, writer, then the optional cache and sync-bridge, then KPC
// and scheduler, followed by the user handlers.
func builtinHandlers(c *runConfig, eng *engine, sched *Scheduler, ctx context.Context) ([]VMHandler, func() map[string]any, func() []any) {
	storeHandler, getStore := StoreHandler(c.store)
	writerHandler, getLog := WriterOutHandler()
	envHandler := EnvHandler(c.env)

	handlers := []VMHandler{envHandler, storeHandler, writerHandler}
	if c.cacheBackend != nil {
		handlers = append(handlers, c.cacheBackend)
	}
	if c.syncBridge {
		handlers = append(handlers, SyncBridgeHandler(ctx, c.bridgeWidth))
	}
	handlers = append(handlers, KPCHandler(), SchedulerHandler(sched))
	handlers = append(handlers, c.handlers...)
	return handlers, getStore, getLog
}

// Run drives program to completion synchronously on the calling
// goroutine. A Program that performs Await with no WithSyncBridge option
// installed fails with a HostAsyncEscapeError the moment it surfaces
// (spec.md §7 row 4) — Run never pumps an async escape itself.
func Run(program Program, opts ...Option) RunResult {
	c := newRunConfig(opts)
	eng := newEngine()
	eng.onStep = c.onStep
	sched := newScheduler(eng, nil)
	handlers, getStore, _ := builtinHandlers(c, eng, sched, context.Background())
	if !c.syncBridge {
		handlers = append(handlers, AsyncBridgeHandler())
	}
	sched.handlers = handlers

	// runScheduler spawns program as the root task, which wraps it with
	// sched.handlers exactly once via Scheduler.spawn — the same wrapping
	// every other spawned task gets, so no manual WithHandlers here.
	v, err := sched.runScheduler(program)
	return RunResult{Result: resultToEither(v, err), RawStore: getStore()}
}

// AsyncRun drives program on its own goroutine, pumping any host-async
// escape it surfaces via a golang.org/x/sync/errgroup-bounded concurrent
// bridge (SPEC_FULL.md §7.6), and delivers exactly one RunResult on the
// returned channel before closing it. The caller selects on the channel or
// on ctx, never blocking the calling goroutine itself — the idiomatic Go
// rendition of "yield to the event loop" for a cooperative VM (spec.md
// §4.3).
func AsyncRun(ctx context.Context, program Program, opts ...Option) <-chan RunResult {
	c := newRunConfig(opts)
	c.syncBridge = false
	out := make(chan RunResult, 1)
	go func() {
		defer close(out)
		eng := newEngine()
		eng.onStep = c.onStep
		sched := newScheduler(eng, nil)
		sched.enableAsync(ctx)
		handlers, getStore, _ := builtinHandlers(c, eng, sched, ctx)
		handlers = append(handlers, AsyncBridgeHandler())
		sched.handlers = handlers

		v, err := sched.runScheduler(program)
		_ = sched.asyncGroup.Wait() // drain any still-running awaits before returning
		select {
		case out <- RunResult{Result: resultToEither(v, err), RawStore: getStore()}:
		case <-ctx.Done():
		}
	}()
	return out
}

func resultToEither(v any, err error) Either[error, any] {
	if err != nil {
		return Left[error, any](err)
	}
	return Right[error, any](v)
}
