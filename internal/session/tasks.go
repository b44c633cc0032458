package session

import (
	"context"
	"sync"
)

// Purpose is the logical key of a cancellable task. At most one task per
// purpose runs at a time; spawning a new one cancels its predecessor.
type Purpose string

const (
	PurposeStream       Purpose = "stream"
	PurposeFinalize     Purpose = "finalize"
	PurposeEnhance      Purpose = "enhance"
	PurposeLevelMonitor Purpose = "level-monitor"
	PurposeSilenceCheck Purpose = "silence-check"
	PurposeKeyListener  Purpose = "key-listener"
	PurposeDebounce     Purpose = "debounce"
	PurposeScreenCtx    Purpose = "screen-context"
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// taskRegistry tracks the session's cancellable units of work by purpose.
// Cancelling an absent purpose is a no-op, so cancellation may be issued
// speculatively on every stop or cancel path.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[Purpose]*task
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[Purpose]*task)}
}

// Spawn cancels any running task with the same purpose, waits for it to
// return, then runs fn in a new goroutine under a context derived from
// parent. fn must return promptly once its context is cancelled.
func (r *taskRegistry) Spawn(parent context.Context, purpose Purpose, fn func(ctx context.Context)) {
	r.Cancel(purpose)

	ctx, cancel := context.WithCancel(parent)
	t := &task{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.tasks[purpose] = t
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		defer cancel()
		fn(ctx)

		r.mu.Lock()
		if r.tasks[purpose] == t {
			delete(r.tasks, purpose)
		}
		r.mu.Unlock()
	}()
}

// Cancel aborts the task registered under purpose, if any, and waits for
// its goroutine to return. Idempotent.
func (r *taskRegistry) Cancel(purpose Purpose) {
	r.mu.Lock()
	t := r.tasks[purpose]
	delete(r.tasks, purpose)
	r.mu.Unlock()

	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// CancelAll aborts every registered task and waits for all of them.
func (r *taskRegistry) CancelAll(except ...Purpose) {
	skip := make(map[Purpose]bool, len(except))
	for _, p := range except {
		skip[p] = true
	}

	r.mu.Lock()
	doomed := make([]*task, 0, len(r.tasks))
	for p, t := range r.tasks {
		if skip[p] {
			continue
		}
		doomed = append(doomed, t)
		delete(r.tasks, p)
	}
	r.mu.Unlock()

	for _, t := range doomed {
		t.cancel()
	}
	for _, t := range doomed {
		<-t.done
	}
}

// Running reports whether a task is registered under purpose. The answer
// may be stale by the time the caller acts on it; use only for diagnostics.
func (r *taskRegistry) Running(purpose Purpose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[purpose]
	return ok
}
