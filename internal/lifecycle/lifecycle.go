// Package lifecycle runs registered hooks before the process terminates so
// that the editor hears about an abnormal exit instead of seeing a silent
// disconnect.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultGrace bounds how long hooks may run before the process exits.
const DefaultGrace = time.Second

// Hook is called with the exit code and the stack of the caller of Exit.
type Hook func(ctx context.Context, code int, stack string)

type namedHook struct {
	name string
	fn   Hook
}

// Supervisor owns the exit path of the process.
type Supervisor struct {
	mu    sync.Mutex
	hooks []namedHook
	grace time.Duration
	once  sync.Once
	exit  func(code int) // os.Exit, replaced in tests
}

// New returns a Supervisor whose hooks get at most grace to finish.
func New(grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Supervisor{grace: grace, exit: os.Exit}
}

// Register adds a hook. Hooks run in registration order.
func (s *Supervisor) Register(name string, fn Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

// Exit runs every hook and terminates the process with code. Only the first
// call has any effect; later calls block forever so that the caller never
// continues past a requested exit.
func (s *Supervisor) Exit(code int) {
	s.terminate(code, string(debug.Stack()))
}

// Recover is deferred at the top of long-lived goroutines. A panic is
// logged, reported through the hooks and turned into exit code 2.
func (s *Supervisor) Recover() {
	if r := recover(); r != nil {
		s.HandlePanic(r)
	}
}

// HandlePanic is Recover for callers that recover themselves, such as
// worker goroutines owned by another package. It must be called from the
// deferred function that recovered v so that the stack still shows the
// panic site.
func (s *Supervisor) HandlePanic(v any) {
	stack := fmt.Sprintf("panic: %v\n\n%s", v, debug.Stack())
	slog.Error("panic", "value", v, "stack", stack)
	s.terminate(2, stack)
}

func (s *Supervisor) terminate(code int, stack string) {
	ran := false
	s.once.Do(func() {
		ran = true
		s.runHooks(code, stack)
		s.exit(code)
	})
	if !ran {
		select {}
	}
}

func (s *Supervisor) runHooks(code int, stack string) {
	s.mu.Lock()
	hooks := append([]namedHook(nil), s.hooks...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, h := range hooks {
			runHook(ctx, h, code, stack)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("exit hooks did not finish in time", "grace", s.grace)
	}
}

func runHook(ctx context.Context, h namedHook, code int, stack string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("exit hook panicked", "hook", h.name, "value", r)
		}
	}()
	h.fn(ctx, code, stack)
}
