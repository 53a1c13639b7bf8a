package lifecycle

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func newTestSupervisor(grace time.Duration) (*Supervisor, *exitRecorder) {
	rec := &exitRecorder{}
	s := New(grace)
	s.exit = rec.exit
	return s, rec
}

func TestExitRunsHooksInOrder(t *testing.T) {
	s, rec := newTestSupervisor(time.Second)

	var order []string
	var gotCode int
	var gotStack string
	s.Register("first", func(_ context.Context, code int, stack string) {
		order = append(order, "first")
		gotCode, gotStack = code, stack
	})
	s.Register("second", func(context.Context, int, string) {
		order = append(order, "second")
	})

	s.Exit(3)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("hooks ran as %v", order)
	}
	if gotCode != 3 {
		t.Errorf("hook got code %d, want 3", gotCode)
	}
	if !strings.Contains(gotStack, "TestExitRunsHooksInOrder") {
		t.Errorf("stack does not name the caller: %q", gotStack)
	}
	if len(rec.codes) != 1 || rec.codes[0] != 3 {
		t.Errorf("exit called with %v, want [3]", rec.codes)
	}
}

func TestExitBoundedByGrace(t *testing.T) {
	s, rec := newTestSupervisor(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	s.Register("stuck", func(ctx context.Context, _ int, _ string) {
		<-release
	})

	start := time.Now()
	s.Exit(1)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Exit took %v, want about the grace period", elapsed)
	}
	if len(rec.codes) != 1 || rec.codes[0] != 1 {
		t.Errorf("exit called with %v, want [1]", rec.codes)
	}
}

func TestHookPanicDoesNotStopOthers(t *testing.T) {
	s, rec := newTestSupervisor(time.Second)
	called := false
	s.Register("bad", func(context.Context, int, string) { panic("boom") })
	s.Register("good", func(context.Context, int, string) { called = true })

	s.Exit(0)

	if !called {
		t.Error("hook after a panicking hook did not run")
	}
	if len(rec.codes) != 1 {
		t.Errorf("exit called %d times, want 1", len(rec.codes))
	}
}

func TestRecoverReportsPanic(t *testing.T) {
	s, rec := newTestSupervisor(time.Second)
	var gotCode int
	var gotStack string
	s.Register("notify", func(_ context.Context, code int, stack string) {
		gotCode, gotStack = code, stack
	})

	func() {
		defer s.Recover()
		panic("inspection exploded")
	}()

	if gotCode != 2 {
		t.Errorf("code = %d, want 2", gotCode)
	}
	if !strings.HasPrefix(gotStack, "panic: inspection exploded") {
		t.Errorf("stack = %q", gotStack)
	}
	if len(rec.codes) != 1 || rec.codes[0] != 2 {
		t.Errorf("exit called with %v, want [2]", rec.codes)
	}
}

func TestHandlePanicFromWorkerGoroutine(t *testing.T) {
	s, rec := newTestSupervisor(time.Second)
	stacks := make(chan string, 1)
	s.Register("notify", func(_ context.Context, _ int, stack string) {
		stacks <- stack
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				s.HandlePanic(r)
			}
		}()
		panic("worker exploded")
	}()
	<-done

	select {
	case stack := <-stacks:
		if !strings.HasPrefix(stack, "panic: worker exploded") {
			t.Errorf("stack = %q", stack)
		}
	default:
		t.Fatal("hook did not run")
	}
	if len(rec.codes) != 1 || rec.codes[0] != 2 {
		t.Errorf("exit called with %v, want [2]", rec.codes)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	s, rec := newTestSupervisor(time.Second)
	func() {
		defer s.Recover()
	}()
	if len(rec.codes) != 0 {
		t.Errorf("exit called without panic: %v", rec.codes)
	}
}
