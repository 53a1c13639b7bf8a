package main

import (
	"context"
	"log/slog"
)

// startWatch runs watch on its own goroutine with a context that stop
// cancels. stop returns only after watch has returned, so work it triggers
// cannot begin once stop is done. A panic in watch is passed to onPanic.
func startWatch(ctx context.Context, onPanic func(any), watch func(context.Context) error) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				onPanic(r)
			}
		}()
		if err := watch(ctx); err != nil {
			slog.Warn("config watch stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
