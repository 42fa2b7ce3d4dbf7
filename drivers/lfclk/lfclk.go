// Package lfclk starts the low-frequency clock that timekeeping peripherals
// run from.
package lfclk

import (
	"context"
	"runtime"

	"boarddemo-go/services/hal/core"
)

// Start selects src, clears the started event, triggers the start task and
// spins until the hardware reports the clock running. There is no timeout:
// a clock that never starts hangs the caller.
func Start(clk core.LFClock, src core.ClockSource) {
	_ = StartContext(context.Background(), clk, src)
}

// StartContext is Start with a way out: it returns ctx.Err() if ctx ends
// before the clock reports started.
func StartContext(ctx context.Context, clk core.LFClock, src core.ClockSource) error {
	clk.SelectSource(src)
	clk.ClearStarted()
	clk.TriggerStart()

	done := ctx.Done()
	for !clk.Started() {
		if done != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
		runtime.Gosched()
	}
	return nil
}
