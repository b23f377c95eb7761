package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/orgloop/orgloop/internal/plugin"
)

const forceExitWatchdog = 5 * time.Second

// RunGuarded invokes fn under panic recovery and, on a caught panic,
// attempts a graceful Stop before returning the panic as an error. If
// Stop itself hangs, RunGuarded stops waiting after forceExitWatchdog
// and returns the panic error anyway; exiting is left to the caller
// (cmd/orgloop exits with status 1 on that error).
func (r *Runtime) RunGuarded(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			// The crash must reach every attached sink, not just the
			// process logger, before the stop sequence tears them down.
			r.logEntry(plugin.Entry{Phase: plugin.PhaseSystemError, Error: fmt.Sprint(rec), Timestamp: nowRFC3339()})
			r.log.Error("runtime: recovered panic, stopping", "panic", rec)
			r.forceStopWithWatchdog()
			err = fmt.Errorf("runtime: panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func (r *Runtime) forceStopWithWatchdog() {
	done := make(chan struct{})
	go func() {
		_ = r.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(forceExitWatchdog):
		r.log.Error("runtime: graceful stop exceeded watchdog, exiting")
	}
}
