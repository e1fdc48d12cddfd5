package runner

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/maxvaer/hostwatch/internal/probe"
	"github.com/maxvaer/hostwatch/internal/recovery"
)

// ProbeFunc runs one connectivity check.
type ProbeFunc func(ctx context.Context) probe.Result

// Watchdog drives probe cycles and fires the recovery trigger once the
// configured number of consecutive failures is reached. It has two
// states, watching and recovering; recovering is terminal.
type Watchdog struct {
	Probe     ProbeFunc
	Trigger   recovery.Trigger
	Wait      time.Duration
	Threshold int
	Clock     clock.Clock
	Log       *zap.SugaredLogger
}

// Run loops until the context is cancelled or the threshold fires. The
// consecutive-failure counter is explicit loop state: reset to zero on
// any success, incremented on any failure regardless of kind. The
// recovery trigger runs exactly once and its error is returned as-is.
func (w *Watchdog) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := w.Probe(ctx)
		if res.Success {
			if failures > 0 {
				w.Log.Infow("target recovered", "after_failures", failures)
			}
			failures = 0
			w.Log.Infow("probe ok", "duration", res.Duration.Round(time.Millisecond))
		} else {
			failures++
			w.Log.Warnw("probe failed",
				"error", res.Err, "failures", failures, "threshold", w.Threshold)
			if failures >= w.Threshold {
				return w.Trigger.Trigger(ctx, failures)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Clock.After(w.Wait):
		}
	}
}
