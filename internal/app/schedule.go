package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aurumco/ryde/pkg/logx"
)

// ParseSchedule validates a standard 5-field cron spec for loop mode.
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// RunLoop runs the monitor repeatedly at cron boundaries, for environments
// without an external scheduler. Runs never overlap: the next boundary is
// computed only after the previous run finishes, matching the non-overlap
// guarantee the snapshot store relies on.
func (a *App) RunLoop(ctx context.Context, sched cron.Schedule) error {
	for {
		if err := a.Run(ctx); err != nil {
			// In loop mode a failed run is logged and the schedule keeps
			// going; transient Discord outages should not kill the loop.
			a.log.Error("run failed", logx.Err(err))
		}

		next := sched.Next(a.now())
		a.log.Info("sleeping until next run", logx.Time("next", next))
		if err := sleepCtx(ctx, time.Until(next)); err != nil {
			return nil
		}
	}
}
