package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron"
)

// Schedule runs job on the cron spec (e.g. "@every 1h" or "0 0 6 * * *")
// until the context ends. Runs that would overlap a still-running job are
// skipped.
func Schedule(ctx context.Context, spec string, job func(ctx context.Context), logger *slog.Logger) error {
	c := cron.New()

	running := make(chan struct{}, 1)
	err := c.AddFunc(spec, func() {
		select {
		case running <- struct{}{}:
		default:
			logger.Warn("previous scheduled run still active, skipping", "spec", spec)
			return
		}
		defer func() { <-running }()

		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	logger.Info("schedule started", "spec", spec)
	c.Start()
	<-ctx.Done()
	c.Stop()
	logger.Info("schedule stopped", "spec", spec)
	return nil
}
