package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/satmissions/logging"
)

// ClockDriver advances every session's logical clock on a wall-clock ticker.
// Without a driver, missions only move when clients send tick commands.
type ClockDriver struct {
	Service  GameService
	Interval time.Duration
	Logger   logging.Logger

	// Listener, when set, is called after every round with the number of
	// sessions that changed
	Listener func(changed int)
}

// Run ticks until ctx is cancelled
func (d *ClockDriver) Run(ctx context.Context) error {
	if d.Interval <= 0 {
		<-ctx.Done()
		return nil
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	deltaMs := d.Interval.Milliseconds()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := d.Service.TickAll(ctx, deltaMs)
			if err != nil {
				logger.Warn(ctx, "clock tick failed", logging.Err(err))
			}
			if d.Listener != nil {
				d.Listener(changed)
			}
		}
	}
}
