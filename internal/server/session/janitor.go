package session

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/thejerf/abtime"
)

// JanitorTickerID identifies the janitor's ticker on a manual clock.
const JanitorTickerID = 1

// Janitor periodically purges expired sessions. It is a suture.Service.
type Janitor struct {
	registry *Registry
	interval time.Duration
	clock    abtime.AbstractTime
	logger   logging.Logger
}

func NewJanitor(r *Registry, interval time.Duration, clock abtime.AbstractTime, l logging.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	if l == nil {
		l = logging.Nop()
	}
	return &Janitor{registry: r, interval: interval, clock: clock, logger: l}
}

// Serve runs until ctx is cancelled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.interval, JanitorTickerID)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Channel():
			if n := j.registry.Purge(); n > 0 {
				j.logger.Debug(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

func (j *Janitor) String() string { return "session janitor" }
