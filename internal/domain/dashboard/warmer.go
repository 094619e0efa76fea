package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Warmer periodically recomputes the analytics so admins rarely pay for the
// aggregate queries. It only writes to the cache.
type Warmer struct {
	svc     *Service
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWarmer schedules svc.RefreshAnalytics on schedule, a standard cron
// expression or a descriptor such as "@every 5m".
func NewWarmer(svc *Service, schedule string, logger zerolog.Logger) (*Warmer, error) {
	w := &Warmer{
		svc:     svc,
		cron:    cron.New(cron.WithLocation(svc.loc)),
		timeout: 30 * time.Second,
		logger:  logger,
	}
	if _, err := w.cron.AddFunc(schedule, w.run); err != nil {
		return nil, fmt.Errorf("invalid dashboard refresh schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *Warmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	start := time.Now()
	if err := w.svc.RefreshAnalytics(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("dashboard analytics refresh failed")
		return
	}
	w.logger.Debug().Dur("took", time.Since(start)).Msg("dashboard analytics refreshed")
}

// Start runs one refresh immediately and then follows the schedule.
func (w *Warmer) Start() {
	go w.run()
	w.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or ctx
// to expire.
func (w *Warmer) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
