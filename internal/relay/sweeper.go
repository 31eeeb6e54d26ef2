package relay

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coview/internal/observability"
	"coview/internal/security"
	"coview/internal/session"
)

// Sweeper drives the engine's two maintenance clocks: session expiry on a
// short period, rate-limit record reclamation on a longer one. Neither is
// connection-driven.
type Sweeper struct {
	registry   *session.Registry
	limiter    *security.JoinLimiter
	metrics    *observability.Metrics
	interval   time.Duration
	gcInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(registry *session.Registry, limiter *security.JoinLimiter, metrics *observability.Metrics, interval, gcInterval time.Duration) *Sweeper {
	return &Sweeper{
		registry:   registry,
		limiter:    limiter,
		metrics:    metrics,
		interval:   interval,
		gcInterval: gcInterval,
	}
}

// Start launches the sweep goroutine. Call Stop to shut it down.
func (sw *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel

	sw.wg.Add(1)
	go sw.run(ctx)
}

// Stop halts sweeping and waits for the goroutine to exit.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.wg.Wait()
}

func (sw *Sweeper) run(ctx context.Context) {
	defer sw.wg.Done()

	expiry := time.NewTicker(sw.interval)
	defer expiry.Stop()
	gc := time.NewTicker(sw.gcInterval)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			if n := sw.registry.RemoveExpired(time.Now()); n > 0 {
				sw.metrics.SessionsExpired.Add(float64(n))
			}
		case <-gc.C:
			if n := sw.limiter.Sweep(time.Now()); n > 0 {
				logrus.Debugf("🧹 Reclaimed %d stale rate-limit records", n)
			}
		}
	}
}
