package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/metrics"
)

// DefaultRefreshInterval is the periodic liveness interval of spec.md §4.4
// ("every 10 seconds (configurable)").
const DefaultRefreshInterval = 10 * time.Second

// RunPeriodicRefresh races a ticker against ctx, sending build()'s result
// through client on each tick, per spec.md §5: "the periodic refresh
// interval uses a timer raced against the stop token so shutdown
// pre-empts the next wake." It returns once ctx is done, satisfying
// spec.md §8 property 7 (the task exits within one interval of the stop
// token firing, since ticker and ctx.Done are raced in the same select).
//
// Grounded on the original Rust worker's send_periodic_refreshes_to_coordinator,
// which races future::timeout(interval) against the stop token in a loop.
func RunPeriodicRefresh(ctx context.Context, interval time.Duration, client Client, build func() RefreshWorker, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r := build()
			if err := client.Refresh(ctx, r); err != nil {
				logger.Warn("periodic refresh failed, will retry next tick", zap.Error(err))
				metrics.CoordinatorRefreshTotal.WithLabelValues("error").Inc()
			} else {
				metrics.CoordinatorRefreshTotal.WithLabelValues("success").Inc()
			}
		}
	}
}
