// Package hedgedmetrics exposes hedged-request counts as a Prometheus
// counter.
package hedgedmetrics

import (
	"time"

	"github.com/cristalhq/hedgedhttp"
	"github.com/prometheus/client_golang/prometheus"
)

const publishInterval = 10 * time.Second

// Publish flushes the number of extra round trips issued by hedging into the
// counter every 10 seconds. The returned stop function ends publishing and
// flushes once more.
func Publish(s *hedgedhttp.Stats, counter prometheus.Counter) (stop func()) {
	var lastTotal uint64
	flush := func() {
		snap := s.Snapshot()
		total := snap.ActualRoundTrips - snap.RequestedRoundTrips
		if total < lastTotal {
			return
		}
		counter.Add(float64(total - lastTotal))
		lastTotal = total
	}

	ticker := time.NewTicker(publishInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				flush()
			case <-done:
				flush()
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
