package hedgedmetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cristalhq/hedgedhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPublishFlushesOnStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt, stats, err := hedgedhttp.NewRoundTripperAndStats(10*time.Millisecond, 2, http.DefaultTransport)
	require.NoError(t, err)

	client := &http.Client{Transport: rt}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hedged_roundtrips_total"})
	stop := Publish(stats, counter)
	stop()

	// A fast upstream needs no hedges; the final flush still runs and the
	// counter never goes negative.
	require.GreaterOrEqual(t, testutil.ToFloat64(counter), 0.0)
}
