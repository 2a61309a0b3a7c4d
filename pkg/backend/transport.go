package backend

import (
	"crypto/tls"
	"net/http"

	"github.com/cristalhq/hedgedhttp"
	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/hedgedmetrics"
)

var metricHedgedRoundTrips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "neptune",
	Subsystem: "fetcher",
	Name:      "hedged_roundtrips_total",
	Help:      "Total number of hedged backend requests.",
})

// newTransport assembles the round-tripper stack, innermost first:
// TLS transport, transparent gzip, tracing, optional hedging, bearer auth,
// retry. The returned stop function releases the hedging metrics publisher.
func newTransport(cfg Config, project string, provider TokenProvider, logger log.Logger) (http.RoundTripper, func(), error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipTLSVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var rt http.RoundTripper = gzhttp.Transport(base)
	rt = otelhttp.NewTransport(rt)
	rt = &requestIDRoundTripper{next: rt}

	stop := func() {}
	if cfg.HedgeRequestsAt > 0 {
		hedged, stats, err := hedgedhttp.NewRoundTripperAndStats(cfg.HedgeRequestsAt, cfg.HedgeRequestsUpTo, rt)
		if err != nil {
			return nil, nil, err
		}
		stop = hedgedmetrics.Publish(stats, metricHedgedRoundTrips)
		rt = hedged
	}

	rt = &authRoundTripper{next: rt, provider: provider}
	rt = newRetryRoundTripper(rt, cfg.Retry, cfg.RequestTimeout, project, logger)
	return rt, stop, nil
}

// authRoundTripper injects the bearer token. A nil provider leaves requests
// untouched.
type authRoundTripper struct {
	next     http.RoundTripper
	provider TokenProvider
}

func (a *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if a.provider == nil {
		return a.next.RoundTrip(req)
	}
	token, err := a.provider.Token(req.Context())
	if err != nil {
		return nil, err
	}
	if token == nil {
		return a.next.RoundTrip(req)
	}
	authed := req.Clone(req.Context())
	token.SetAuthHeader(authed)
	return a.next.RoundTrip(authed)
}

// requestIDRoundTripper tags every attempt with a fresh client request id.
// It sits below retry and hedging so server logs can tell duplicates apart.
type requestIDRoundTripper struct {
	next http.RoundTripper
}

func (r *requestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	tagged := req.Clone(req.Context())
	tagged.Header.Set(api.HeaderRequestID, uuid.NewString())
	return r.next.RoundTrip(tagged)
}
