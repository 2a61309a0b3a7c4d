package backend

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// Error bodies are read fully for classification but capped to keep a
// misbehaving backend from ballooning memory.
const maxErrorBodyBytes = 64 * 1024

var metricRetries = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "neptune",
	Subsystem: "fetcher",
	Name:      "request_retries",
	Help:      "Number of times a backend request was retried before completion.",
	Buckets:   []float64{0, 1, 2, 3, 4, 5, 10, 20},
})

// retryRoundTripper retries transient failures until either the soft or the
// hard budget fires. Terminal failures are classified into domain errors and
// returned without retrying.
type retryRoundTripper struct {
	next           http.RoundTripper
	cfg            RetryConfig
	attemptTimeout time.Duration
	project        string
	logger         log.Logger
	retriesCount   prometheus.Histogram
}

func newRetryRoundTripper(next http.RoundTripper, cfg RetryConfig, attemptTimeout time.Duration, project string, logger log.Logger) *retryRoundTripper {
	return &retryRoundTripper{
		next:           next,
		cfg:            cfg,
		attemptTimeout: attemptTimeout,
		project:        project,
		logger:         logger,
		retriesCount:   metricRetries,
	}
}

// RoundTrip implements http.RoundTripper
func (r *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	soft := start.Add(r.cfg.SoftTimeout)
	hard := start.Add(r.cfg.HardTimeout)
	bo := backoff.New(req.Context(), r.cfg.Backoff)

	attempts := 0
	defer func() {
		if attempts > 0 {
			r.retriesCount.Observe(float64(attempts - 1))
		}
	}()

	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)

	for {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		attempts++

		resp, err := r.attempt(req, attempts)

		var retryAfter time.Duration
		switch {
		case err != nil:
			// A dead request context means the caller gave up; everything
			// else at the transport level (timeouts, resets) is transient.
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastStatus, lastBody, lastErr = 0, "", err
		case resp.StatusCode/100 == 2:
			return resp, nil
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
			_ = resp.Body.Close()
			if terminal := terminalError(resp.StatusCode, body, r.project); terminal != nil {
				return nil, terminal
			}
			retryAfter = parseRetryAfter(resp.Header.Get(api.HeaderRetryAfter))
			lastStatus, lastBody, lastErr = resp.StatusCode, fetcherr.TruncateBody(body), nil
		}

		// A consumed body without GetBody cannot be replayed.
		if req.Body != nil && req.GetBody == nil {
			break
		}

		now := time.Now()
		if !now.Before(soft) || !now.Before(hard) {
			break
		}

		delay := retryAfter
		if retryAfter > 0 {
			// The server named its own delay: honor it even past the soft
			// deadline and restart the backoff ramp afterwards.
			bo.Reset()
		} else {
			delay = bo.NextDelay()
		}
		if now.Add(delay).After(hard) {
			break
		}

		level.Warn(r.logger).Log("msg", "backend request failed, retrying",
			"url", req.URL.Path, "attempt", attempts, "status", lastStatus, "err", lastErr, "delay", delay)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}

	return nil, &fetcherr.RetryError{
		Attempts:   attempts,
		Elapsed:    time.Since(start),
		LastStatus: lastStatus,
		LastBody:   lastBody,
		LastErr:    lastErr,
	}
}

// attempt runs one try with its own I/O deadline. The deadline is released
// when the response body is closed, not when the attempt returns, so callers
// can stream the body.
func (r *retryRoundTripper) attempt(req *http.Request, attempts int) (*http.Response, error) {
	ctx := req.Context()
	cancel := func() {}
	if r.attemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
	}

	attemptReq := req.Clone(ctx)
	if attempts > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		attemptReq.Body = body
	}

	resp, err := r.next.RoundTrip(attemptReq)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// terminalError maps a non-2xx response to a domain error, or nil when the
// status is retryable.
func terminalError(status int, body []byte, project string) error {
	switch {
	case status == http.StatusUnauthorized:
		return &fetcherr.InvalidCredentialsError{}
	case status == http.StatusTooManyRequests:
		return nil
	case status/100 == 5:
		return nil
	default:
		var errBody api.ErrorBody
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &errBody); err == nil &&
			errBody.ErrorType == api.ErrorTypeAccessDenied {
			return &fetcherr.ProjectInaccessibleError{Project: project}
		}
		return &fetcherr.UnexpectedResponseError{StatusCode: status, Body: fetcherr.TruncateBody(body)}
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
