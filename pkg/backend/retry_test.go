package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		Backoff: backoff.Config{
			MinBackoff: time.Millisecond,
			MaxBackoff: 4 * time.Millisecond,
		},
		SoftTimeout: 250 * time.Millisecond,
		HardTimeout: time.Second,
	}
}

func retryClient(t *testing.T, cfg RetryConfig, attemptTimeout time.Duration) *http.Client {
	t.Helper()
	rt := newRetryRoundTripper(http.DefaultTransport, cfg, attemptTimeout, "team/proj", log.NewNopLogger())
	return &http.Client{Transport: rt}
}

func getErr(t *testing.T, client *http.Client, url string) error {
	t.Helper()
	resp, err := client.Get(url)
	if err == nil {
		resp.Body.Close()
	}
	return unwrapTransportError(err)
}

func TestRetryExhaustsBudgetOn429(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer srv.Close()

	err := getErr(t, retryClient(t, fastRetryConfig(), 0), srv.URL)
	require.Error(t, err)

	var retryErr *fetcherr.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.GreaterOrEqual(t, retryErr.Attempts, 3)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.LastStatus)
	assert.Contains(t, retryErr.LastBody, "slow down")
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		stamps = append(stamps, time.Now())
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := fastRetryConfig()
	cfg.SoftTimeout = 2500 * time.Millisecond
	cfg.HardTimeout = 10 * time.Second

	err := getErr(t, retryClient(t, cfg, 0), srv.URL)

	var retryErr *fetcherr.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.GreaterOrEqual(t, retryErr.Attempts, 3)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.LastStatus)

	// The server-mandated delay replaces the millisecond backoff.
	require.GreaterOrEqual(t, len(stamps), 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 900*time.Millisecond)
}

func TestNoRetryOn401(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := getErr(t, retryClient(t, fastRetryConfig(), 0), srv.URL)

	var credErr *fetcherr.InvalidCredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, int64(1), calls.Load())
}

func TestAccessDeniedMapsToProjectInaccessible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorType":"ACCESS_DENIED","message":"no access"}`))
	}))
	defer srv.Close()

	err := getErr(t, retryClient(t, fastRetryConfig(), 0), srv.URL)

	var projErr *fetcherr.ProjectInaccessibleError
	require.ErrorAs(t, err, &projErr)
	assert.Equal(t, "team/proj", projErr.Project)
}

func TestUnexpectedStatusIsTerminal(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nothing here"))
	}))
	defer srv.Close()

	err := getErr(t, retryClient(t, fastRetryConfig(), 0), srv.URL)

	var respErr *fetcherr.UnexpectedResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusNotFound, respErr.StatusCode)
	assert.Contains(t, respErr.Body, "nothing here")
	assert.Equal(t, int64(1), calls.Load())
}

func TestRetryRecoversAfter5xx(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Inc() <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := retryClient(t, fastRetryConfig(), 0).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var bodies []string
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if calls.Inc() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := retryClient(t, fastRetryConfig(), 0).Post(srv.URL, "application/json", strings.NewReader(`{"q":1}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, `{"q":1}`, bodies[0])
	assert.Equal(t, `{"q":1}`, bodies[1])
}

func TestPerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := fastRetryConfig()
	err := getErr(t, retryClient(t, cfg, 50*time.Millisecond), srv.URL)

	var retryErr *fetcherr.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.GreaterOrEqual(t, retryErr.Attempts, 2)
	assert.Error(t, retryErr.LastErr)
}

func TestCallerCancellationStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cfg := fastRetryConfig()
	cfg.Backoff.MinBackoff = 100 * time.Millisecond
	cfg.Backoff.MaxBackoff = 100 * time.Millisecond
	cfg.SoftTimeout = 10 * time.Second

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = retryClient(t, cfg, 0).Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 8*time.Second)
	assert.LessOrEqual(t, got, 10*time.Second)

	past := time.Now().Add(-10 * time.Second).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}
