// Package backend implements the HTTP client for the experiment-tracking
// backend: token exchange, a hedged and traced transport, transparent retry
// with budget enforcement, and typed wrappers for every endpoint the fetcher
// consumes.
package backend

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/util/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tracer = otel.Tracer("pkg/backend")

var metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "neptune",
	Subsystem: "fetcher",
	Name:      "request_duration_seconds",
	Help:      "Duration of backend requests in seconds, retries included.",
	Buckets:   prometheus.DefBuckets,
}, []string{"endpoint", "status_code"})

// Client is the slice of the backend the retrieval layer depends on. Tests
// substitute an in-memory implementation.
type Client interface {
	SearchLeaderboardEntries(ctx context.Context, req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error)
	QueryAttributeDefinitions(ctx context.Context, req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error)
	QueryAttributes(ctx context.Context, req *api.QueryAttributesRequest) (*api.QueryAttributesResponse, error)
	FloatSeriesValues(ctx context.Context, req *api.FloatSeriesValuesRequest) (*api.FloatSeriesValuesResponse, error)
	SeriesValues(ctx context.Context, req *api.SeriesValuesRequest) (*api.SeriesValuesResponse, error)
}

// HTTPClient talks to a real backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	stop    func()
}

// NewHTTPClient decodes the api token, wires the token exchange, and builds
// the transport stack. The project is used only to contextualize access
// errors.
func NewHTTPClient(cfg Config, project string) (*HTTPClient, error) {
	token, err := DecodeAPIToken(cfg.APIToken)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = token.APIAddress
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid backend url %q", baseURL)
	}

	logger := kitlog.With(log.Logger, "component", "backend")

	// The token exchange uses a plain client: auth cannot depend on itself
	// and bootstrap failures should surface immediately rather than retry
	// for the full budget.
	bootstrapClient := &http.Client{Timeout: cfg.RequestTimeout}
	provider := newOIDCTokenProvider(baseURL, token, bootstrapClient)

	rt, stopHedging, err := newTransport(cfg, project, provider, logger)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		baseURL: baseURL,
		// No overall client timeout: per-attempt deadlines live inside the
		// retry layer so long retry budgets are not cut short.
		client: &http.Client{Transport: rt},
		stop:   stopHedging,
	}, nil
}

// newClientForTransport is the test seam: no auth, caller-supplied stack.
func newClientForTransport(rt http.RoundTripper, baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: rt},
		stop:    func() {},
	}
}

// Close releases background resources held by the transport.
func (c *HTTPClient) Close() {
	c.stop()
	c.client.CloseIdleConnections()
}

func (c *HTTPClient) SearchLeaderboardEntries(ctx context.Context, req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
	resp := &api.SearchLeaderboardEntriesResponse{}
	if err := c.postFor(ctx, api.PathSearchLeaderboardEntries, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) QueryAttributeDefinitions(ctx context.Context, req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
	resp := &api.QueryAttributeDefinitionsResponse{}
	if err := c.postFor(ctx, api.PathQueryAttributeDefinitions, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) QueryAttributes(ctx context.Context, req *api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
	resp := &api.QueryAttributesResponse{}
	if err := c.postFor(ctx, api.PathQueryAttributes, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) FloatSeriesValues(ctx context.Context, req *api.FloatSeriesValuesRequest) (*api.FloatSeriesValuesResponse, error) {
	resp := &api.FloatSeriesValuesResponse{}
	if err := c.postFor(ctx, api.PathFloatSeriesValues, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) SeriesValues(ctx context.Context, req *api.SeriesValuesRequest) (*api.SeriesValuesResponse, error) {
	resp := &api.SeriesValuesResponse{}
	if err := c.postFor(ctx, api.PathSeriesValues, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// postFor sends a JSON POST and decodes the JSON response. Non-2xx handling
// lives in the retry layer; by the time an error reaches here it is already
// a domain error.
func (c *HTTPClient) postFor(ctx context.Context, path string, reqBody, respBody any) error {
	ctx, span := tracer.Start(ctx, "HTTPClient.postFor", trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	start := time.Now()
	statusCode := "error"
	defer func() {
		metricRequestDuration.WithLabelValues(path, statusCode).Observe(time.Since(start).Seconds())
	}()

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrapf(err, "encoding request for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderContentType, api.ContentTypeJSON)
	req.Header.Set(api.HeaderAccept, api.ContentTypeJSON)

	resp, err := c.client.Do(req)
	if err != nil {
		err = unwrapTransportError(err)
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()
	statusCode = strconv.Itoa(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response from %s", path)
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return &fetcherr.UnexpectedResponseError{StatusCode: resp.StatusCode, Body: fetcherr.TruncateBody(body)}
	}
	return nil
}

// unwrapTransportError strips the url.Error envelope the http client wraps
// around round-tripper failures so domain errors keep their types.
func unwrapTransportError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		switch urlErr.Err.(type) {
		case *fetcherr.RetryError,
			*fetcherr.InvalidCredentialsError,
			*fetcherr.ProjectInaccessibleError,
			*fetcherr.UnexpectedResponseError:
			return urlErr.Err
		}
	}
	return err
}
