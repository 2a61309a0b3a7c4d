package fetch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
)

func TestFetchMetricsTailReturnsNewestAscending(t *testing.T) {
	prePoolOpts := goleak.IgnoreCurrent()

	var (
		mu        sync.Mutex
		floatReqs []*api.FloatSeriesValuesRequest
	)
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{
					{SysID: "R-1", SysName: "exp-a"},
					{SysID: "R-2", SysName: "exp-b"},
				},
			}, nil
		},
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "metrics/loss", Type: attribute.TypeFloatSeries.Wire()}},
			}, nil
		},
		floatSeries: func(req *api.FloatSeriesValuesRequest) (*api.FloatSeriesValuesResponse, error) {
			mu.Lock()
			floatReqs = append(floatReqs, req)
			mu.Unlock()
			resp := &api.FloatSeriesValuesResponse{}
			for _, r := range req.Requests {
				base := 0.0
				if strings.HasSuffix(r.Series.Holder.Identifier, "R-2") {
					base = 1.0
				}
				resp.Series = append(resp.Series, api.FloatSeriesValuesDTO{
					RequestID: r.RequestID,
					Values: []api.FloatPointDTO{
						{Step: 9, Value: base + 0.9, TimestampMillis: 1900},
						{Step: 8, Value: base + 0.8, TimestampMillis: 1800},
						{Step: 7, Value: base + 0.7, TimestampMillis: 1700},
					},
				})
			}
			return resp, nil
		},
	}

	c := newTestClient(client)
	metrics, err := c.FetchMetrics(context.Background(), MetricsParams{TailLimit: intPtr(3)})
	require.NoError(t, err)

	// Two runs with ten-point histories, tail 3: the newest three points of
	// each, back in ascending step order.
	assert.Equal(t, []string{"exp-a", "exp-b"}, metrics.Labels)
	require.Len(t, metrics.Index, 6)
	steps := make([]float64, 0, len(metrics.Index))
	for _, key := range metrics.Index {
		steps = append(steps, key.Step)
	}
	assert.Equal(t, []float64{7, 8, 9, 7, 8, 9}, steps)
	assert.Equal(t, "exp-a", metrics.LabelAt(0))
	assert.Equal(t, "exp-b", metrics.LabelAt(5))

	assert.Equal(t, []frame.Column{{Name: "metrics/loss"}}, metrics.Columns)
	col := metrics.ColumnIndex("metrics/loss", "")
	assert.Equal(t, 0.7, metrics.Cells[0][col])
	assert.Equal(t, 0.9, metrics.Cells[2][col])
	assert.Equal(t, 1.7, metrics.Cells[3][col])
	assert.Equal(t, 1.9, metrics.Cells[5][col])

	require.Len(t, floatReqs, 1)
	req := floatReqs[0]
	assert.Equal(t, api.OrderDescending, req.Order)
	assert.Equal(t, 3, req.PerSeriesPointsLimit)
	require.Len(t, req.Requests, 2)
	assert.Equal(t, "metrics/loss", req.Requests[0].Series.Attribute)
	assert.Equal(t, api.LineageNone, req.Requests[0].Series.Lineage)

	goleak.VerifyNone(t, prePoolOpts)
}

func TestFetchMetricsPreviewAndTimeColumns(t *testing.T) {
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{{SysID: "R-1", SysName: "exp-a"}},
			}, nil
		},
		definitions: func(*api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "metrics/loss", Type: attribute.TypeFloatSeries.Wire()}},
			}, nil
		},
		floatSeries: func(req *api.FloatSeriesValuesRequest) (*api.FloatSeriesValuesResponse, error) {
			resp := &api.FloatSeriesValuesResponse{}
			for _, r := range req.Requests {
				assert.True(t, r.Series.IncludePreview)
				resp.Series = append(resp.Series, api.FloatSeriesValuesDTO{
					RequestID: r.RequestID,
					Values: []api.FloatPointDTO{{
						Step:            1,
						Value:           2.5,
						TimestampMillis: 1500,
						IsPreview:       true,
						CompletionRatio: 0.5,
					}},
				})
			}
			return resp, nil
		},
	}

	c := newTestClient(client)
	metrics, err := c.FetchMetrics(context.Background(), MetricsParams{
		IncludeTime:     "absolute",
		IncludePreviews: true,
		TypeSuffix:      true,
	})
	require.NoError(t, err)

	name := "metrics/loss:float_series"
	require.Len(t, metrics.Index, 1)
	assert.Equal(t, 2.5, metrics.Cells[0][metrics.ColumnIndex(name, "value")])
	assert.Equal(t, time.UnixMilli(1500).UTC(), metrics.Cells[0][metrics.ColumnIndex(name, "absolute_time")])
	assert.Equal(t, true, metrics.Cells[0][metrics.ColumnIndex(name, "is_preview")])
	assert.Equal(t, 0.5, metrics.Cells[0][metrics.ColumnIndex(name, "preview_completion")])
}

func TestFetchMetricsRejectsInvalidParams(t *testing.T) {
	c := newTestClient(&fakeClient{})

	for _, tc := range []struct {
		name   string
		params MetricsParams
	}{
		{"zero tail", MetricsParams{TailLimit: intPtr(0)}},
		{"inverted step range", MetricsParams{StepFrom: floatPtr(10), StepTo: floatPtr(5)}},
		{"unsupported time mode", MetricsParams{IncludeTime: "relative"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.FetchMetrics(context.Background(), tc.params)
			var userErr *fetcherr.UserError
			require.ErrorAs(t, err, &userErr)
		})
	}
}

func TestFetchMetricsSelectorWithoutFloatSeries(t *testing.T) {
	c := newTestClient(&fakeClient{})
	metrics, err := c.FetchMetrics(context.Background(), MetricsParams{
		Attributes: &nql.AttributeFilter{TypeIn: []attribute.Type{attribute.TypeString}},
	})
	require.NoError(t, err)
	assert.Empty(t, metrics.Labels)
	assert.Empty(t, metrics.Index)
	assert.Empty(t, metrics.Columns)
}

func TestFetchMetricsEmptyRunDomain(t *testing.T) {
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{}, nil
		},
	}

	c := newTestClient(client)
	metrics, err := c.FetchMetrics(context.Background(), MetricsParams{})
	require.NoError(t, err)
	assert.Empty(t, metrics.Labels)
	assert.Empty(t, metrics.Index)
}
