package fetch

import (
	"context"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
)

func TestFetchExperimentsTableSingleRun(t *testing.T) {
	prePoolOpts := goleak.IgnoreCurrent()

	var (
		mu       sync.Mutex
		searches []*api.SearchLeaderboardEntriesRequest
		defReqs  []*api.QueryAttributeDefinitionsRequest
		valReqs  []*api.QueryAttributesRequest
	)
	client := &fakeClient{
		search: func(req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			mu.Lock()
			searches = append(searches, req)
			mu.Unlock()
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{{SysID: "R-1", SysName: "exp-A"}},
			}, nil
		},
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			mu.Lock()
			defReqs = append(defReqs, req)
			mu.Unlock()
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "sys/id", Type: "string"}},
			}, nil
		},
		attributes: func(req *api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
			mu.Lock()
			valReqs = append(valReqs, req)
			mu.Unlock()
			return &api.QueryAttributesResponse{
				Entries: []api.ExperimentAttributesDTO{{
					ExperimentID: "R-1",
					Attributes: []api.AttributeDTO{{
						Name:             "sys/id",
						Type:             "string",
						StringProperties: &api.StringAttributeDTO{Value: "R-1"},
					}},
				}},
			}, nil
		},
	}

	c := newTestClient(client)
	table, err := c.FetchExperimentsTable(context.Background(), TableParams{
		Filter:     nql.Eq(nql.Attr("sys/name"), "exp-A"),
		Attributes: &nql.AttributeFilter{NameEq: []string{"sys/id"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "experiment", table.IndexName)
	assert.Equal(t, []string{"exp-A"}, table.Index)
	assert.Equal(t, []frame.Column{{Name: "sys/id"}}, table.Columns)
	assert.Equal(t, "R-1", table.Cell(0, "sys/id", ""))

	require.Len(t, searches, 1)
	assert.Equal(t, "team/proj", searches[0].Project)
	assert.Equal(t, []string{"experiment"}, searches[0].Types)
	assert.Equal(t, "`sys/name`:string == \"exp-A\"", searches[0].Query)
	require.NotNil(t, searches[0].SortBy)
	assert.Equal(t, api.SortBy{Name: "sys/creation_time", Type: "datetime"}, *searches[0].SortBy)
	assert.Equal(t, api.OrderDescending, searches[0].SortDirection)
	assert.Nil(t, searches[0].Limit)

	require.Len(t, defReqs, 1)
	assert.Equal(t, []string{"team/proj"}, defReqs[0].ProjectIdentifiers)
	assert.Equal(t, []string{"R-1"}, defReqs[0].ExperimentIdsFilter)
	require.NotNil(t, defReqs[0].AttributeNameFilter)
	assert.Equal(t, []string{"^(sys/id)$"}, defReqs[0].AttributeNameFilter.MustMatchRegexes)

	require.Len(t, valReqs, 1)
	assert.Equal(t, []string{"R-1"}, valReqs[0].ExperimentIdsFilter)
	assert.Equal(t, []string{"sys/id"}, valReqs[0].AttributeNamesFilter)

	goleak.VerifyNone(t, prePoolOpts)
}

func TestFetchExperimentsTableEmptyDomain(t *testing.T) {
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{}, nil
		},
	}

	c := newTestClient(client)
	table, err := c.FetchExperimentsTable(context.Background(), TableParams{})
	require.NoError(t, err)

	assert.Equal(t, "experiment", table.IndexName)
	assert.Empty(t, table.Index)
	assert.Empty(t, table.Columns)
	assert.Empty(t, table.Cells)
}

func TestFetchTableEmptySortDomainShortCircuits(t *testing.T) {
	calls := 0
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			calls++
			return &api.SearchLeaderboardEntriesResponse{}, nil
		},
	}

	c := newTestClient(client)
	sortBy := nql.Attr("params/depth")
	table, err := c.FetchExperimentsTable(context.Background(), TableParams{SortBy: &sortBy})
	require.NoError(t, err)

	// The run domain sampled for sort-by inference was empty, so the
	// identifier pipeline never starts.
	assert.Equal(t, 1, calls)
	assert.Equal(t, "experiment", table.IndexName)
	assert.Empty(t, table.Index)
}

func TestFetchRunsTableRowOrderAcrossPages(t *testing.T) {
	var mu sync.Mutex
	var searches []*api.SearchLeaderboardEntriesRequest
	client := &fakeClient{
		search: func(req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			mu.Lock()
			searches = append(searches, req)
			mu.Unlock()
			switch req.Pagination.NextPageToken {
			case "":
				return &api.SearchLeaderboardEntriesResponse{
					Entries: []api.LeaderboardEntry{
						{SysID: "R-2", CustomRunID: "beta"},
						{SysID: "R-1", CustomRunID: "alpha"},
					},
					NextPageToken: "t1",
				}, nil
			case "t1":
				return &api.SearchLeaderboardEntriesResponse{
					Entries: []api.LeaderboardEntry{{SysID: "R-3", CustomRunID: "gamma"}},
				}, nil
			}
			t.Errorf("unexpected page token %q", req.Pagination.NextPageToken)
			return nil, nil
		},
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "sys/id", Type: "string"}},
			}, nil
		},
		attributes: func(req *api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
			resp := &api.QueryAttributesResponse{}
			for _, id := range req.ExperimentIdsFilter {
				resp.Entries = append(resp.Entries, api.ExperimentAttributesDTO{
					ExperimentID: id,
					Attributes: []api.AttributeDTO{{
						Name:             "sys/id",
						Type:             "string",
						StringProperties: &api.StringAttributeDTO{Value: id},
					}},
				})
			}
			return resp, nil
		},
	}

	c := newClient(client, Config{MaxWorkers: 4, SysAttrsBatchSize: 2}, "team/proj", log.NewNopLogger())
	table, err := c.FetchRunsTable(context.Background(), TableParams{})
	require.NoError(t, err)

	// Rows follow first appearance in the server stream even though pages
	// are processed concurrently.
	assert.Equal(t, "run", table.IndexName)
	assert.Equal(t, []string{"beta", "alpha", "gamma"}, table.Index)
	expected := [][]any{{"R-2"}, {"R-1"}, {"R-3"}}
	if diff := cmp.Diff(expected, table.Cells); diff != "" {
		t.Errorf("unexpected cell grid: %v", diff)
	}

	require.Len(t, searches, 2)
	assert.Equal(t, []string{"run"}, searches[0].Types)
	assert.Equal(t, 2, searches[0].Pagination.Limit)
}

func TestFetchTableSelectorUnionDeduplicates(t *testing.T) {
	var (
		mu       sync.Mutex
		defCalls int
		valReqs  []*api.QueryAttributesRequest
	)
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{{SysID: "R-1", SysName: "exp-A"}},
			}, nil
		},
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			mu.Lock()
			defCalls++
			mu.Unlock()
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "sys/name", Type: "string"}},
			}, nil
		},
		attributes: func(req *api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
			mu.Lock()
			valReqs = append(valReqs, req)
			mu.Unlock()
			return &api.QueryAttributesResponse{
				Entries: []api.ExperimentAttributesDTO{{
					ExperimentID: "R-1",
					Attributes: []api.AttributeDTO{{
						Name:             "sys/name",
						Type:             "string",
						StringProperties: &api.StringAttributeDTO{Value: "exp-A"},
					}},
				}},
			}, nil
		},
	}

	selector := (&nql.AttributeFilter{NameEq: []string{"sys/name"}}).
		Or(&nql.AttributeFilter{NameMatchesAll: []string{"^sys/"}})

	c := newTestClient(client)
	table, err := c.FetchExperimentsTable(context.Background(), TableParams{Attributes: selector})
	require.NoError(t, err)

	// Both leaves matched the same definition: one fetch per leaf, but a
	// single deduplicated column and a single value request.
	assert.Equal(t, 2, defCalls)
	require.Len(t, valReqs, 1)
	assert.Equal(t, []string{"sys/name"}, valReqs[0].AttributeNamesFilter)
	assert.Equal(t, []frame.Column{{Name: "sys/name"}}, table.Columns)
	assert.Equal(t, "exp-A", table.Cell(0, "sys/name", ""))
}

func TestFetchTableSeriesAggregationColumns(t *testing.T) {
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{{SysID: "R-1", SysName: "exp-A"}},
			}, nil
		},
		definitions: func(*api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "metrics/loss", Type: attribute.TypeFloatSeries.Wire()}},
			}, nil
		},
		attributes: func(*api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
			return &api.QueryAttributesResponse{
				Entries: []api.ExperimentAttributesDTO{{
					ExperimentID: "R-1",
					Attributes: []api.AttributeDTO{{
						Name: "metrics/loss",
						Type: attribute.TypeFloatSeries.Wire(),
						FloatSeriesProperties: &api.FloatSeriesAttributeDTO{
							Last: floatPtr(0.1),
							Min:  floatPtr(0.05),
							Max:  floatPtr(0.9),
						},
					}},
				}},
			}, nil
		},
	}

	c := newTestClient(client)
	table, err := c.FetchExperimentsTable(context.Background(), TableParams{
		Attributes: &nql.AttributeFilter{
			NameEq:       []string{"metrics/loss"},
			Aggregations: []attribute.Aggregation{attribute.AggregationMin, attribute.AggregationMax},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []frame.Column{
		{Name: "metrics/loss", Sub: "max"},
		{Name: "metrics/loss", Sub: "min"},
	}, table.Columns)
	assert.Equal(t, 0.05, table.Cell(0, "metrics/loss", "min"))
	assert.Equal(t, 0.9, table.Cell(0, "metrics/loss", "max"))
	assert.Equal(t, -1, table.ColumnIndex("metrics/loss", "last"))
}

func TestFetchTableRejectsNonPositiveLimit(t *testing.T) {
	c := newTestClient(&fakeClient{})
	_, err := c.FetchExperimentsTable(context.Background(), TableParams{Limit: intPtr(0)})
	var userErr *fetcherr.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, err.Error(), "limit")
}

func TestFetchTableValueErrorStopsPipeline(t *testing.T) {
	prePoolOpts := goleak.IgnoreCurrent()

	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{{SysID: "R-1", SysName: "exp-A"}},
			}, nil
		},
		definitions: func(*api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "sys/id", Type: "string"}},
			}, nil
		},
		attributes: func(*api.QueryAttributesRequest) (*api.QueryAttributesResponse, error) {
			return nil, &fetcherr.UnexpectedResponseError{StatusCode: 500, Body: "boom"}
		},
	}

	c := newTestClient(client)
	_, err := c.FetchExperimentsTable(context.Background(), TableParams{})
	var respErr *fetcherr.UnexpectedResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, 500, respErr.StatusCode)

	goleak.VerifyNone(t, prePoolOpts)
}
