package fetch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
)

func TestListExperimentsHonorsLimit(t *testing.T) {
	var searches []*api.SearchLeaderboardEntriesRequest
	client := &fakeClient{
		search: func(req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			searches = append(searches, req)
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{
					{SysID: "R-2", SysName: "exp-b"},
					{SysID: "R-1", SysName: "exp-a"},
				},
			}, nil
		},
	}

	c := newTestClient(client)
	names, err := c.ListExperiments(context.Background(), ListParams{Limit: intPtr(2)})
	require.NoError(t, err)

	assert.Equal(t, []string{"exp-b", "exp-a"}, names)
	require.Len(t, searches, 1)
	assert.Equal(t, []string{"experiment"}, searches[0].Types)
	assert.Equal(t, api.OrderDescending, searches[0].SortDirection)
	require.NotNil(t, searches[0].Limit)
	assert.Equal(t, 2, *searches[0].Limit)
	assert.Equal(t, 2, searches[0].Pagination.Limit)
}

func TestListRunsLabelsByCustomRunID(t *testing.T) {
	client := &fakeClient{
		search: func(req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			assert.Equal(t, []string{"run"}, req.Types)
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{
					{SysID: "R-1", CustomRunID: "seed-17"},
					{SysID: "R-2"},
				},
			}, nil
		},
	}

	c := newTestClient(client)
	ids, err := c.ListRuns(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"seed-17", ""}, ids)
}

func TestListAttributesWholeProject(t *testing.T) {
	var (
		mu      sync.Mutex
		defReqs []*api.QueryAttributeDefinitionsRequest
	)
	client := &fakeClient{
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			mu.Lock()
			defReqs = append(defReqs, req)
			mu.Unlock()
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{
					{Name: "b", Type: "float"},
					{Name: "a", Type: "string"},
					{Name: "b", Type: "float"},
					{Name: "a", Type: attribute.TypeFloatSeries.Wire()},
				},
			}, nil
		},
	}

	c := newTestClient(client)
	defs, err := c.ListAttributes(context.Background(), ListAttributesParams{})
	require.NoError(t, err)

	assert.Equal(t, []attribute.Definition{
		{Name: "a", Type: attribute.TypeFloatSeries},
		{Name: "a", Type: attribute.TypeString},
		{Name: "b", Type: attribute.TypeFloat},
	}, defs)

	require.Len(t, defReqs, 1)
	assert.Empty(t, defReqs[0].ExperimentIdsFilter)
	assert.Nil(t, defReqs[0].AttributeNameFilter)
}

func TestListAttributesWithinFilteredRuns(t *testing.T) {
	var (
		mu      sync.Mutex
		defReqs []*api.QueryAttributeDefinitionsRequest
	)
	client := &fakeClient{
		search: func(req *api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			assert.Equal(t, "`sys/name`:string == \"exp-a\"", req.Query)
			return &api.SearchLeaderboardEntriesResponse{
				Entries: []api.LeaderboardEntry{
					{SysID: "R-1", SysName: "exp-a"},
					{SysID: "R-2", SysName: "exp-a"},
				},
			}, nil
		},
		definitions: func(req *api.QueryAttributeDefinitionsRequest) (*api.QueryAttributeDefinitionsResponse, error) {
			mu.Lock()
			defReqs = append(defReqs, req)
			mu.Unlock()
			return &api.QueryAttributeDefinitionsResponse{
				Entries: []api.AttributeDefinitionDTO{{Name: "cfg/lr", Type: "float"}},
			}, nil
		},
	}

	c := newTestClient(client)
	defs, err := c.ListAttributes(context.Background(), ListAttributesParams{Filter: nql.Name("exp-a")})
	require.NoError(t, err)

	assert.Equal(t, []attribute.Definition{{Name: "cfg/lr", Type: attribute.TypeFloat}}, defs)
	require.Len(t, defReqs, 1)
	assert.Equal(t, []string{"R-1", "R-2"}, defReqs[0].ExperimentIdsFilter)
}

func TestListAttributesEmptyDomain(t *testing.T) {
	client := &fakeClient{
		search: func(*api.SearchLeaderboardEntriesRequest) (*api.SearchLeaderboardEntriesResponse, error) {
			return &api.SearchLeaderboardEntriesResponse{}, nil
		},
	}

	c := newTestClient(client)
	defs, err := c.ListAttributes(context.Background(), ListAttributesParams{Filter: nql.Name("gone")})
	require.NoError(t, err)
	assert.Nil(t, defs)
}
