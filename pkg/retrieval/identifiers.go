package retrieval

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

// IdentifierLabel is one matching run with its user-facing label: the
// experiment name for experiment queries, the custom run id for run queries.
type IdentifierLabel struct {
	SysID attribute.SysID
	Label string
}

// IdentifierPage is one page of search results. Seq preserves server order
// across the merge channel, so table rows can follow first appearance even
// when downstream work completes out of order.
type IdentifierPage struct {
	Seq   int
	Items []IdentifierLabel
}

// SearchParams select runs or experiment heads within one project.
type SearchParams struct {
	Project       attribute.ProjectIdentifier
	Container     attribute.ContainerType
	Query         string
	SortBy        *api.SortBy
	SortDirection string
	Limit         *int
}

// SysIDLabels streams pages of matching run identifiers. The filter and sort
// are evaluated server-side; when Limit is set, the total number of items
// across all pages never exceeds it.
func (r *Retriever) SysIDLabels(ctx context.Context, p SearchParams, emit func(IdentifierPage) error) error {
	remaining := -1
	if p.Limit != nil {
		remaining = *p.Limit
	}

	token := ""
	for seq := 0; ; seq++ {
		pageLimit := r.sizes.SysAttrs
		if remaining >= 0 && remaining < pageLimit {
			pageLimit = remaining
		}
		if pageLimit == 0 {
			return nil
		}

		resp, err := r.client.SearchLeaderboardEntries(ctx, &api.SearchLeaderboardEntriesRequest{
			Project:       p.Project.String(),
			Types:         []string{containerWire(p.Container)},
			Query:         p.Query,
			SortBy:        p.SortBy,
			SortDirection: p.SortDirection,
			Limit:         p.Limit,
			Pagination:    api.NextPage{Limit: pageLimit, NextPageToken: token},
		})
		if err != nil {
			return err
		}
		if len(resp.Entries) == 0 {
			return nil
		}

		items := make([]IdentifierLabel, 0, len(resp.Entries))
		for _, entry := range resp.Entries {
			items = append(items, IdentifierLabel{
				SysID: attribute.SysID(entry.SysID),
				Label: entryLabel(p.Container, entry),
			})
		}
		if remaining >= 0 {
			remaining -= len(items)
		}
		if err := emit(IdentifierPage{Seq: seq, Items: items}); err != nil {
			return err
		}

		token = resp.NextPageToken
		if token == "" || len(resp.Entries) < pageLimit {
			return nil
		}
	}
}

func containerWire(c attribute.ContainerType) string {
	if c == attribute.ContainerExperiment {
		return api.ContainerTypeExperiment
	}
	return api.ContainerTypeRun
}

func entryLabel(c attribute.ContainerType, entry api.LeaderboardEntry) string {
	if c == attribute.ContainerExperiment {
		return entry.SysName
	}
	return entry.CustomRunID
}
