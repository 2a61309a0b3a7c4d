package retrieval

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/collector"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
)

// DefinitionsParams restrict an attribute-definition query. A nil Selector
// matches every attribute. RunIDs, when set, restrict the search to
// attributes present on those runs.
type DefinitionsParams struct {
	Projects []attribute.ProjectIdentifier
	RunIDs   []attribute.SysID
	Selector nql.AttributeSelector
}

// MatchedDefinition pairs a definition with the aggregations of the
// selector leaf that matched it. The definition query itself ignores
// aggregations; value and series fetches pick them up from here.
type MatchedDefinition struct {
	Definition   attribute.Definition
	Aggregations []attribute.Aggregation
}

// AttributeDefinitions fans the selector's leaves out as concurrent
// paginated fetches on defsPool, deduplicates the union by (name, type),
// and emits each definition once, carrying the aggregations of its first
// matching leaf.
func (r *Retriever) AttributeDefinitions(ctx context.Context, defsPool *pipeline.Pool, p DefinitionsParams, emit func(MatchedDefinition) error) error {
	leaves := selectorLeaves(p.Selector)
	for _, leaf := range leaves {
		if err := leaf.Validate(); err != nil {
			return err
		}
	}

	producers := make([]func(context.Context, func(MatchedDefinition) error) error, 0, len(leaves))
	for _, leaf := range leaves {
		leaf := leaf
		producers = append(producers, func(ctx context.Context, emitDef func(MatchedDefinition) error) error {
			return r.definitionsForLeaf(ctx, p, leaf, emitDef)
		})
	}

	dedup := collector.NewDistinct(func(md MatchedDefinition) attribute.Definition { return md.Definition })
	return pipeline.ForkJoin(defsPool, func(md MatchedDefinition) error {
		if dedup.Collect(md) {
			return emit(md)
		}
		return nil
	}, producers...)
}

func (r *Retriever) definitionsForLeaf(ctx context.Context, p DefinitionsParams, leaf *nql.AttributeFilter, emit func(MatchedDefinition) error) error {
	var nameFilter *api.AttributeNameFilter
	must, mustNot := leaf.MustMatchRegexes(), leaf.MustNotMatchRegexes()
	if len(must)+len(mustNot) > 0 {
		nameFilter = &api.AttributeNameFilter{
			MustMatchRegexes:    must,
			MustNotMatchRegexes: mustNot,
		}
	}
	var typeFilter []api.AttributeTypeFilter
	for _, tag := range leaf.WireTypes() {
		typeFilter = append(typeFilter, api.AttributeTypeFilter{AttributeType: tag})
	}

	token := ""
	for {
		resp, err := r.client.QueryAttributeDefinitions(ctx, &api.QueryAttributeDefinitionsRequest{
			ProjectIdentifiers:  projectStrings(p.Projects),
			ExperimentIdsFilter: sysIDStrings(p.RunIDs),
			AttributeNameFilter: nameFilter,
			AttributeFilter:     typeFilter,
			NextPage:            api.NextPage{Limit: r.sizes.Definitions, NextPageToken: token},
		})
		if err != nil {
			return err
		}

		for _, entry := range resp.Entries {
			t, ok := attribute.TypeFromWire(entry.Type)
			if !ok {
				r.warnUnknownType(entry.Type)
				continue
			}
			md := MatchedDefinition{
				Definition:   attribute.Definition{Name: entry.Name, Type: t},
				Aggregations: leaf.Aggregations,
			}
			if err := emit(md); err != nil {
				return err
			}
		}

		token = resp.NextPage.NextPageToken
		if token == "" || len(resp.Entries) < r.sizes.Definitions {
			return nil
		}
	}
}

func selectorLeaves(s nql.AttributeSelector) []*nql.AttributeFilter {
	if s == nil {
		return []*nql.AttributeFilter{{}}
	}
	return s.Leaves()
}
