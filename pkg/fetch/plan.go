package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/inference"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
)

const includeTimeAbsolute = "absolute"

// defaultSortBy orders runs newest first when the caller does not sort. It
// is fully typed, so planning it never touches the wire.
func defaultSortBy() nql.Attribute {
	return nql.TypedAttr("sys/creation_time", attribute.TypeDatetime)
}

// searchPlan is a filter and sort lowered to wire form, ready for the
// identifier search. runDomainEmpty short-circuits the query to an empty
// result: it is set when sort-by inference finds no matching runs.
type searchPlan struct {
	params         retrieval.SearchParams
	runDomainEmpty bool
}

// planSearch runs type inference over the filter and sort attribute and
// renders both. Filter inference failures surface before the sort attribute
// is attempted, mirroring the order a caller reasons in.
func (c *Client) planSearch(ctx context.Context, defsPool *pipeline.Pool, container attribute.ContainerType, filter nql.Filter, sortBy *nql.Attribute, ascending bool, limit *int) (searchPlan, error) {
	typed, _, err := c.inferrer.TypeFilter(ctx, defsPool, c.projects(), filter)
	if err != nil {
		return searchPlan{}, err
	}
	query, err := nql.ToQuery(typed)
	if err != nil {
		return searchPlan{}, err
	}

	// Inference types the attribute in place, so sort on a copy.
	sort := defaultSortBy()
	if sortBy != nil {
		sort = *sortBy
	}
	state, err := c.inferrer.TypeSortBy(ctx, defsPool, inference.SortByParams{
		Project:   c.project,
		Container: container,
		Query:     query,
	}, &sort)
	if err != nil {
		return searchPlan{}, err
	}
	if state.RunDomainEmpty {
		return searchPlan{runDomainEmpty: true}, nil
	}

	direction := api.OrderDescending
	if ascending {
		direction = api.OrderAscending
	}
	wireSort := &api.SortBy{Name: sort.Name, Type: sort.Type.Wire()}
	if sort.Aggregation != attribute.AggregationNone {
		wireSort.Aggregation = sort.Aggregation.String()
	}

	return searchPlan{params: retrieval.SearchParams{
		Project:       c.project,
		Container:     container,
		Query:         query,
		SortBy:        wireSort,
		SortDirection: direction,
		Limit:         limit,
	}}, nil
}

// pageDefinitions fetches the attribute definitions present on one page of
// runs, fanned out over the definitions pool.
func (c *Client) pageDefinitions(ctx context.Context, defsPool *pipeline.Pool, runs []attribute.SysID, selector nql.AttributeSelector) ([]retrieval.MatchedDefinition, error) {
	var defs []retrieval.MatchedDefinition
	err := c.retriever.AttributeDefinitions(ctx, defsPool, retrieval.DefinitionsParams{
		Projects: c.projects(),
		RunIDs:   runs,
		Selector: selector,
	}, func(md retrieval.MatchedDefinition) error {
		defs = append(defs, md)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// restrictSelector narrows a selector to the given types. A nil selector
// means "everything" and narrows to exactly the allowed types. Leaves whose
// type_in excludes every allowed type match nothing and are dropped; when no
// leaf survives, the attribute domain is empty and the second result is
// true.
func restrictSelector(s nql.AttributeSelector, allowed ...attribute.Type) (nql.AttributeSelector, bool) {
	leaves := []*nql.AttributeFilter{{}}
	if s != nil {
		leaves = s.Leaves()
	}

	var kept []*nql.AttributeFilter
	for _, leaf := range leaves {
		types := intersectTypes(leaf.TypeIn, allowed)
		if len(types) == 0 {
			continue
		}
		restricted := *leaf
		restricted.TypeIn = types
		kept = append(kept, &restricted)
	}

	switch len(kept) {
	case 0:
		return nil, true
	case 1:
		return kept[0], false
	}
	alt := kept[0].Or(kept[1])
	for _, leaf := range kept[2:] {
		alt = alt.Or(leaf)
	}
	return alt, false
}

func intersectTypes(have, allowed []attribute.Type) []attribute.Type {
	if len(have) == 0 {
		out := make([]attribute.Type, len(allowed))
		copy(out, allowed)
		return out
	}
	var out []attribute.Type
	for _, t := range have {
		for _, a := range allowed {
			if t == a {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func pageSysIDs(page retrieval.IdentifierPage) []attribute.SysID {
	ids := make([]attribute.SysID, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.SysID)
	}
	return ids
}

// runDefinitions is the (runs x definitions) product addressed by series
// fetches.
func runDefinitions(project attribute.ProjectIdentifier, ids []attribute.SysID, defs []retrieval.MatchedDefinition) []attribute.RunAttributeDefinition {
	out := make([]attribute.RunAttributeDefinition, 0, len(ids)*len(defs))
	for _, id := range ids {
		run := attribute.RunIdentifier{Project: project, SysID: id}
		for _, md := range defs {
			out = append(out, attribute.RunAttributeDefinition{Run: run, Definition: md.Definition})
		}
	}
	return out
}

func seriesColumn(def attribute.Definition, typeSuffix bool) string {
	if typeSuffix {
		return def.Name + ":" + def.Type.String()
	}
	return def.Name
}

func validatePositive(name string, v *int) error {
	if v != nil && *v < 1 {
		return fetcherr.Userf("%s must be positive, got %d", name, *v)
	}
	return nil
}

func validateStepRange(from, to *float64) error {
	if from != nil && to != nil && *from > *to {
		return fetcherr.Userf("invalid step range [%v, %v]: from must not exceed to", *from, *to)
	}
	return nil
}

func validateIncludeTime(s string) error {
	if s != "" && s != includeTimeAbsolute {
		return fetcherr.Userf("invalid include_time %q: only %q is supported", s, includeTimeAbsolute)
	}
	return nil
}
