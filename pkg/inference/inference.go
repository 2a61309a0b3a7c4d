package inference

import (
	"context"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
)

// systemAttributeTypes fixes the types of the backend's sys/* namespace so
// references to them never need a wire call.
var systemAttributeTypes = map[string]attribute.Type{
	"sys/archived":           attribute.TypeBool,
	"sys/creation_time":      attribute.TypeDatetime,
	"sys/custom_run_id":      attribute.TypeString,
	"sys/description":        attribute.TypeString,
	"sys/experiment/is_head": attribute.TypeBool,
	"sys/failed":             attribute.TypeBool,
	"sys/family":             attribute.TypeString,
	"sys/group_tags":         attribute.TypeStringSet,
	"sys/id":                 attribute.TypeString,
	"sys/modification_time":  attribute.TypeDatetime,
	"sys/monitoring_time":    attribute.TypeInt,
	"sys/name":               attribute.TypeString,
	"sys/owner":              attribute.TypeString,
	"sys/ping_time":          attribute.TypeDatetime,
	"sys/running_time":       attribute.TypeFloat,
	"sys/size":               attribute.TypeFloat,
	"sys/stage":              attribute.TypeString,
	"sys/state":              attribute.TypeString,
	"sys/tags":               attribute.TypeStringSet,
	"sys/trashed":            attribute.TypeBool,
}

// errFirstPage stops identifier paging after one page; sort-by inference
// samples the run domain, it does not enumerate it.
var errFirstPage = errors.New("inference: first page read")

// Inferrer resolves attribute types with the local sys/* table, the
// per-type aggregation tables, and the attribute-definition endpoint.
type Inferrer struct {
	retriever *retrieval.Retriever
	logger    log.Logger
}

func New(retriever *retrieval.Retriever, logger log.Logger) *Inferrer {
	return &Inferrer{retriever: retriever, logger: logger}
}

// TypeFilter returns a deep copy of the filter with every attribute
// reference resolved to a concrete type, plus the per-reference state. When
// any reference stays unresolved the error is an AttributeTypeInferenceError
// listing all of them. A nil filter stays nil.
func (i *Inferrer) TypeFilter(ctx context.Context, defsPool *pipeline.Pool, projects []attribute.ProjectIdentifier, filter nql.Filter) (nql.Filter, *State, error) {
	typed := nql.Clone(filter)
	state := newState(nql.CollectAttributes(typed))
	localPass(state)
	if residual := state.pending(); len(residual) > 0 {
		// The filter defines the run domain, so its own inference cannot be
		// restricted by it: ask over the whole project.
		if err := i.remotePass(ctx, defsPool, projects, nil, residual); err != nil {
			return nil, state, err
		}
	}
	if err := state.Err(); err != nil {
		return nil, state, err
	}
	return typed, state, nil
}

// SortByParams scope sort-by inference to the run domain the rendered
// filter selects.
type SortByParams struct {
	Project   attribute.ProjectIdentifier
	Container attribute.ContainerType

	// Query is the rendered filter, empty for an unfiltered fetch.
	Query string
}

// TypeSortBy resolves the sort attribute's type in place. The remote pass
// is restricted to runs matching the filter, because sort order only
// matters over the filtered domain; when that domain is empty the returned
// state has RunDomainEmpty set and the attribute is left untyped.
func (i *Inferrer) TypeSortBy(ctx context.Context, defsPool *pipeline.Pool, p SortByParams, sortBy *nql.Attribute) (*State, error) {
	if sortBy == nil {
		return &State{}, nil
	}
	state := newState([]*nql.Attribute{sortBy})
	localPass(state)
	residual := state.pending()
	if len(residual) == 0 {
		return state, state.Err()
	}

	runIDs, err := i.firstRunPage(ctx, p)
	if err != nil {
		return state, err
	}
	if len(runIDs) == 0 {
		state.RunDomainEmpty = true
		return state, nil
	}
	if err := i.remotePass(ctx, defsPool, []attribute.ProjectIdentifier{p.Project}, runIDs, residual); err != nil {
		return state, err
	}
	return state, state.Err()
}

func (i *Inferrer) firstRunPage(ctx context.Context, p SortByParams) ([]attribute.SysID, error) {
	var ids []attribute.SysID
	err := i.retriever.SysIDLabels(ctx, retrieval.SearchParams{
		Project:   p.Project,
		Container: p.Container,
		Query:     p.Query,
	}, func(page retrieval.IdentifierPage) error {
		for _, item := range page.Items {
			ids = append(ids, item.SysID)
		}
		return errFirstPage
	})
	if err != nil && !errors.Is(err, errFirstPage) {
		return nil, err
	}
	return ids, nil
}

// localPass resolves what it can without the backend: the sys/* table
// first, then the aggregation tables when the requested aggregation pins
// down a single series type. Running it twice is a no-op.
func localPass(state *State) {
	for _, c := range state.Candidates {
		if c.Status != StatusPending {
			continue
		}
		if t, ok := systemAttributeTypes[c.Attr.Name]; ok {
			c.resolve(t, "known system attribute")
			continue
		}
		if agg := c.Attr.Aggregation; agg != attribute.AggregationNone {
			if t, ok := typeImpliedByAggregation(agg); ok {
				c.resolve(t, "aggregation "+agg.String()+" implies the type")
			}
		}
	}
}

func typeImpliedByAggregation(agg attribute.Aggregation) (attribute.Type, bool) {
	var match attribute.Type
	count := 0
	for _, t := range attribute.AllTypes {
		if attribute.SupportsAggregations(t, []attribute.Aggregation{agg}) {
			match = t
			count++
		}
	}
	return match, count == 1
}

// remotePass issues one attribute-definition query restricted to the
// residual names and decides each candidate by the set of types observed
// for its name.
func (i *Inferrer) remotePass(ctx context.Context, defsPool *pipeline.Pool, projects []attribute.ProjectIdentifier, runIDs []attribute.SysID, residual []*Candidate) error {
	names := make([]string, 0, len(residual))
	seen := make(map[string]struct{}, len(residual))
	for _, c := range residual {
		if _, ok := seen[c.Attr.Name]; ok {
			continue
		}
		seen[c.Attr.Name] = struct{}{}
		names = append(names, c.Attr.Name)
	}
	level.Debug(i.logger).Log("msg", "resolving attribute types against the backend", "attributes", len(names), "restrictedToRuns", len(runIDs))

	observed := make(map[string][]attribute.Type, len(names))
	err := i.retriever.AttributeDefinitions(ctx, defsPool, retrieval.DefinitionsParams{
		Projects: projects,
		RunIDs:   runIDs,
		Selector: &nql.AttributeFilter{NameEq: names},
	}, func(md retrieval.MatchedDefinition) error {
		observed[md.Definition.Name] = append(observed[md.Definition.Name], md.Definition.Type)
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range residual {
		types := observed[c.Attr.Name]
		switch len(types) {
		case 1:
			c.resolve(types[0], "inferred from backend")
		case 0:
			c.fail("attribute is not present in the project; check the name for typos")
		default:
			c.fail("multiple types found: " + joinTypes(types) + "; reference the attribute with an explicit type")
		}
	}
	return nil
}

func joinTypes(types []attribute.Type) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
