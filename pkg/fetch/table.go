package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
	"github.com/neptune-ai/fetcher-go/pkg/split"
)

// TableParams select and shape a metadata table fetch. The zero value
// fetches every run with every attribute, newest first.
type TableParams struct {
	// Filter restricts the run domain; nil matches everything.
	Filter nql.Filter

	// Attributes restricts the columns; nil selects all attributes. Series
	// leaves may carry requested aggregations.
	Attributes nql.AttributeSelector

	// SortBy orders the rows; nil sorts by creation time. Ordering is
	// descending unless SortAscending is set.
	SortBy        *nql.Attribute
	SortAscending bool

	// Limit caps the number of rows.
	Limit *int

	// TypeSuffix renders columns as "name:type". Without it, one name
	// appearing with two types is an error.
	TypeSuffix bool

	// FlattenFiles splits file cells into path/size_bytes/mime_type
	// subcolumns.
	FlattenFiles bool
}

// FetchExperimentsTable returns a table of experiment heads matching the
// filter: one row per experiment in first-appearance order, one column per
// (attribute, subcolumn).
func (c *Client) FetchExperimentsTable(ctx context.Context, p TableParams) (*frame.Table, error) {
	return c.fetchTable(ctx, attribute.ContainerExperiment, p)
}

// FetchRunsTable is FetchExperimentsTable over stand-alone runs.
func (c *Client) FetchRunsTable(ctx context.Context, p TableParams) (*frame.Table, error) {
	return c.fetchTable(ctx, attribute.ContainerRun, p)
}

// tableEvent is the union flowing from the page transformer: an identifier
// page for row order, or one batch of value work.
type tableEvent struct {
	ids  *retrieval.IdentifierPage
	work *valueBatch
}

type valueBatch struct {
	runs []attribute.SysID
	defs []retrieval.MatchedDefinition
}

// tableRecord is the union gathered by the assembler.
type tableRecord struct {
	ids   *retrieval.IdentifierPage
	value *attribute.RunValue
	aggs  []attribute.Aggregation
}

func (c *Client) fetchTable(ctx context.Context, container attribute.ContainerType, p TableParams) (*frame.Table, error) {
	if err := validatePositive("limit", p.Limit); err != nil {
		return nil, err
	}

	orch := c.newPool(ctx)
	defer orch.Close()
	defsPool := c.newPool(ctx)
	defer defsPool.Close()

	plan, err := c.planSearch(ctx, defsPool, container, p.Filter, p.SortBy, p.SortAscending, p.Limit)
	if err != nil {
		return nil, err
	}

	builder := frame.NewTableBuilder(container, frame.TableOptions{
		TypeSuffix:   p.TypeSuffix,
		FlattenFiles: p.FlattenFiles,
	})
	if plan.runDomainEmpty {
		return builder.Build()
	}

	pages := pipeline.Source(orch, func(ctx context.Context, emit func(retrieval.IdentifierPage) error) error {
		return c.retriever.SysIDLabels(ctx, plan.params, emit)
	})

	// Each page yields its identifier event plus the (run batch x attribute
	// batch) grid of value work. Definitions are fetched per page, restricted
	// to the page's runs, on the sibling pool.
	events := pipeline.Transform(orch, c.cfg.MaxWorkers, pages, func(ctx context.Context, page retrieval.IdentifierPage, emit func(tableEvent) error) error {
		if err := emit(tableEvent{ids: &page}); err != nil {
			return err
		}
		ids := pageSysIDs(page)
		defs, err := c.pageDefinitions(ctx, defsPool, ids, p.Attributes)
		if err != nil {
			return err
		}
		defBatches := split.SeriesAttributes(c.logger, defs,
			func(md retrieval.MatchedDefinition) string { return md.Definition.Name },
			c.cfg.ValuesBatchSize, c.cfg.QuerySizeLimit)
		for _, runs := range split.SysIDs(ids, c.cfg.SysAttrsBatchSize) {
			for _, batch := range defBatches {
				if err := emit(tableEvent{work: &valueBatch{runs: runs, defs: batch}}); err != nil {
					return err
				}
			}
		}
		return nil
	})

	records := pipeline.Generate(orch, events, func(ctx context.Context, ev tableEvent, emit func(tableRecord) error) error {
		if ev.ids != nil {
			return emit(tableRecord{ids: ev.ids})
		}
		aggsByDef := make(map[attribute.Definition][]attribute.Aggregation, len(ev.work.defs))
		defs := make([]attribute.Definition, 0, len(ev.work.defs))
		for _, md := range ev.work.defs {
			aggsByDef[md.Definition] = md.Aggregations
			defs = append(defs, md.Definition)
		}
		return c.retriever.AttributeValues(ctx, c.project, ev.work.runs, defs, func(v attribute.RunValue) error {
			return emit(tableRecord{value: &v, aggs: aggsByDef[v.Definition]})
		})
	})

	err = pipeline.Gather(records, func(rec tableRecord) error {
		if rec.ids != nil {
			builder.AddIdentifiers(rec.ids.Seq, identifierRows(rec.ids.Items))
			return nil
		}
		builder.AddValue(*rec.value, rec.aggs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := orch.Close(); err != nil {
		return nil, err
	}
	if err := defsPool.Close(); err != nil {
		return nil, err
	}
	return builder.Build()
}

func identifierRows(items []retrieval.IdentifierLabel) []frame.Identifier {
	out := make([]frame.Identifier, 0, len(items))
	for _, item := range items {
		out = append(out, frame.Identifier{SysID: item.SysID, Label: item.Label})
	}
	return out
}
