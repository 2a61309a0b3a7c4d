package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
)

// SeriesParams select non-numeric series (string, file, histogram) and
// bound what to fetch from each.
type SeriesParams struct {
	// Filter restricts the run domain; nil matches everything.
	Filter nql.Filter

	// Attributes restricts the series paths; nil selects every string, file
	// and histogram series.
	Attributes nql.AttributeSelector

	// StepFrom and StepTo bound the step window; either end may be nil.
	StepFrom *float64
	StepTo   *float64

	// TailLimit keeps only the newest values of each series.
	TailLimit *int

	// IncludeTime adds an absolute_time subcolumn; "absolute" is the only
	// supported mode.
	IncludeTime string

	// IncludeInherited walks the run lineage to the root when fetching.
	IncludeInherited bool
}

// FetchSeries returns the non-numeric series values of experiments matching
// the filter, as a frame indexed by (experiment, step) with object cells.
func (c *Client) FetchSeries(ctx context.Context, p SeriesParams) (*frame.SeriesFrame, error) {
	return c.fetchSeries(ctx, attribute.ContainerExperiment, p)
}

// FetchRunSeries is FetchSeries over stand-alone runs.
func (c *Client) FetchRunSeries(ctx context.Context, p SeriesParams) (*frame.SeriesFrame, error) {
	return c.fetchSeries(ctx, attribute.ContainerRun, p)
}

func (c *Client) fetchSeries(ctx context.Context, container attribute.ContainerType, p SeriesParams) (*frame.SeriesFrame, error) {
	if err := validatePositive("tail_limit", p.TailLimit); err != nil {
		return nil, err
	}
	if err := validateStepRange(p.StepFrom, p.StepTo); err != nil {
		return nil, err
	}
	if err := validateIncludeTime(p.IncludeTime); err != nil {
		return nil, err
	}

	builder := frame.NewSeriesFrameBuilder(frame.SeriesFrameOptions{
		IncludeTime: p.IncludeTime == includeTimeAbsolute,
	})
	selector, noAttributes := restrictSelector(p.Attributes,
		attribute.TypeStringSeries, attribute.TypeFileSeries, attribute.TypeHistogramSeries)
	if noAttributes {
		return builder.Build(), nil
	}

	orch := c.newPool(ctx)
	defer orch.Close()
	defsPool := c.newPool(ctx)
	defer defsPool.Close()

	plan, err := c.planSearch(ctx, defsPool, container, p.Filter, nil, false, nil)
	if err != nil {
		return nil, err
	}
	if plan.runDomainEmpty {
		return builder.Build(), nil
	}

	labels, series, err := collectSeries(ctx, c, orch, defsPool, plan, selector,
		func(ctx context.Context, batch []attribute.RunAttributeDefinition) (map[attribute.RunAttributeDefinition][]attribute.SeriesValue, error) {
			return c.retriever.SeriesValues(ctx, retrieval.SeriesParams{
				Defs:             batch,
				IncludeInherited: p.IncludeInherited,
				StepFrom:         p.StepFrom,
				StepTo:           p.StepTo,
				TailLimit:        p.TailLimit,
			})
		})
	if err != nil {
		return nil, err
	}

	for _, s := range series {
		builder.AddSeries(labels[s.rad.Run.SysID], s.rad.Definition.Name, s.values)
	}
	return builder.Build(), nil
}
