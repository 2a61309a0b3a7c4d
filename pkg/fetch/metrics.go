package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
)

// MetricsParams select float metric series and bound what to fetch from
// each.
type MetricsParams struct {
	// Filter restricts the run domain; nil matches everything.
	Filter nql.Filter

	// Attributes restricts the metric paths; nil selects every float
	// series.
	Attributes nql.AttributeSelector

	// StepFrom and StepTo bound the step window; either end may be nil.
	StepFrom *float64
	StepTo   *float64

	// TailLimit keeps only the newest points of each series.
	TailLimit *int

	// IncludeTime adds an absolute_time subcolumn; "absolute" is the only
	// supported mode.
	IncludeTime string

	// IncludePreviews fetches uncommitted points and adds the preview
	// subcolumns.
	IncludePreviews bool

	// IncludeInherited walks the run lineage to the root when fetching.
	IncludeInherited bool

	// TypeSuffix renders columns as "path:float_series".
	TypeSuffix bool
}

// FetchMetrics returns the float metric points of experiments matching the
// filter, as a frame indexed by (experiment, step).
func (c *Client) FetchMetrics(ctx context.Context, p MetricsParams) (*frame.MetricFrame, error) {
	return c.fetchMetrics(ctx, attribute.ContainerExperiment, p)
}

// FetchRunMetrics is FetchMetrics over stand-alone runs.
func (c *Client) FetchRunMetrics(ctx context.Context, p MetricsParams) (*frame.MetricFrame, error) {
	return c.fetchMetrics(ctx, attribute.ContainerRun, p)
}

func (c *Client) fetchMetrics(ctx context.Context, container attribute.ContainerType, p MetricsParams) (*frame.MetricFrame, error) {
	if err := validatePositive("tail_limit", p.TailLimit); err != nil {
		return nil, err
	}
	if err := validateStepRange(p.StepFrom, p.StepTo); err != nil {
		return nil, err
	}
	if err := validateIncludeTime(p.IncludeTime); err != nil {
		return nil, err
	}

	builder := frame.NewMetricFrameBuilder(frame.MetricFrameOptions{
		IncludeTime:     p.IncludeTime == includeTimeAbsolute,
		IncludePreviews: p.IncludePreviews,
	})
	selector, noAttributes := restrictSelector(p.Attributes, attribute.TypeFloatSeries)
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
		func(ctx context.Context, batch []attribute.RunAttributeDefinition) (map[attribute.RunAttributeDefinition][]attribute.Point, error) {
			return c.retriever.FloatSeriesPoints(ctx, retrieval.SeriesParams{
				Defs:             batch,
				IncludeInherited: p.IncludeInherited,
				IncludePreview:   p.IncludePreviews,
				StepFrom:         p.StepFrom,
				StepTo:           p.StepTo,
				TailLimit:        p.TailLimit,
			})
		})
	if err != nil {
		return nil, err
	}

	for _, s := range series {
		builder.AddSeries(labels[s.rad.Run.SysID], seriesColumn(s.rad.Definition, p.TypeSuffix), s.values)
	}
	return builder.Build(), nil
}
