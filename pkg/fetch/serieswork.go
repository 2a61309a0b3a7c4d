package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
	"github.com/neptune-ai/fetcher-go/pkg/split"
)

// seriesEvent is the union flowing from the page transformer: the page's
// labels, or one batch of series to fetch.
type seriesEvent struct {
	labels []retrieval.IdentifierLabel
	batch  []attribute.RunAttributeDefinition
}

// seriesOf pairs one fetched series with its key. P is attribute.Point for
// metrics and attribute.SeriesValue for non-numeric series.
type seriesOf[P any] struct {
	rad    attribute.RunAttributeDefinition
	values []P
}

// seriesRecord is the union gathered by the assembler.
type seriesRecord[P any] struct {
	labels []retrieval.IdentifierLabel
	series *seriesOf[P]
}

// collectSeries runs the pipeline shared by metric and series fetches:
// identifier pages fan out into per-page definition fetches and batched
// series work; the merged records are gathered into a label map plus the
// fetched series. fetch resolves one batch on a pool worker.
//
// Labels resolve safely at the end: a page's label event is emitted before
// any of its work, so by the time the stream drains every fetched series has
// its label.
func collectSeries[P any](
	ctx context.Context,
	c *Client,
	orch, defsPool *pipeline.Pool,
	plan searchPlan,
	selector nql.AttributeSelector,
	fetch func(context.Context, []attribute.RunAttributeDefinition) (map[attribute.RunAttributeDefinition][]P, error),
) (map[attribute.SysID]string, []seriesOf[P], error) {
	pages := pipeline.Source(orch, func(ctx context.Context, emit func(retrieval.IdentifierPage) error) error {
		return c.retriever.SysIDLabels(ctx, plan.params, emit)
	})

	events := pipeline.Transform(orch, c.cfg.MaxWorkers, pages, func(ctx context.Context, page retrieval.IdentifierPage, emit func(seriesEvent) error) error {
		if err := emit(seriesEvent{labels: page.Items}); err != nil {
			return err
		}
		ids := pageSysIDs(page)
		defs, err := c.pageDefinitions(ctx, defsPool, ids, selector)
		if err != nil {
			return err
		}
		rads := runDefinitions(c.project, ids, defs)
		for _, batch := range split.SeriesAttributes(c.logger, rads,
			func(rad attribute.RunAttributeDefinition) string { return rad.Definition.Name },
			c.cfg.SeriesBatchSize, c.cfg.QuerySizeLimit) {
			if err := emit(seriesEvent{batch: batch}); err != nil {
				return err
			}
		}
		return nil
	})

	records := pipeline.Generate(orch, events, func(ctx context.Context, ev seriesEvent, emit func(seriesRecord[P]) error) error {
		if ev.labels != nil {
			return emit(seriesRecord[P]{labels: ev.labels})
		}
		fetched, err := fetch(ctx, ev.batch)
		if err != nil {
			return err
		}
		for rad, values := range fetched {
			if err := emit(seriesRecord[P]{series: &seriesOf[P]{rad: rad, values: values}}); err != nil {
				return err
			}
		}
		return nil
	})

	labels := make(map[attribute.SysID]string)
	var series []seriesOf[P]
	err := pipeline.Gather(records, func(rec seriesRecord[P]) error {
		if rec.labels != nil {
			for _, item := range rec.labels {
				labels[item.SysID] = item.Label
			}
			return nil
		}
		series = append(series, *rec.series)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := orch.Close(); err != nil {
		return nil, nil, err
	}
	if err := defsPool.Close(); err != nil {
		return nil, nil, err
	}
	return labels, series, nil
}
