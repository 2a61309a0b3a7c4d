package retrieval

import (
	"context"
	"strconv"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

// TotalPointLimit caps how many points one multi-series request may return
// across all series. The per-series page limit divides it by the number of
// series still paging.
const TotalPointLimit = 1_000_000

// SeriesParams address a set of series and bound what to fetch from each.
// TailLimit switches the fetch to descending order so the newest points come
// first; results are flipped back to ascending at the end.
type SeriesParams struct {
	Defs             []attribute.RunAttributeDefinition
	IncludeInherited bool
	IncludePreview   bool
	StepFrom         *float64
	StepTo           *float64
	TailLimit        *int
}

func (p SeriesParams) order() string {
	if p.TailLimit != nil {
		return api.OrderDescending
	}
	return api.OrderAscending
}

func (p SeriesParams) lineage() string {
	if p.IncludeInherited {
		return api.LineageFull
	}
	return api.LineageNone
}

// FloatSeriesPoints fetches float metric points for many series at once,
// paging each series independently until exhaustion or its tail quota.
// Points per series are ascending by step.
func (r *Retriever) FloatSeriesPoints(ctx context.Context, p SeriesParams) (map[attribute.RunAttributeDefinition][]attribute.Point, error) {
	return paginateSeries(ctx, p, TotalPointLimit, func(ctx context.Context, requests []api.SeriesRequest, perSeries int) (map[string][]attribute.Point, error) {
		resp, err := r.client.FloatSeriesValues(ctx, &api.FloatSeriesValuesRequest{
			Requests:             requests,
			StepRange:            api.StepRange{From: p.StepFrom, To: p.StepTo},
			Order:                p.order(),
			PerSeriesPointsLimit: perSeries,
		})
		if err != nil {
			return nil, err
		}

		pages := make(map[string][]attribute.Point, len(resp.Series))
		for _, s := range resp.Series {
			points := make([]attribute.Point, 0, len(s.Values))
			for _, v := range s.Values {
				points = append(points, attribute.Point{
					TimestampMS:       v.TimestampMillis,
					Step:              v.Step,
					Value:             v.Value,
					IsPreview:         v.IsPreview,
					PreviewCompletion: v.CompletionRatio,
				})
			}
			pages[s.RequestID] = points
		}
		return pages, nil
	}, func(pt attribute.Point) float64 { return pt.Step })
}

// SeriesValues is the non-numeric sibling of FloatSeriesPoints: string, file
// and histogram series elements under the same pagination discipline.
func (r *Retriever) SeriesValues(ctx context.Context, p SeriesParams) (map[attribute.RunAttributeDefinition][]attribute.SeriesValue, error) {
	return paginateSeries(ctx, p, TotalPointLimit, func(ctx context.Context, requests []api.SeriesRequest, perSeries int) (map[string][]attribute.SeriesValue, error) {
		resp, err := r.client.SeriesValues(ctx, &api.SeriesValuesRequest{
			Requests:             requests,
			StepRange:            api.StepRange{From: p.StepFrom, To: p.StepTo},
			Order:                p.order(),
			PerSeriesPointsLimit: perSeries,
		})
		if err != nil {
			return nil, err
		}

		pages := make(map[string][]attribute.SeriesValue, len(resp.Series))
		for _, s := range resp.Series {
			values := make([]attribute.SeriesValue, 0, len(s.Values))
			for _, v := range s.Values {
				values = append(values, seriesValueFromDTO(v))
			}
			pages[s.RequestID] = values
		}
		return pages, nil
	}, func(v attribute.SeriesValue) float64 { return v.Step })
}

// paginateSeries drives per-series afterStep continuation: every round asks
// one page for each series still active, records the cursor of full pages,
// and drops series that are exhausted or have met their tail quota. With a
// tail limit the fetch ran descending, so results are trimmed to the quota
// and reversed to ascending.
func paginateSeries[P any](ctx context.Context, p SeriesParams, pointBudget int, fetchPage func(context.Context, []api.SeriesRequest, int) (map[string][]P, error), stepOf func(P) float64) (map[attribute.RunAttributeDefinition][]P, error) {
	type cursor struct {
		def       attribute.RunAttributeDefinition
		afterStep *float64
		collected int
	}

	active := make([]*cursor, 0, len(p.Defs))
	for _, def := range p.Defs {
		active = append(active, &cursor{def: def})
	}

	out := make(map[attribute.RunAttributeDefinition][]P, len(p.Defs))
	for len(active) > 0 {
		perSeries := pointBudget / len(active)
		if perSeries < 1 {
			perSeries = 1
		}
		if p.TailLimit != nil && *p.TailLimit < perSeries {
			perSeries = *p.TailLimit
		}

		requests := make([]api.SeriesRequest, 0, len(active))
		for i, c := range active {
			requests = append(requests, api.SeriesRequest{
				RequestID: strconv.Itoa(i),
				Series: api.SeriesSpec{
					Holder: api.HolderSpec{
						Identifier: c.def.Run.String(),
						Type:       api.ContainerTypeExperiment,
					},
					Attribute:      c.def.Definition.Name,
					Lineage:        p.lineage(),
					IncludePreview: p.IncludePreview,
				},
				AfterStep: c.afterStep,
			})
		}

		pages, err := fetchPage(ctx, requests, perSeries)
		if err != nil {
			return nil, err
		}

		var next []*cursor
		for i, c := range active {
			page := pages[strconv.Itoa(i)]
			out[c.def] = append(out[c.def], page...)
			c.collected += len(page)

			if len(page) < perSeries {
				continue // exhausted
			}
			if p.TailLimit != nil && c.collected >= *p.TailLimit {
				continue // quota met
			}
			last := stepOf(page[len(page)-1])
			c.afterStep = &last
			next = append(next, c)
		}
		active = next
	}

	if p.TailLimit != nil {
		for def, points := range out {
			if len(points) > *p.TailLimit {
				points = points[:*p.TailLimit]
			}
			reverse(points)
			out[def] = points
		}
	}
	return out, nil
}

func seriesValueFromDTO(dto api.SeriesPointDTO) attribute.SeriesValue {
	v := attribute.SeriesValue{
		Step:        dto.Step,
		TimestampMS: dto.TimestampMillis,
	}
	switch {
	case dto.StringValue != nil:
		v.Str = *dto.StringValue
	case dto.FileValue != nil:
		f := fileFromDTO(*dto.FileValue)
		v.File = &f
	case dto.HistogramValue != nil:
		h := histogramFromDTO(*dto.HistogramValue)
		v.Hist = &h
	}
	return v
}

func reverse[P any](s []P) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
