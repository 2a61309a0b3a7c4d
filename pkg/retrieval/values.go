package retrieval

import (
	"context"
	"math"
	"time"

	"github.com/go-kit/log/level"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/dataquality"
)

// AttributeValues pages through the values of one (runs × definitions)
// batch, decoding the backend's typed union into RunValue cells. Values of a
// type this client does not know are skipped with one warning per type per
// process.
func (r *Retriever) AttributeValues(ctx context.Context, project attribute.ProjectIdentifier, runs []attribute.SysID, defs []attribute.Definition, emit func(attribute.RunValue) error) error {
	names := make([]string, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, ok := seen[def.Name]; ok {
			continue
		}
		seen[def.Name] = struct{}{}
		names = append(names, def.Name)
	}

	token := ""
	for {
		resp, err := r.client.QueryAttributes(ctx, &api.QueryAttributesRequest{
			Project:              project.String(),
			ExperimentIdsFilter:  sysIDStrings(runs),
			AttributeNamesFilter: names,
			NextPage:             api.NextPage{Limit: r.sizes.Values, NextPageToken: token},
		})
		if err != nil {
			return err
		}

		for _, entry := range resp.Entries {
			run := attribute.RunIdentifier{Project: project, SysID: attribute.SysID(entry.ExperimentID)}
			for _, dto := range entry.Attributes {
				value, ok := r.decodeAttribute(run, dto)
				if !ok {
					continue
				}
				if err := emit(value); err != nil {
					return err
				}
			}
		}

		token = resp.NextPage.NextPageToken
		if token == "" || len(resp.Entries) < r.sizes.Values {
			return nil
		}
	}
}

// decodeAttribute maps one wire value onto the typed union. For series types
// the decoded value is the aggregations struct; absent aggregates (a series
// with no committed points) decode to NaN so they surface as missing cells.
func (r *Retriever) decodeAttribute(run attribute.RunIdentifier, dto api.AttributeDTO) (attribute.RunValue, bool) {
	t, ok := attribute.TypeFromWire(dto.Type)
	if !ok {
		r.warnUnknownType(dto.Type)
		return attribute.RunValue{}, false
	}

	var value attribute.Value
	switch t {
	case attribute.TypeFloat:
		if dto.FloatProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.FloatValue(dto.FloatProperties.Value)
	case attribute.TypeInt:
		if dto.IntProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.IntValue(dto.IntProperties.Value)
	case attribute.TypeString:
		if dto.StringProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.StringValue(dto.StringProperties.Value)
	case attribute.TypeBool:
		if dto.BoolProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.BoolValue(dto.BoolProperties.Value)
	case attribute.TypeDatetime:
		if dto.DatetimeProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.TimeValue(time.UnixMilli(dto.DatetimeProperties.ValueMillis).UTC())
	case attribute.TypeStringSet:
		if dto.StringSetProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.StringSetValue(dto.StringSetProperties.Values)
	case attribute.TypeFile:
		if dto.FileProperties == nil {
			return r.skipMalformed(run, dto)
		}
		value = attribute.FileValue(fileFromDTO(*dto.FileProperties))
	case attribute.TypeFloatSeries:
		if dto.FloatSeriesProperties == nil {
			return r.skipMalformed(run, dto)
		}
		props := dto.FloatSeriesProperties
		value = attribute.FloatSeriesValue(attribute.FloatSeriesAggregates{
			Last:     floatOrNaN(props.Last),
			Min:      floatOrNaN(props.Min),
			Max:      floatOrNaN(props.Max),
			Average:  floatOrNaN(props.Average),
			Variance: floatOrNaN(props.Variance),
		})
	case attribute.TypeStringSeries:
		if dto.StringSeriesProperties == nil {
			return r.skipMalformed(run, dto)
		}
		props := dto.StringSeriesProperties
		aggs := attribute.StringSeriesAggregates{LastStep: floatOrNaN(props.LastStep)}
		if props.Last != nil {
			aggs.Last = *props.Last
		}
		value = attribute.StringSeriesValue(aggs)
	case attribute.TypeFileSeries:
		if dto.FileSeriesProperties == nil {
			return r.skipMalformed(run, dto)
		}
		props := dto.FileSeriesProperties
		aggs := attribute.FileSeriesAggregates{LastStep: floatOrNaN(props.LastStep)}
		if props.Last != nil {
			aggs.Last = fileFromDTO(*props.Last)
		}
		value = attribute.FileSeriesValue(aggs)
	case attribute.TypeHistogramSeries:
		if dto.HistogramSeriesProperties == nil {
			return r.skipMalformed(run, dto)
		}
		props := dto.HistogramSeriesProperties
		aggs := attribute.HistogramSeriesAggregates{LastStep: floatOrNaN(props.LastStep)}
		if props.Last != nil {
			aggs.Last = histogramFromDTO(*props.Last)
		}
		value = attribute.HistogramSeriesValue(aggs)
	default:
		return attribute.RunValue{}, false
	}

	return attribute.RunValue{
		Run:        run,
		Definition: attribute.Definition{Name: dto.Name, Type: t},
		Value:      value,
	}, true
}

func (r *Retriever) skipMalformed(run attribute.RunIdentifier, dto api.AttributeDTO) (attribute.RunValue, bool) {
	dataquality.WarnMissingProperties(dto.Type)
	level.Debug(r.logger).Log("msg", "attribute value has no properties for its declared type", "run", run, "attribute", dto.Name, "type", dto.Type)
	return attribute.RunValue{}, false
}

func fileFromDTO(dto api.FileDTO) attribute.File {
	return attribute.File{
		Path:      dto.Path,
		SizeBytes: dto.SizeBytes,
		MimeType:  dto.MimeType,
	}
}

func histogramFromDTO(dto api.HistogramDTO) attribute.Histogram {
	return attribute.Histogram{
		Type:   dto.Type,
		Edges:  dto.Edges,
		Values: dto.Values,
	}
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
