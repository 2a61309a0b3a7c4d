package attribute

import (
	"fmt"
	"time"
)

// File describes an uploaded file attribute or series element.
type File struct {
	Path      string
	SizeBytes int64
	MimeType  string
}

// Histogram is one logged histogram: n+1 edges bracketing n values.
type Histogram struct {
	Type   string
	Edges  []float64
	Values []float64
}

// Point is one float metric measurement.
type Point struct {
	TimestampMS       int64
	Step              float64
	Value             float64
	IsPreview         bool
	PreviewCompletion float64
}

// Time returns the point's timestamp as UTC wall-clock time.
func (p Point) Time() time.Time {
	return time.UnixMilli(p.TimestampMS).UTC()
}

// SeriesValue is one element of a non-numeric series. Exactly one of Str,
// Hist and File is meaningful, selected by the attribute's type.
type SeriesValue struct {
	Step        float64
	TimestampMS int64
	Str         string
	Hist        *Histogram
	File        *File
}

// Cell returns the element as an untyped table cell.
func (v SeriesValue) Cell() any {
	switch {
	case v.Hist != nil:
		return v.Hist
	case v.File != nil:
		return v.File
	default:
		return v.Str
	}
}

// Time returns the element's timestamp as UTC wall-clock time.
func (v SeriesValue) Time() time.Time {
	return time.UnixMilli(v.TimestampMS).UTC()
}

// FloatSeriesAggregates is the scalar summary the backend keeps per float
// series.
type FloatSeriesAggregates struct {
	Last     float64
	Min      float64
	Max      float64
	Average  float64
	Variance float64
}

// StringSeriesAggregates is the scalar summary kept per string series.
type StringSeriesAggregates struct {
	Last     string
	LastStep float64
}

// FileSeriesAggregates is the scalar summary kept per file series.
type FileSeriesAggregates struct {
	Last     File
	LastStep float64
}

// HistogramSeriesAggregates is the scalar summary kept per histogram series.
type HistogramSeriesAggregates struct {
	Last     Histogram
	LastStep float64
}

// Value is a decoded attribute value. Which field is populated follows Type;
// for series types the value is the aggregations struct, never the series
// itself.
type Value struct {
	Type Type

	Float     float64
	Int       int64
	Bool      bool
	Str       string
	Time      time.Time
	StringSet []string
	File      File

	FloatSeries     FloatSeriesAggregates
	StringSeries    StringSeriesAggregates
	FileSeries      FileSeriesAggregates
	HistogramSeries HistogramSeriesAggregates
}

func FloatValue(f float64) Value      { return Value{Type: TypeFloat, Float: f} }
func IntValue(i int64) Value          { return Value{Type: TypeInt, Int: i} }
func StringValue(s string) Value      { return Value{Type: TypeString, Str: s} }
func BoolValue(b bool) Value          { return Value{Type: TypeBool, Bool: b} }
func TimeValue(t time.Time) Value     { return Value{Type: TypeDatetime, Time: t.UTC()} }
func StringSetValue(s []string) Value { return Value{Type: TypeStringSet, StringSet: s} }
func FileValue(f File) Value          { return Value{Type: TypeFile, File: f} }

func FloatSeriesValue(a FloatSeriesAggregates) Value {
	return Value{Type: TypeFloatSeries, FloatSeries: a}
}

func StringSeriesValue(a StringSeriesAggregates) Value {
	return Value{Type: TypeStringSeries, StringSeries: a}
}

func FileSeriesValue(a FileSeriesAggregates) Value {
	return Value{Type: TypeFileSeries, FileSeries: a}
}

func HistogramSeriesValue(a HistogramSeriesAggregates) Value {
	return Value{Type: TypeHistogramSeries, HistogramSeries: a}
}

// Scalar returns the cell for a non-series value. Series values have no
// single scalar; use AggregationCell.
func (v Value) Scalar() any {
	switch v.Type {
	case TypeFloat:
		return v.Float
	case TypeInt:
		return v.Int
	case TypeString:
		return v.Str
	case TypeBool:
		return v.Bool
	case TypeDatetime:
		return v.Time
	case TypeStringSet:
		return v.StringSet
	case TypeFile:
		return v.File
	}
	return nil
}

// AggregationCell returns the requested aggregation of a series value. The
// second return is false when the aggregation does not apply to the type.
func (v Value) AggregationCell(agg Aggregation) (any, bool) {
	switch v.Type {
	case TypeFloatSeries:
		switch agg {
		case AggregationLast:
			return v.FloatSeries.Last, true
		case AggregationMin:
			return v.FloatSeries.Min, true
		case AggregationMax:
			return v.FloatSeries.Max, true
		case AggregationAverage:
			return v.FloatSeries.Average, true
		case AggregationVariance:
			return v.FloatSeries.Variance, true
		}
	case TypeStringSeries:
		if agg == AggregationLast {
			return v.StringSeries.Last, true
		}
	case TypeFileSeries:
		if agg == AggregationLast {
			return v.FileSeries.Last, true
		}
	case TypeHistogramSeries:
		if agg == AggregationLast {
			return v.HistogramSeries.Last, true
		}
	}
	return nil, false
}

func (v Value) String() string {
	switch v.Type {
	case TypeFloat:
		return fmt.Sprintf("%g", v.Float)
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeString:
		return v.Str
	case TypeBool:
		return fmt.Sprintf("%t", v.Bool)
	case TypeDatetime:
		return v.Time.Format(time.RFC3339)
	case TypeStringSet:
		return fmt.Sprintf("%v", v.StringSet)
	case TypeFile:
		return v.File.Path
	case TypeFloatSeries:
		return fmt.Sprintf("last=%g", v.FloatSeries.Last)
	case TypeStringSeries:
		return fmt.Sprintf("last=%s", v.StringSeries.Last)
	case TypeFileSeries:
		return fmt.Sprintf("last=%s", v.FileSeries.Last.Path)
	case TypeHistogramSeries:
		return fmt.Sprintf("last=histogram[%d]", len(v.HistogramSeries.Last.Values))
	}
	return "unknown"
}

// RunValue binds a decoded value to the run and attribute it belongs to.
type RunValue struct {
	Run        RunIdentifier
	Definition Definition
	Value      Value
}
