// Package attribute defines the attribute model shared by the whole fetcher:
// typed attribute definitions, run identifiers, and the decoded values that
// retrieval hands to result assembly.
package attribute

import (
	"fmt"

	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// Type is the closed set of attribute types the backend knows about.
type Type int

const (
	TypeUnknown Type = iota
	TypeFloat
	TypeInt
	TypeString
	TypeBool
	TypeDatetime
	TypeFloatSeries
	TypeStringSeries
	TypeFileSeries
	TypeHistogramSeries
	TypeStringSet
	TypeFile
)

// AllTypes lists every concrete attribute type, in declaration order.
var AllTypes = []Type{
	TypeFloat,
	TypeInt,
	TypeString,
	TypeBool,
	TypeDatetime,
	TypeFloatSeries,
	TypeStringSeries,
	TypeFileSeries,
	TypeHistogramSeries,
	TypeStringSet,
	TypeFile,
}

func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeDatetime:
		return "datetime"
	case TypeFloatSeries:
		return "float_series"
	case TypeStringSeries:
		return "string_series"
	case TypeFileSeries:
		return "file_series"
	case TypeHistogramSeries:
		return "histogram_series"
	case TypeStringSet:
		return "string_set"
	case TypeFile:
		return "file"
	}
	return fmt.Sprintf("type %d", int(t))
}

// Wire returns the tag the backend uses for this type in queries and
// attribute-definition payloads.
func (t Type) Wire() string {
	switch t {
	case TypeFloatSeries:
		return "floatSeries"
	case TypeStringSeries:
		return "stringSeries"
	case TypeFileSeries:
		return "fileSeries"
	case TypeHistogramSeries:
		return "histogramSeries"
	case TypeStringSet:
		return "stringSet"
	default:
		return t.String()
	}
}

// IsSeries reports whether values of this type are step-indexed series.
func (t Type) IsSeries() bool {
	switch t {
	case TypeFloatSeries, TypeStringSeries, TypeFileSeries, TypeHistogramSeries:
		return true
	}
	return false
}

// ParseType resolves a user-facing type name.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return TypeUnknown, fetcherr.Userf("unknown attribute type %q", s)
}

// TypeFromWire resolves a backend type tag. Unknown tags are reported, not
// fatal: callers skip the value and warn once per tag.
func TypeFromWire(s string) (Type, bool) {
	for _, t := range AllTypes {
		if t.Wire() == s {
			return t, true
		}
	}
	return TypeUnknown, false
}

// Aggregation is a scalar summary over a series attribute. The zero value
// means no aggregation was requested.
type Aggregation int

const (
	AggregationNone Aggregation = iota
	AggregationLast
	AggregationMin
	AggregationMax
	AggregationAverage
	AggregationVariance
)

func (a Aggregation) String() string {
	switch a {
	case AggregationNone:
		return "none"
	case AggregationLast:
		return "last"
	case AggregationMin:
		return "min"
	case AggregationMax:
		return "max"
	case AggregationAverage:
		return "average"
	case AggregationVariance:
		return "variance"
	}
	return fmt.Sprintf("aggregation %d", int(a))
}

// ParseAggregation resolves a user-facing aggregation name.
func ParseAggregation(s string) (Aggregation, error) {
	for _, a := range []Aggregation{AggregationLast, AggregationMin, AggregationMax, AggregationAverage, AggregationVariance} {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fetcherr.Userf("unknown aggregation %q: expected one of last, min, max, average, variance", s)
}

// AggregationsForType returns the aggregations the backend supports for a
// series type. Non-series types support none.
func AggregationsForType(t Type) []Aggregation {
	switch t {
	case TypeFloatSeries:
		return []Aggregation{AggregationLast, AggregationMin, AggregationMax, AggregationAverage, AggregationVariance}
	case TypeStringSeries, TypeFileSeries, TypeHistogramSeries:
		return []Aggregation{AggregationLast}
	}
	return nil
}

// SupportsAggregations reports whether every requested aggregation is valid
// for the type.
func SupportsAggregations(t Type, aggs []Aggregation) bool {
	valid := AggregationsForType(t)
	if valid == nil {
		return false
	}
	for _, a := range aggs {
		found := false
		for _, v := range valid {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Definition identifies one attribute within a project.
type Definition struct {
	Name string
	Type Type
}

func (d Definition) String() string {
	return fmt.Sprintf("%s:%s", d.Name, d.Type)
}

// RunAttributeDefinition is the primary key for series and metric fetches.
type RunAttributeDefinition struct {
	Run        RunIdentifier
	Definition Definition
}
