package nql

import (
	"regexp"
	"strings"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// AttributeSelector selects attribute definitions. A selector is a union of
// leaf filters: each leaf becomes one concurrent fetch and results are
// deduplicated by (name, type).
type AttributeSelector interface {
	Leaves() []*AttributeFilter
}

// AttributeFilter is one selector leaf. All criteria combine conjunctively;
// empty criteria do not restrict.
type AttributeFilter struct {
	NameEq          []string
	NameMatchesAll  []string
	NameMatchesNone []string
	TypeIn          []attribute.Type

	// Aggregations is metadata for later value and series fetches; the
	// definition query ignores it.
	Aggregations []attribute.Aggregation
}

func (f *AttributeFilter) Leaves() []*AttributeFilter {
	return []*AttributeFilter{f}
}

// Or unions this leaf with another selector.
func (f *AttributeFilter) Or(other AttributeSelector) *AttributeFilterAlternative {
	return &AttributeFilterAlternative{Filters: append(f.Leaves(), other.Leaves()...)}
}

// Validate checks the leaf before it is lowered to a wire call.
func (f *AttributeFilter) Validate() error {
	for _, pattern := range append(append([]string{}, f.NameMatchesAll...), f.NameMatchesNone...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fetcherr.Userf("invalid attribute name regex %q: %v", pattern, err)
		}
	}
	for _, agg := range f.Aggregations {
		if agg == attribute.AggregationNone {
			return fetcherr.User("aggregation list must not contain the empty aggregation")
		}
	}
	return nil
}

// MustMatchRegexes lowers the positive name criteria to the wire form:
// NameMatchesAll plus an anchored, escaped alternation of NameEq. The name
// must match every returned regex.
func (f *AttributeFilter) MustMatchRegexes() []string {
	regexes := make([]string, 0, len(f.NameMatchesAll)+1)
	regexes = append(regexes, f.NameMatchesAll...)
	if len(f.NameEq) > 0 {
		escaped := make([]string, 0, len(f.NameEq))
		for _, name := range f.NameEq {
			escaped = append(escaped, regexp.QuoteMeta(name))
		}
		regexes = append(regexes, "^("+strings.Join(escaped, "|")+")$")
	}
	return regexes
}

// MustNotMatchRegexes lowers the negative name criteria.
func (f *AttributeFilter) MustNotMatchRegexes() []string {
	return append([]string{}, f.NameMatchesNone...)
}

// WireTypes lowers the type restriction to backend type tags. Empty means
// unrestricted.
func (f *AttributeFilter) WireTypes() []string {
	tags := make([]string, 0, len(f.TypeIn))
	for _, t := range f.TypeIn {
		tags = append(tags, t.Wire())
	}
	return tags
}

// AttributeFilterAlternative is a union of leaves produced by Or.
type AttributeFilterAlternative struct {
	Filters []*AttributeFilter
}

func (a *AttributeFilterAlternative) Leaves() []*AttributeFilter {
	return a.Filters
}

// Or unions this alternative with another selector.
func (a *AttributeFilterAlternative) Or(other AttributeSelector) *AttributeFilterAlternative {
	return &AttributeFilterAlternative{Filters: append(append([]*AttributeFilter{}, a.Filters...), other.Leaves()...)}
}
