// Package nql models the logical filter used to select runs and serializes
// it into the backend's query language. Filters are finite trees built from
// factory predicates; serialization validates the tree first so malformed
// input never reaches the wire.
package nql

import (
	"regexp"
	"time"

	"github.com/spf13/cast"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// Filter is one node of the logical filter tree.
type Filter interface {
	// String renders the node in backend query syntax. Call ToQuery to
	// validate before rendering.
	String() string

	validate() error
	clone() Filter
	collectAttributes(attrs []*Attribute) []*Attribute
}

// Attribute is a reference to an attribute inside a filter. Type may be left
// unknown at construction; inference resolves it before dispatch.
type Attribute struct {
	Name        string
	Type        attribute.Type
	Aggregation attribute.Aggregation
}

// Attr references an attribute by name, leaving the type to inference.
func Attr(name string) Attribute {
	return Attribute{Name: name}
}

// TypedAttr references an attribute with an explicit type.
func TypedAttr(name string, typ attribute.Type) Attribute {
	return Attribute{Name: name, Type: typ}
}

// Aggregated returns a copy of the attribute with an aggregation applied.
func (a Attribute) Aggregated(agg attribute.Aggregation) Attribute {
	a.Aggregation = agg
	return a
}

func (a Attribute) validate() error {
	if a.Name == "" {
		return fetcherr.User("attribute name must not be empty")
	}
	if a.Aggregation != attribute.AggregationNone && a.Type != attribute.TypeUnknown {
		if !attribute.SupportsAggregations(a.Type, []attribute.Aggregation{a.Aggregation}) {
			return fetcherr.Userf("aggregation %s is not supported for attribute %q of type %s", a.Aggregation, a.Name, a.Type)
		}
	}
	return nil
}

// ToQuery validates the filter and renders the backend query string. A nil
// filter renders as the empty string, meaning no server-side filtering.
func ToQuery(f Filter) (string, error) {
	if f == nil {
		return "", nil
	}
	if err := f.validate(); err != nil {
		return "", err
	}
	return f.String(), nil
}

// Clone returns a deep copy of the filter. Inference types the copy in place
// so the caller's tree is never mutated.
func Clone(f Filter) Filter {
	if f == nil {
		return nil
	}
	return f.clone()
}

// CollectAttributes returns pointers to every attribute reference in the
// filter, depth-first. The pointers alias the given tree, letting inference
// assign resolved types directly.
func CollectAttributes(f Filter) []*Attribute {
	if f == nil {
		return nil
	}
	return f.collectAttributes(nil)
}

// Comparison is a leaf predicate `attr OP literal`.
type Comparison struct {
	Attribute Attribute
	Op        Operator
	Value     attribute.Value

	litErr error
}

func newComparison(attr Attribute, op Operator, value any) *Comparison {
	lit, err := literalOf(value)
	return &Comparison{Attribute: attr, Op: op, Value: lit, litErr: err}
}

func (c *Comparison) validate() error {
	if err := c.Attribute.validate(); err != nil {
		return err
	}
	if c.litErr != nil {
		return c.litErr
	}
	if c.Op.isRegex() {
		if c.Value.Type != attribute.TypeString {
			return fetcherr.Userf("operator %s requires a string pattern", c.Op)
		}
		if _, err := regexp.Compile(c.Value.Str); err != nil {
			return fetcherr.Userf("invalid regex %q: %v", c.Value.Str, err)
		}
	}
	return nil
}

func (c *Comparison) clone() Filter {
	cp := *c
	return &cp
}

func (c *Comparison) collectAttributes(attrs []*Attribute) []*Attribute {
	return append(attrs, &c.Attribute)
}

// Existence is the leaf predicate `attr EXISTS`.
type Existence struct {
	Attribute Attribute
}

func (e *Existence) validate() error {
	return e.Attribute.validate()
}

func (e *Existence) clone() Filter {
	cp := *e
	return &cp
}

func (e *Existence) collectAttributes(attrs []*Attribute) []*Attribute {
	return append(attrs, &e.Attribute)
}

// Logical is an associative AND/OR node over two or more child filters.
type Logical struct {
	Op      Operator
	Filters []Filter
}

func (l *Logical) validate() error {
	if l.Op != OpAnd && l.Op != OpOr {
		return fetcherr.Userf("operator %s cannot combine filters", l.Op)
	}
	if len(l.Filters) == 0 {
		return fetcherr.User("a logical filter needs at least one operand")
	}
	for _, f := range l.Filters {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logical) clone() Filter {
	cp := &Logical{Op: l.Op, Filters: make([]Filter, len(l.Filters))}
	for i, f := range l.Filters {
		cp.Filters[i] = f.clone()
	}
	return cp
}

func (l *Logical) collectAttributes(attrs []*Attribute) []*Attribute {
	for _, f := range l.Filters {
		attrs = f.collectAttributes(attrs)
	}
	return attrs
}

// Negation is the prefix `NOT` over a child filter.
type Negation struct {
	Inner Filter
}

func (n *Negation) validate() error {
	return n.Inner.validate()
}

func (n *Negation) clone() Filter {
	return &Negation{Inner: n.Inner.clone()}
}

func (n *Negation) collectAttributes(attrs []*Attribute) []*Attribute {
	return n.Inner.collectAttributes(attrs)
}

// Eq matches runs whose attribute equals the literal.
func Eq(attr Attribute, value any) Filter { return newComparison(attr, OpEqual, value) }

// Ne matches runs whose attribute differs from the literal.
func Ne(attr Attribute, value any) Filter { return newComparison(attr, OpNotEqual, value) }

// Gt matches runs whose attribute is greater than the literal.
func Gt(attr Attribute, value any) Filter { return newComparison(attr, OpGreater, value) }

// Ge matches runs whose attribute is greater than or equal to the literal.
func Ge(attr Attribute, value any) Filter { return newComparison(attr, OpGreaterEqual, value) }

// Lt matches runs whose attribute is less than the literal.
func Lt(attr Attribute, value any) Filter { return newComparison(attr, OpLess, value) }

// Le matches runs whose attribute is less than or equal to the literal.
func Le(attr Attribute, value any) Filter { return newComparison(attr, OpLessEqual, value) }

// Exists matches runs that carry the attribute at all.
func Exists(attr Attribute) Filter { return &Existence{Attribute: attr} }

// MatchesAll matches runs whose attribute matches every given regex.
func MatchesAll(attr Attribute, patterns ...string) Filter {
	return foldPredicates(attr, OpMatches, OpAnd, patterns)
}

// MatchesNone matches runs whose attribute matches none of the given regexes.
func MatchesNone(attr Attribute, patterns ...string) Filter {
	return foldPredicates(attr, OpNotMatches, OpAnd, patterns)
}

// ContainsAll matches runs whose attribute contains every given value,
// as substring for strings and as member for string sets.
func ContainsAll(attr Attribute, values ...string) Filter {
	return foldPredicates(attr, OpContains, OpAnd, values)
}

// ContainsNone matches runs whose attribute contains none of the given
// values.
func ContainsNone(attr Attribute, values ...string) Filter {
	return foldPredicates(attr, OpNotContains, OpAnd, values)
}

// Name matches experiments by exact name.
func Name(name string) Filter {
	return Eq(TypedAttr("sys/name", attribute.TypeString), name)
}

// NameIn matches experiments whose name equals any of the given names.
func NameIn(names ...string) Filter {
	if len(names) == 0 {
		return &Logical{Op: OpOr}
	}
	filters := make([]Filter, 0, len(names))
	for _, n := range names {
		filters = append(filters, Name(n))
	}
	return Any(filters...)
}

// NameMatches matches experiments whose name matches the regex.
func NameMatches(pattern string) Filter {
	return MatchesAll(TypedAttr("sys/name", attribute.TypeString), pattern)
}

// All combines filters conjunctively.
func All(filters ...Filter) Filter {
	return combine(OpAnd, filters)
}

// Any combines filters disjunctively.
func Any(filters ...Filter) Filter {
	return combine(OpOr, filters)
}

// Negate inverts a filter.
func Negate(f Filter) Filter {
	return &Negation{Inner: f}
}

func combine(op Operator, filters []Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return &Logical{Op: op, Filters: filters}
}

func foldPredicates(attr Attribute, op, fold Operator, values []string) Filter {
	if len(values) == 0 {
		// Rejected by validate so the error surfaces before any wire call.
		return &Logical{Op: fold}
	}
	filters := make([]Filter, 0, len(values))
	for _, v := range values {
		filters = append(filters, newComparison(attr, op, v))
	}
	return combine(fold, filters)
}

func literalOf(value any) (attribute.Value, error) {
	switch v := value.(type) {
	case float32, float64:
		return attribute.FloatValue(cast.ToFloat64(v)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return attribute.IntValue(cast.ToInt64(v)), nil
	case string:
		return attribute.StringValue(v), nil
	case bool:
		return attribute.BoolValue(v), nil
	case time.Time:
		return attribute.TimeValue(v), nil
	default:
		return attribute.Value{}, fetcherr.Userf("unsupported filter literal of type %T", value)
	}
}
