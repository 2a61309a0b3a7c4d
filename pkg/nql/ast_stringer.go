package nql

import (
	"strconv"
	"strings"
	"time"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

const datetimeLayout = "2006-01-02T15:04:05.999999Z07:00"

func (a Attribute) String() string {
	var sb strings.Builder
	if a.Aggregation != attribute.AggregationNone {
		sb.WriteString(a.Aggregation.String())
		sb.WriteString("(")
	}
	sb.WriteString("`")
	sb.WriteString(a.Name)
	sb.WriteString("`")
	if a.Type != attribute.TypeUnknown {
		sb.WriteString(":")
		sb.WriteString(a.Type.Wire())
	}
	if a.Aggregation != attribute.AggregationNone {
		sb.WriteString(")")
	}
	return sb.String()
}

func (c *Comparison) String() string {
	return c.Attribute.String() + " " + c.Op.String() + " " + renderLiteral(c.Value)
}

func (e *Existence) String() string {
	return e.Attribute.String() + " " + OpExists.String()
}

func (l *Logical) String() string {
	parts := make([]string, 0, len(l.Filters))
	for _, f := range l.Filters {
		parts = append(parts, "("+f.String()+")")
	}
	return strings.Join(parts, " "+l.Op.String()+" ")
}

func (n *Negation) String() string {
	return OpNot.String() + " (" + n.Inner.String() + ")"
}

func renderLiteral(v attribute.Value) string {
	switch v.Type {
	case attribute.TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case attribute.TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case attribute.TypeString:
		return quoteString(v.Str)
	case attribute.TypeBool:
		return strconv.FormatBool(v.Bool)
	case attribute.TypeDatetime:
		// ISO-8601 with the offset of the local zone.
		return quoteString(v.Time.In(time.Local).Format(datetimeLayout))
	}
	return quoteString(v.String())
}

// quoteString escapes backslash and double quote, the two characters the
// backend treats specially inside string literals.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
