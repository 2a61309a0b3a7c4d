package frame

import (
	"sort"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// TableOptions control column naming and file handling.
type TableOptions struct {
	// TypeSuffix renders top-level column names as "name:type". Without it
	// names are bare, and two attributes collapsing to the same name with
	// different types are a conflict error.
	TypeSuffix bool

	// FlattenFiles splits file cells into path, size_bytes and mime_type
	// subcolumns instead of a single File cell.
	FlattenFiles bool
}

// Identifier pairs a run's sys id with its user-facing label.
type Identifier struct {
	SysID attribute.SysID
	Label string
}

// Table is the experiments/runs result. Rows are labelled by Index in the
// order sys ids first appeared in the identifier stream; cells are nil
// where a run has no value for a column.
type Table struct {
	IndexName string
	Index     []string
	Columns   []Column
	Cells     [][]any
}

// ColumnIndex returns the position of a column, -1 when absent.
func (t *Table) ColumnIndex(name, sub string) int {
	return columnIndex(t.Columns, name, sub)
}

// Cell returns the value at (row, column), nil when the column is absent.
func (t *Table) Cell(row int, name, sub string) any {
	i := t.ColumnIndex(name, sub)
	if i < 0 {
		return nil
	}
	return t.Cells[row][i]
}

type identifierPage struct {
	seq int
	ids []Identifier
}

type tableValue struct {
	value attribute.RunValue
	aggs  []attribute.Aggregation
}

// TableBuilder accumulates identifier pages and attribute values arriving
// in any order and materializes the table once the pipeline has drained.
type TableBuilder struct {
	container attribute.ContainerType
	opts      TableOptions

	pages  []identifierPage
	values []tableValue
}

func NewTableBuilder(container attribute.ContainerType, opts TableOptions) *TableBuilder {
	return &TableBuilder{container: container, opts: opts}
}

// AddIdentifiers records one page of the identifier stream. Seq restores
// stream order, so pages may arrive in any order.
func (b *TableBuilder) AddIdentifiers(seq int, ids []Identifier) {
	b.pages = append(b.pages, identifierPage{seq: seq, ids: ids})
}

// AddValue records one decoded attribute value. For series attributes the
// aggregations select the subcolumns; none means last.
func (b *TableBuilder) AddValue(v attribute.RunValue, aggs ...attribute.Aggregation) {
	b.values = append(b.values, tableValue{value: v, aggs: aggs})
}

// Build resolves column names, orders rows by first appearance in the
// identifier stream, and fills the cells. Values for runs outside the
// identifier stream are dropped.
func (b *TableBuilder) Build() (*Table, error) {
	sort.SliceStable(b.pages, func(i, j int) bool { return b.pages[i].seq < b.pages[j].seq })

	rowOf := make(map[attribute.SysID]int)
	var index []string
	for _, page := range b.pages {
		for _, id := range page.ids {
			if _, seen := rowOf[id.SysID]; seen {
				continue
			}
			rowOf[id.SysID] = len(index)
			index = append(index, id.Label)
		}
	}

	subsOf := make(map[attribute.Definition]map[string]struct{})
	for _, tv := range b.values {
		subs := subsOf[tv.value.Definition]
		if subs == nil {
			subs = make(map[string]struct{})
			subsOf[tv.value.Definition] = subs
		}
		for _, sub := range b.subcolumns(tv.value.Definition.Type, tv.aggs) {
			subs[sub] = struct{}{}
		}
	}

	names, err := b.columnNames(subsOf)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(subsOf))
	for def, subs := range subsOf {
		for sub := range subs {
			columns = append(columns, Column{Name: names[def], Sub: sub})
		}
	}
	sortColumns(columns)
	colOf := make(map[Column]int, len(columns))
	for i, c := range columns {
		colOf[c] = i
	}

	cells := make([][]any, len(index))
	for i := range cells {
		cells[i] = make([]any, len(columns))
	}
	for _, tv := range b.values {
		row, ok := rowOf[tv.value.Run.SysID]
		if !ok {
			continue
		}
		b.fillCells(cells[row], colOf, names[tv.value.Definition], tv)
	}

	return &Table{
		IndexName: b.container.String(),
		Index:     index,
		Columns:   columns,
		Cells:     cells,
	}, nil
}

// subcolumns lists the subcolumns one value contributes.
func (b *TableBuilder) subcolumns(t attribute.Type, aggs []attribute.Aggregation) []string {
	switch {
	case t.IsSeries():
		selected := tableAggregations(t, aggs)
		out := make([]string, 0, len(selected))
		for _, a := range selected {
			out = append(out, a.String())
		}
		return out
	case t == attribute.TypeFile && b.opts.FlattenFiles:
		return []string{"path", "size_bytes", "mime_type"}
	default:
		return []string{""}
	}
}

func (b *TableBuilder) fillCells(row []any, colOf map[Column]int, name string, tv tableValue) {
	v := tv.value.Value
	t := tv.value.Definition.Type
	switch {
	case t.IsSeries():
		for _, agg := range tableAggregations(t, tv.aggs) {
			if cell, ok := v.AggregationCell(agg); ok {
				row[colOf[Column{Name: name, Sub: agg.String()}]] = cell
			}
		}
	case t == attribute.TypeFile && b.opts.FlattenFiles:
		row[colOf[Column{Name: name, Sub: "path"}]] = v.File.Path
		row[colOf[Column{Name: name, Sub: "size_bytes"}]] = v.File.SizeBytes
		row[colOf[Column{Name: name, Sub: "mime_type"}]] = v.File.MimeType
	default:
		row[colOf[Column{Name: name, Sub: ""}]] = v.Scalar()
	}
}

// columnNames resolves top-level names. Without type suffixes, attributes
// collapsing to the same name with different types are rejected; the
// lexicographically first offender is reported with all its types.
func (b *TableBuilder) columnNames(subsOf map[attribute.Definition]map[string]struct{}) (map[attribute.Definition]string, error) {
	names := make(map[attribute.Definition]string, len(subsOf))
	if b.opts.TypeSuffix {
		for def := range subsOf {
			names[def] = def.Name + ":" + def.Type.String()
		}
		return names, nil
	}

	typesOf := make(map[string][]attribute.Type)
	for def := range subsOf {
		names[def] = def.Name
		typesOf[def.Name] = append(typesOf[def.Name], def.Type)
	}
	var conflicted []string
	for name, types := range typesOf {
		if len(types) > 1 {
			conflicted = append(conflicted, name)
		}
	}
	if len(conflicted) > 0 {
		sort.Strings(conflicted)
		name := conflicted[0]
		ts := make([]string, 0, len(typesOf[name]))
		for _, t := range typesOf[name] {
			ts = append(ts, t.String())
		}
		sort.Strings(ts)
		return nil, &fetcherr.ConflictingAttributeTypesError{Name: name, Types: ts}
	}
	return names, nil
}

// tableAggregations intersects the requested aggregations with what the
// type supports; series types always get at least last.
func tableAggregations(t attribute.Type, requested []attribute.Aggregation) []attribute.Aggregation {
	var out []attribute.Aggregation
	for _, a := range requested {
		if !attribute.SupportsAggregations(t, []attribute.Aggregation{a}) {
			continue
		}
		dup := false
		for _, chosen := range out {
			if a == chosen {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return []attribute.Aggregation{attribute.AggregationLast}
	}
	return out
}
