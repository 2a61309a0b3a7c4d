package frame

import (
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

// SeriesFrameOptions select the optional per-path subcolumns.
type SeriesFrameOptions struct {
	IncludeTime bool
}

// SeriesFrame is the non-numeric counterpart of MetricFrame: the same
// (label, step) index with object-valued cells (string, histogram or file)
// and no preview columns.
type SeriesFrame struct {
	Labels  []string
	Index   []StepKey
	Columns []Column
	Cells   [][]any
}

// LabelAt resolves the label of one row.
func (f *SeriesFrame) LabelAt(row int) string {
	return f.Labels[f.Index[row].LabelCode]
}

// ColumnIndex returns the position of a column, -1 when absent.
func (f *SeriesFrame) ColumnIndex(name, sub string) int {
	return columnIndex(f.Columns, name, sub)
}

// SeriesFrameBuilder accumulates per-series elements and pivots them into
// the frame.
type SeriesFrameBuilder struct {
	opts   SeriesFrameOptions
	paths  map[string]struct{}
	values map[stepKey]map[string]attribute.SeriesValue
}

func NewSeriesFrameBuilder(opts SeriesFrameOptions) *SeriesFrameBuilder {
	return &SeriesFrameBuilder{
		opts:   opts,
		paths:  make(map[string]struct{}),
		values: make(map[stepKey]map[string]attribute.SeriesValue),
	}
}

// AddSeries records the fetched elements of one run's series.
func (b *SeriesFrameBuilder) AddSeries(label, path string, values []attribute.SeriesValue) {
	if len(values) == 0 {
		return
	}
	b.paths[path] = struct{}{}
	for _, v := range values {
		key := stepKey{label: label, step: v.Step}
		row := b.values[key]
		if row == nil {
			row = make(map[string]attribute.SeriesValue)
			b.values[key] = row
		}
		row[path] = v
	}
}

func (b *SeriesFrameBuilder) subcolumns() []string {
	if !b.opts.IncludeTime {
		return []string{""}
	}
	return []string{"value", "absolute_time"}
}

func (b *SeriesFrameBuilder) Build() *SeriesFrame {
	keys, labels, index := buildStepRows(b.values)
	paths := sortedPaths(b.paths)
	subs := b.subcolumns()

	cells := pivot(keys, b.values, paths, subs, func(v attribute.SeriesValue, sub string) any {
		switch sub {
		case "", "value":
			return v.Cell()
		case "absolute_time":
			return v.Time()
		}
		return nil
	})

	return &SeriesFrame{
		Labels:  labels,
		Index:   index,
		Columns: pathColumns(paths, subs),
		Cells:   cells,
	}
}
