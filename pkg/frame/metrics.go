package frame

import (
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

// MetricFrameOptions select the optional per-path subcolumns.
type MetricFrameOptions struct {
	IncludeTime     bool
	IncludePreviews bool
}

// MetricFrame holds float metric points indexed by (label, step), sorted by
// label then step ascending. Labels are interned: Index rows carry codes
// into the Labels dictionary.
type MetricFrame struct {
	Labels  []string
	Index   []StepKey
	Columns []Column
	Cells   [][]any
}

// LabelAt resolves the label of one row.
func (f *MetricFrame) LabelAt(row int) string {
	return f.Labels[f.Index[row].LabelCode]
}

// ColumnIndex returns the position of a column, -1 when absent.
func (f *MetricFrame) ColumnIndex(name, sub string) int {
	return columnIndex(f.Columns, name, sub)
}

// MetricFrameBuilder accumulates per-series points and pivots them into the
// frame. A point overwrites an earlier point at the same (label, step,
// path).
type MetricFrameBuilder struct {
	opts   MetricFrameOptions
	paths  map[string]struct{}
	points map[stepKey]map[string]attribute.Point
}

func NewMetricFrameBuilder(opts MetricFrameOptions) *MetricFrameBuilder {
	return &MetricFrameBuilder{
		opts:   opts,
		paths:  make(map[string]struct{}),
		points: make(map[stepKey]map[string]attribute.Point),
	}
}

// AddSeries records the fetched points of one run's metric.
func (b *MetricFrameBuilder) AddSeries(label, path string, points []attribute.Point) {
	if len(points) == 0 {
		return
	}
	b.paths[path] = struct{}{}
	for _, p := range points {
		key := stepKey{label: label, step: p.Step}
		row := b.points[key]
		if row == nil {
			row = make(map[string]attribute.Point)
			b.points[key] = row
		}
		row[path] = p
	}
}

func (b *MetricFrameBuilder) subcolumns() []string {
	if !b.opts.IncludeTime && !b.opts.IncludePreviews {
		return []string{""}
	}
	subs := []string{"value"}
	if b.opts.IncludeTime {
		subs = append(subs, "absolute_time")
	}
	if b.opts.IncludePreviews {
		subs = append(subs, "is_preview", "preview_completion")
	}
	return subs
}

func (b *MetricFrameBuilder) Build() *MetricFrame {
	keys, labels, index := buildStepRows(b.points)
	paths := sortedPaths(b.paths)
	subs := b.subcolumns()

	cells := pivot(keys, b.points, paths, subs, func(p attribute.Point, sub string) any {
		switch sub {
		case "", "value":
			return p.Value
		case "absolute_time":
			return p.Time()
		case "is_preview":
			return p.IsPreview
		case "preview_completion":
			return p.PreviewCompletion
		}
		return nil
	})

	return &MetricFrame{
		Labels:  labels,
		Index:   index,
		Columns: pathColumns(paths, subs),
		Cells:   cells,
	}
}
