// Package frame materializes pipeline results into the caller-facing
// shapes: the experiments/runs table, the metric frame, the raw series
// frame, and the files listing. Builders are fed by the single-threaded
// assembly loop and never see the wire.
package frame

import (
	"sort"
)

// Column is one result column: the resolved top-level name and the
// subcolumn under it. Scalar columns use the empty subcolumn.
type Column struct {
	Name string
	Sub  string
}

func sortColumns(cols []Column) {
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Name != cols[j].Name {
			return cols[i].Name < cols[j].Name
		}
		return cols[i].Sub < cols[j].Sub
	})
}

func columnIndex(cols []Column, name, sub string) int {
	for i, c := range cols {
		if c.Name == name && c.Sub == sub {
			return i
		}
	}
	return -1
}

// stepKey identifies one row of a step-indexed frame.
type stepKey struct {
	label string
	step  float64
}

// StepKey is one row key of a step-indexed frame. LabelCode points into the
// frame's label dictionary, keeping the label column interned.
type StepKey struct {
	LabelCode int
	Step      float64
}

// buildStepRows sorts the row domain by (label, step) and interns labels.
// The dictionary comes out sorted because rows are walked in label order.
func buildStepRows[P any](cells map[stepKey]map[string]P) (keys []stepKey, labels []string, index []StepKey) {
	keys = make([]stepKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].label != keys[j].label {
			return keys[i].label < keys[j].label
		}
		return keys[i].step < keys[j].step
	})

	index = make([]StepKey, 0, len(keys))
	codes := make(map[string]int)
	for _, k := range keys {
		code, ok := codes[k.label]
		if !ok {
			code = len(labels)
			codes[k.label] = code
			labels = append(labels, k.label)
		}
		index = append(index, StepKey{LabelCode: code, Step: k.step})
	}
	return keys, labels, index
}

func sortedPaths(paths map[string]struct{}) []string {
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// pathColumns lays out per-path subcolumns in their declared order. With a
// single empty subcolumn the header is effectively one level.
func pathColumns(paths []string, subs []string) []Column {
	cols := make([]Column, 0, len(paths)*len(subs))
	for _, p := range paths {
		for _, s := range subs {
			cols = append(cols, Column{Name: p, Sub: s})
		}
	}
	return cols
}

// pivot fills the cell matrix of a step-indexed frame, leaving nil where a
// path has no point at a row's step.
func pivot[P any](keys []stepKey, data map[stepKey]map[string]P, paths, subs []string, cell func(P, string) any) [][]any {
	cells := make([][]any, len(keys))
	for i, key := range keys {
		row := make([]any, len(paths)*len(subs))
		for j, p := range paths {
			v, ok := data[key][p]
			if !ok {
				continue
			}
			base := j * len(subs)
			for off, sub := range subs {
				row[base+off] = cell(v, sub)
			}
		}
		cells[i] = row
	}
	return cells
}
