package frame

import (
	"sort"
)

// FilesFrame lists download results: one row per label, one column per
// attribute name, both sorted. Cells hold the resolved local path, or nil
// when the file did not exist or was not downloaded.
type FilesFrame struct {
	Labels  []string
	Columns []string
	Cells   [][]*string
}

// Cell returns the path at (label row, attribute column), nil when absent.
func (f *FilesFrame) Cell(row int, attributeName string) *string {
	for i, c := range f.Columns {
		if c == attributeName {
			return f.Cells[row][i]
		}
	}
	return nil
}

// FilesFrameBuilder collects per-(label, attribute) download outcomes.
type FilesFrameBuilder struct {
	attrs map[string]struct{}
	cells map[string]map[string]*string
}

func NewFilesFrameBuilder() *FilesFrameBuilder {
	return &FilesFrameBuilder{
		attrs: make(map[string]struct{}),
		cells: make(map[string]map[string]*string),
	}
}

// Add records a downloaded file's local path.
func (b *FilesFrameBuilder) Add(label, attributeName, localPath string) {
	b.row(label, attributeName)[attributeName] = &localPath
}

// AddMissing records an attribute whose file was not downloaded; the cell
// stays nil but the row and column exist.
func (b *FilesFrameBuilder) AddMissing(label, attributeName string) {
	row := b.row(label, attributeName)
	if _, ok := row[attributeName]; !ok {
		row[attributeName] = nil
	}
}

func (b *FilesFrameBuilder) row(label, attributeName string) map[string]*string {
	b.attrs[attributeName] = struct{}{}
	row := b.cells[label]
	if row == nil {
		row = make(map[string]*string)
		b.cells[label] = row
	}
	return row
}

func (b *FilesFrameBuilder) Build() *FilesFrame {
	labels := make([]string, 0, len(b.cells))
	for label := range b.cells {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	columns := make([]string, 0, len(b.attrs))
	for attr := range b.attrs {
		columns = append(columns, attr)
	}
	sort.Strings(columns)

	cells := make([][]*string, len(labels))
	for i, label := range labels {
		row := make([]*string, len(columns))
		for j, attr := range columns {
			row[j] = b.cells[label][attr]
		}
		cells[i] = row
	}

	return &FilesFrame{Labels: labels, Columns: columns, Cells: cells}
}
