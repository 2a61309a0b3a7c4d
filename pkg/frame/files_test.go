package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesFrameSortedRowsAndColumns(t *testing.T) {
	b := NewFilesFrameBuilder()
	b.Add("expB", "files/b", "/tmp/b.txt")
	b.AddMissing("expA", "files/a")
	b.Add("expA", "files/b", "/tmp/ab.txt")

	f := b.Build()

	assert.Equal(t, []string{"expA", "expB"}, f.Labels)
	assert.Equal(t, []string{"files/a", "files/b"}, f.Columns)

	assert.Nil(t, f.Cell(0, "files/a"))
	require.NotNil(t, f.Cell(0, "files/b"))
	assert.Equal(t, "/tmp/ab.txt", *f.Cell(0, "files/b"))
	assert.Nil(t, f.Cell(1, "files/a"))
	require.NotNil(t, f.Cell(1, "files/b"))
	assert.Equal(t, "/tmp/b.txt", *f.Cell(1, "files/b"))
}

func TestFilesFrameMissingDoesNotOverwrite(t *testing.T) {
	b := NewFilesFrameBuilder()
	b.Add("expA", "files/a", "/tmp/a.txt")
	b.AddMissing("expA", "files/a")

	f := b.Build()

	require.NotNil(t, f.Cell(0, "files/a"))
	assert.Equal(t, "/tmp/a.txt", *f.Cell(0, "files/a"))
}
