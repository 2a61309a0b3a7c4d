package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

func rv(sysID, name string, v attribute.Value) attribute.RunValue {
	return attribute.RunValue{
		Run:        attribute.RunIdentifier{Project: "team/proj", SysID: attribute.SysID(sysID)},
		Definition: attribute.Definition{Name: name, Type: v.Type},
		Value:      v,
	}
}

func TestTableMinimalFetch(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{{SysID: "R-1", Label: "exp-A"}})
	b.AddValue(rv("R-1", "sys/id", attribute.StringValue("R-1")))

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "experiment", table.IndexName)
	assert.Equal(t, []string{"exp-A"}, table.Index)
	assert.Equal(t, []Column{{Name: "sys/id", Sub: ""}}, table.Columns)
	assert.Equal(t, "R-1", table.Cell(0, "sys/id", ""))
}

func TestTableRowOrderFollowsIdentifierStream(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerRun, TableOptions{})
	// Pages arrive out of order; seq restores the stream order. RUN-2 shows
	// up twice and must keep its first position.
	b.AddIdentifiers(1, []Identifier{{SysID: "RUN-2", Label: "r2"}, {SysID: "RUN-3", Label: "r3"}})
	b.AddIdentifiers(0, []Identifier{{SysID: "RUN-1", Label: "r1"}, {SysID: "RUN-2", Label: "r2"}})

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "run", table.IndexName)
	assert.Equal(t, []string{"r1", "r2", "r3"}, table.Index)
}

func TestTableAggregationSubcolumns(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{
		{SysID: "EX-1", Label: "a"},
		{SysID: "EX-2", Label: "b"},
	})
	b.AddValue(rv("EX-1", "config/lr", attribute.FloatValue(0.01)))
	b.AddValue(rv("EX-2", "config/lr", attribute.FloatValue(0.02)))
	b.AddValue(
		rv("EX-1", "metrics/loss", attribute.FloatSeriesValue(attribute.FloatSeriesAggregates{Last: 0.1, Min: 0.05})),
		attribute.AggregationLast, attribute.AggregationMin,
	)

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "config/lr", Sub: ""},
		{Name: "metrics/loss", Sub: "last"},
		{Name: "metrics/loss", Sub: "min"},
	}, table.Columns)
	assert.Equal(t, [][]any{
		{0.01, 0.1, 0.05},
		{0.02, nil, nil},
	}, table.Cells)
}

func TestTableSeriesDefaultsToLast(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{{SysID: "EX-1", Label: "a"}})
	b.AddValue(rv("EX-1", "logs/status", attribute.StringSeriesValue(attribute.StringSeriesAggregates{Last: "done", LastStep: 9})))

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "logs/status", Sub: "last"}}, table.Columns)
	assert.Equal(t, "done", table.Cell(0, "logs/status", "last"))
}

func TestTableTypeSuffixKeepsBothTypes(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{TypeSuffix: true})
	b.AddIdentifiers(0, []Identifier{
		{SysID: "EX-1", Label: "a"},
		{SysID: "EX-2", Label: "b"},
	})
	b.AddValue(rv("EX-1", "config/batch_size", attribute.IntValue(32)))
	b.AddValue(rv("EX-2", "config/batch_size", attribute.FloatValue(32.5)))

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "config/batch_size:float", Sub: ""},
		{Name: "config/batch_size:int", Sub: ""},
	}, table.Columns)
	assert.Equal(t, int64(32), table.Cell(0, "config/batch_size:int", ""))
	assert.Equal(t, 32.5, table.Cell(1, "config/batch_size:float", ""))
	assert.Nil(t, table.Cell(0, "config/batch_size:float", ""))
}

func TestTableNameCollisionWithoutSuffix(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{{SysID: "EX-1", Label: "a"}, {SysID: "EX-2", Label: "b"}})
	b.AddValue(rv("EX-1", "config/batch_size", attribute.IntValue(32)))
	b.AddValue(rv("EX-2", "config/batch_size", attribute.FloatValue(32.5)))

	_, err := b.Build()

	var conflict *fetcherr.ConflictingAttributeTypesError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "config/batch_size", conflict.Name)
	assert.Equal(t, []string{"float", "int"}, conflict.Types)
}

func TestTableFlattensFileColumns(t *testing.T) {
	file := attribute.File{Path: "model/weights.bin", SizeBytes: 2048, MimeType: "application/octet-stream"}

	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{FlattenFiles: true})
	b.AddIdentifiers(0, []Identifier{{SysID: "EX-1", Label: "a"}})
	b.AddValue(rv("EX-1", "artifacts/model", attribute.FileValue(file)))

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "artifacts/model", Sub: "mime_type"},
		{Name: "artifacts/model", Sub: "path"},
		{Name: "artifacts/model", Sub: "size_bytes"},
	}, table.Columns)
	assert.Equal(t, "model/weights.bin", table.Cell(0, "artifacts/model", "path"))
	assert.Equal(t, int64(2048), table.Cell(0, "artifacts/model", "size_bytes"))
	assert.Equal(t, "application/octet-stream", table.Cell(0, "artifacts/model", "mime_type"))
}

func TestTableFileCellWithoutFlatten(t *testing.T) {
	file := attribute.File{Path: "model/weights.bin", SizeBytes: 2048, MimeType: "application/octet-stream"}

	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{{SysID: "EX-1", Label: "a"}})
	b.AddValue(rv("EX-1", "artifacts/model", attribute.FileValue(file)))

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "artifacts/model", Sub: ""}}, table.Columns)
	assert.Equal(t, file, table.Cell(0, "artifacts/model", ""))
}

func TestTableEmptyDomainKeepsHeader(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})

	table, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "experiment", table.IndexName)
	assert.Empty(t, table.Index)
	assert.Empty(t, table.Columns)
	assert.Empty(t, table.Cells)
}

func TestTableDropsValuesOutsideIdentifierStream(t *testing.T) {
	b := NewTableBuilder(attribute.ContainerExperiment, TableOptions{})
	b.AddIdentifiers(0, []Identifier{{SysID: "EX-1", Label: "a"}})
	b.AddValue(rv("EX-1", "config/lr", attribute.FloatValue(0.01)))
	b.AddValue(rv("EX-9", "config/lr", attribute.FloatValue(0.09)))

	table, err := b.Build()
	require.NoError(t, err)

	require.Equal(t, []string{"a"}, table.Index)
	assert.Equal(t, 0.01, table.Cell(0, "config/lr", ""))
}
