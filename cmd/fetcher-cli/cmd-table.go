package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
)

type tableFlags struct {
	domainFlags
	selectorFlags

	Limit      int    `help:"Maximum number of rows (0 = no limit)."`
	SortBy     string `help:"Attribute to sort rows by. Defaults to sys/creation_time."`
	Ascending  bool   `help:"Sort ascending instead of descending."`
	TypeSuffix bool   `help:"Disambiguate columns as name:type."`
}

type tableExperimentsCmd struct {
	tableFlags
}

func (cmd *tableExperimentsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerExperiment)
}

type tableRunsCmd struct {
	tableFlags
}

func (cmd *tableRunsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerRun)
}

func (f *tableFlags) run(opts *globalOptions, container attribute.ContainerType) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	selector, err := f.selector()
	if err != nil {
		return err
	}
	params := fetch.TableParams{
		Filter:        f.filter(container),
		Attributes:    selector,
		SortAscending: f.Ascending,
		Limit:         limitPtr(f.Limit),
		TypeSuffix:    f.TypeSuffix,
	}
	if f.SortBy != "" {
		sortBy := nql.Attr(f.SortBy)
		params.SortBy = &sortBy
	}

	var table *frame.Table
	if container == attribute.ContainerExperiment {
		table, err = client.FetchExperimentsTable(context.Background(), params)
	} else {
		table, err = client.FetchRunsTable(context.Background(), params)
	}
	if err != nil {
		return err
	}

	header := make([]string, 0, len(table.Columns)+1)
	header = append(header, table.IndexName)
	for _, col := range table.Columns {
		header = append(header, columnHeader(col))
	}

	rows := make([][]string, 0, len(table.Index))
	for i, label := range table.Index {
		row := make([]string, 0, len(table.Columns)+1)
		row = append(row, label)
		for _, cell := range table.Cells[i] {
			row = append(row, formatCell(cell))
		}
		rows = append(rows, row)
	}

	renderTable(header, rows, nil)
	fmt.Printf("total rows: %s\n", humanize.Comma(int64(len(table.Index))))
	return nil
}
