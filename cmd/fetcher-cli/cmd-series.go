package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
)

type seriesFlags struct {
	domainFlags
	selectorFlags

	StepFrom         float64 `default:"-1" help:"Lowest step to fetch (negative = unbounded)."`
	StepTo           float64 `default:"-1" help:"Highest step to fetch (negative = unbounded)."`
	Tail             int     `help:"Keep only the newest N values of each series (0 = all)."`
	IncludeTime      bool    `help:"Add an absolute_time column."`
	IncludeInherited bool    `help:"Walk the run lineage to the root when fetching."`
}

type seriesExperimentsCmd struct {
	seriesFlags
}

func (cmd *seriesExperimentsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerExperiment)
}

type seriesRunsCmd struct {
	seriesFlags
}

func (cmd *seriesRunsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerRun)
}

func (f *seriesFlags) run(opts *globalOptions, container attribute.ContainerType) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	selector, err := f.selector()
	if err != nil {
		return err
	}
	params := fetch.SeriesParams{
		Filter:           f.filter(container),
		Attributes:       selector,
		StepFrom:         stepPtr(f.StepFrom),
		StepTo:           stepPtr(f.StepTo),
		TailLimit:        limitPtr(f.Tail),
		IncludeInherited: f.IncludeInherited,
	}
	if f.IncludeTime {
		params.IncludeTime = "absolute"
	}

	var series *frame.SeriesFrame
	if container == attribute.ContainerExperiment {
		series, err = client.FetchSeries(context.Background(), params)
	} else {
		series, err = client.FetchRunSeries(context.Background(), params)
	}
	if err != nil {
		return err
	}

	header := make([]string, 0, len(series.Columns)+2)
	header = append(header, container.String(), "step")
	for _, col := range series.Columns {
		header = append(header, columnHeader(col))
	}

	rows := make([][]string, 0, len(series.Index))
	for i, key := range series.Index {
		row := make([]string, 0, len(series.Columns)+2)
		row = append(row, series.LabelAt(i), formatStep(key.Step))
		for _, cell := range series.Cells[i] {
			row = append(row, formatCell(cell))
		}
		rows = append(rows, row)
	}

	renderTable(header, rows, nil)
	fmt.Printf("total values: %s\n", humanize.Comma(int64(len(series.Index))))
	return nil
}
