package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
)

type metricsFlags struct {
	domainFlags
	selectorFlags

	StepFrom         float64 `default:"-1" help:"Lowest step to fetch (negative = unbounded)."`
	StepTo           float64 `default:"-1" help:"Highest step to fetch (negative = unbounded)."`
	Tail             int     `help:"Keep only the newest N points of each series (0 = all)."`
	IncludeTime      bool    `help:"Add an absolute_time column."`
	IncludePreviews  bool    `help:"Include uncommitted points and the preview columns."`
	IncludeInherited bool    `help:"Walk the run lineage to the root when fetching."`
	TypeSuffix       bool    `help:"Disambiguate columns as path:float_series."`
}

type metricsExperimentsCmd struct {
	metricsFlags
}

func (cmd *metricsExperimentsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerExperiment)
}

type metricsRunsCmd struct {
	metricsFlags
}

func (cmd *metricsRunsCmd) Run(opts *globalOptions) error {
	return cmd.run(opts, attribute.ContainerRun)
}

func (f *metricsFlags) run(opts *globalOptions, container attribute.ContainerType) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	selector, err := f.selector()
	if err != nil {
		return err
	}
	params := fetch.MetricsParams{
		Filter:           f.filter(container),
		Attributes:       selector,
		StepFrom:         stepPtr(f.StepFrom),
		StepTo:           stepPtr(f.StepTo),
		TailLimit:        limitPtr(f.Tail),
		IncludePreviews:  f.IncludePreviews,
		IncludeInherited: f.IncludeInherited,
		TypeSuffix:       f.TypeSuffix,
	}
	if f.IncludeTime {
		params.IncludeTime = "absolute"
	}

	var metrics *frame.MetricFrame
	if container == attribute.ContainerExperiment {
		metrics, err = client.FetchMetrics(context.Background(), params)
	} else {
		metrics, err = client.FetchRunMetrics(context.Background(), params)
	}
	if err != nil {
		return err
	}

	header := make([]string, 0, len(metrics.Columns)+2)
	header = append(header, container.String(), "step")
	for _, col := range metrics.Columns {
		header = append(header, columnHeader(col))
	}

	rows := make([][]string, 0, len(metrics.Index))
	for i, key := range metrics.Index {
		row := make([]string, 0, len(metrics.Columns)+2)
		row = append(row, metrics.LabelAt(i), formatStep(key.Step))
		for _, cell := range metrics.Cells[i] {
			row = append(row, formatCell(cell))
		}
		rows = append(rows, row)
	}

	renderTable(header, rows, nil)
	fmt.Printf("total points: %s\n", humanize.Comma(int64(len(metrics.Index))))
	return nil
}
