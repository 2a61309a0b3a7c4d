package main

import (
	"github.com/alecthomas/kong"
)

var cli struct {
	globalOptions

	List struct {
		Experiments listExperimentsCmd `cmd:"" help:"List experiment names, newest first."`
		Runs        listRunsCmd        `cmd:"" help:"List run custom ids, newest first."`
		Attributes  listAttributesCmd  `cmd:"" help:"List the distinct attribute definitions of matching containers."`
	} `cmd:"" help:"List project contents."`

	Table struct {
		Experiments tableExperimentsCmd `cmd:"" help:"Fetch a metadata table of matching experiments."`
		Runs        tableRunsCmd        `cmd:"" help:"Fetch a metadata table of matching runs."`
	} `cmd:"" help:"Fetch metadata tables."`

	Metrics struct {
		Experiments metricsExperimentsCmd `cmd:"" help:"Fetch float metric points of matching experiments."`
		Runs        metricsRunsCmd        `cmd:"" help:"Fetch float metric points of matching runs."`
	} `cmd:"" help:"Fetch metric series."`

	Series struct {
		Experiments seriesExperimentsCmd `cmd:"" help:"Fetch string, file and histogram series of matching experiments."`
		Runs        seriesRunsCmd        `cmd:"" help:"Fetch string, file and histogram series of matching runs."`
	} `cmd:"" help:"Fetch non-numeric series."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("fetcher-cli"),
		kong.Description("Query experiment-tracking projects: listings, metadata tables and metric series."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.globalOptions)
	ctx.FatalIfErrorf(err)
}
