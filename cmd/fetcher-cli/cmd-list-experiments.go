package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
)

type listExperimentsCmd struct {
	domainFlags

	Limit int `help:"Maximum number of names to return (0 = no limit)."`
}

func (cmd *listExperimentsCmd) Run(opts *globalOptions) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	names, err := client.ListExperiments(context.Background(), fetch.ListParams{
		Filter: cmd.filter(attribute.ContainerExperiment),
		Limit:  limitPtr(cmd.Limit),
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Printf("\ntotal: %s\n", humanize.Comma(int64(len(names))))
	return nil
}
