package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
)

type listRunsCmd struct {
	domainFlags

	Limit int `help:"Maximum number of ids to return (0 = no limit)."`
}

func (cmd *listRunsCmd) Run(opts *globalOptions) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ids, err := client.ListRuns(context.Background(), fetch.ListParams{
		Filter: cmd.filter(attribute.ContainerRun),
		Limit:  limitPtr(cmd.Limit),
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == "" {
			id = "<no custom id>"
		}
		fmt.Println(id)
	}
	fmt.Printf("\ntotal: %s\n", humanize.Comma(int64(len(ids))))
	return nil
}
