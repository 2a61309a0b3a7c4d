package main

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
)

type listAttributesCmd struct {
	domainFlags
	selectorFlags

	Runs bool `help:"List attributes of stand-alone runs instead of experiments."`
}

func (cmd *listAttributesCmd) Run(opts *globalOptions) error {
	client, err := opts.newFetchClient()
	if err != nil {
		return err
	}
	defer client.Close()

	container := attribute.ContainerExperiment
	if cmd.Runs {
		container = attribute.ContainerRun
	}
	selector, err := cmd.selector()
	if err != nil {
		return err
	}
	params := fetch.ListAttributesParams{
		Filter:     cmd.filter(container),
		Attributes: selector,
	}

	var defs []attribute.Definition
	if cmd.Runs {
		defs, err = client.ListRunAttributes(context.Background(), params)
	} else {
		defs, err = client.ListAttributes(context.Background(), params)
	}
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, []string{def.Name, def.Type.String()})
	}
	renderTable([]string{"name", "type"}, rows, []string{"total", humanize.Comma(int64(len(defs)))})
	return nil
}
