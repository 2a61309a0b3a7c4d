package fetch

import (
	"context"
	"sort"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/collector"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
	"github.com/neptune-ai/fetcher-go/pkg/split"
)

// ListParams restrict a label listing.
type ListParams struct {
	// Filter restricts the run domain; nil matches everything.
	Filter nql.Filter

	// Limit caps the number of labels.
	Limit *int
}

// ListExperiments returns the names of experiments matching the filter,
// newest first.
func (c *Client) ListExperiments(ctx context.Context, p ListParams) ([]string, error) {
	return c.listLabels(ctx, attribute.ContainerExperiment, p)
}

// ListRuns returns the custom run ids of runs matching the filter, newest
// first. Runs without a custom id list as the empty string.
func (c *Client) ListRuns(ctx context.Context, p ListParams) ([]string, error) {
	return c.listLabels(ctx, attribute.ContainerRun, p)
}

func (c *Client) listLabels(ctx context.Context, container attribute.ContainerType, p ListParams) ([]string, error) {
	if err := validatePositive("limit", p.Limit); err != nil {
		return nil, err
	}

	defsPool := c.newPool(ctx)
	defer defsPool.Close()

	plan, err := c.planSearch(ctx, defsPool, container, p.Filter, nil, false, p.Limit)
	if err != nil {
		return nil, err
	}

	var labels []string
	err = c.retriever.SysIDLabels(ctx, plan.params, func(page retrieval.IdentifierPage) error {
		for _, item := range page.Items {
			labels = append(labels, item.Label)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := defsPool.Close(); err != nil {
		return nil, err
	}
	return labels, nil
}

// ListAttributesParams restrict an attribute listing.
type ListAttributesParams struct {
	// Filter restricts the listing to attributes present on matching
	// experiments; nil lists the whole project.
	Filter nql.Filter

	// Attributes restricts by name and type; nil selects everything.
	Attributes nql.AttributeSelector
}

// ListAttributes returns the distinct attribute definitions of experiments
// matching the filter, sorted by name then type.
func (c *Client) ListAttributes(ctx context.Context, p ListAttributesParams) ([]attribute.Definition, error) {
	return c.listAttributes(ctx, attribute.ContainerExperiment, p)
}

// ListRunAttributes is ListAttributes over stand-alone runs.
func (c *Client) ListRunAttributes(ctx context.Context, p ListAttributesParams) ([]attribute.Definition, error) {
	return c.listAttributes(ctx, attribute.ContainerRun, p)
}

func (c *Client) listAttributes(ctx context.Context, container attribute.ContainerType, p ListAttributesParams) ([]attribute.Definition, error) {
	defsPool := c.newPool(ctx)
	defer defsPool.Close()

	var runIDs []attribute.SysID
	if p.Filter != nil {
		plan, err := c.planSearch(ctx, defsPool, container, p.Filter, nil, false, nil)
		if err != nil {
			return nil, err
		}
		err = c.retriever.SysIDLabels(ctx, plan.params, func(page retrieval.IdentifierPage) error {
			runIDs = append(runIDs, pageSysIDs(page)...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(runIDs) == 0 {
			return nil, nil
		}
	}

	distinct := collector.NewDistinct(func(d attribute.Definition) attribute.Definition { return d })
	collect := func(md retrieval.MatchedDefinition) error {
		distinct.Collect(md.Definition)
		return nil
	}

	if len(runIDs) == 0 {
		err := c.retriever.AttributeDefinitions(ctx, defsPool, retrieval.DefinitionsParams{
			Projects: c.projects(),
			Selector: p.Attributes,
		}, collect)
		if err != nil {
			return nil, err
		}
	} else {
		for _, batch := range split.SysIDs(runIDs, c.cfg.SysAttrsBatchSize) {
			err := c.retriever.AttributeDefinitions(ctx, defsPool, retrieval.DefinitionsParams{
				Projects: c.projects(),
				RunIDs:   batch,
				Selector: p.Attributes,
			}, collect)
			if err != nil {
				return nil, err
			}
		}
	}
	if err := defsPool.Close(); err != nil {
		return nil, err
	}

	defs := distinct.Values()
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].Type.String() < defs[j].Type.String()
	})
	return defs, nil
}
