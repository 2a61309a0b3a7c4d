package fetch

import (
	"context"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
	"github.com/neptune-ai/fetcher-go/pkg/split"
)

// Downloader stores one remote file under destination and returns the local
// path. Returning "" with a nil error means the file does not exist
// remotely; the fetcher records a missing cell instead of failing.
type Downloader interface {
	Download(ctx context.Context, project attribute.ProjectIdentifier, file attribute.File, destination string) (string, error)
}

// DownloadParams select which file attributes to download.
type DownloadParams struct {
	// Filter restricts the run domain; nil matches everything.
	Filter nql.Filter

	// Attributes restricts the file attributes; nil selects every file
	// attribute.
	Attributes nql.AttributeSelector

	// Destination is the local directory handed to the downloader.
	Destination string
}

// downloadEvent mirrors tableEvent for the file listing pipeline.
type downloadEvent struct {
	ids  *retrieval.IdentifierPage
	work *valueBatch
}

type downloadRecord struct {
	ids   *retrieval.IdentifierPage
	sysID attribute.SysID
	name  string
	path  string
	found bool
}

// DownloadFiles downloads the file attributes of experiments matching the
// filter, concurrently on the orchestration pool, and returns a frame of
// local paths: one row per experiment, one column per attribute, nil cells
// for files that do not exist remotely.
func (c *Client) DownloadFiles(ctx context.Context, p DownloadParams, dl Downloader) (*frame.FilesFrame, error) {
	return c.downloadFiles(ctx, attribute.ContainerExperiment, p, dl)
}

// DownloadRunFiles is DownloadFiles over stand-alone runs.
func (c *Client) DownloadRunFiles(ctx context.Context, p DownloadParams, dl Downloader) (*frame.FilesFrame, error) {
	return c.downloadFiles(ctx, attribute.ContainerRun, p, dl)
}

func (c *Client) downloadFiles(ctx context.Context, container attribute.ContainerType, p DownloadParams, dl Downloader) (*frame.FilesFrame, error) {
	if dl == nil {
		return nil, fetcherr.User("downloader not provided")
	}

	builder := frame.NewFilesFrameBuilder()
	selector, noAttributes := restrictSelector(p.Attributes, attribute.TypeFile)
	if noAttributes {
		return builder.Build(), nil
	}

	orch := c.newPool(ctx)
	defer orch.Close()
	defsPool := c.newPool(ctx)
	defer defsPool.Close()

	plan, err := c.planSearch(ctx, defsPool, container, p.Filter, nil, false, nil)
	if err != nil {
		return nil, err
	}
	if plan.runDomainEmpty {
		return builder.Build(), nil
	}

	pages := pipeline.Source(orch, func(ctx context.Context, emit func(retrieval.IdentifierPage) error) error {
		return c.retriever.SysIDLabels(ctx, plan.params, emit)
	})

	events := pipeline.Transform(orch, c.cfg.MaxWorkers, pages, func(ctx context.Context, page retrieval.IdentifierPage, emit func(downloadEvent) error) error {
		if err := emit(downloadEvent{ids: &page}); err != nil {
			return err
		}
		ids := pageSysIDs(page)
		defs, err := c.pageDefinitions(ctx, defsPool, ids, selector)
		if err != nil {
			return err
		}
		defBatches := split.SeriesAttributes(c.logger, defs,
			func(md retrieval.MatchedDefinition) string { return md.Definition.Name },
			c.cfg.ValuesBatchSize, c.cfg.QuerySizeLimit)
		for _, runs := range split.SysIDs(ids, c.cfg.SysAttrsBatchSize) {
			for _, batch := range defBatches {
				if err := emit(downloadEvent{work: &valueBatch{runs: runs, defs: batch}}); err != nil {
					return err
				}
			}
		}
		return nil
	})

	// Value fetch and download share the worker: each file cell is stored
	// locally as soon as its descriptor arrives.
	records := pipeline.Generate(orch, events, func(ctx context.Context, ev downloadEvent, emit func(downloadRecord) error) error {
		if ev.ids != nil {
			return emit(downloadRecord{ids: ev.ids})
		}
		defs := make([]attribute.Definition, 0, len(ev.work.defs))
		for _, md := range ev.work.defs {
			defs = append(defs, md.Definition)
		}
		return c.retriever.AttributeValues(ctx, c.project, ev.work.runs, defs, func(v attribute.RunValue) error {
			if v.Definition.Type != attribute.TypeFile {
				return nil
			}
			local, err := dl.Download(ctx, c.project, v.Value.File, p.Destination)
			if err != nil {
				return err
			}
			return emit(downloadRecord{
				sysID: v.Run.SysID,
				name:  v.Definition.Name,
				path:  local,
				found: local != "",
			})
		})
	})

	labels := make(map[attribute.SysID]string)
	var downloads []downloadRecord
	err = pipeline.Gather(records, func(rec downloadRecord) error {
		if rec.ids != nil {
			for _, item := range rec.ids.Items {
				labels[item.SysID] = item.Label
			}
			return nil
		}
		downloads = append(downloads, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := orch.Close(); err != nil {
		return nil, err
	}
	if err := defsPool.Close(); err != nil {
		return nil, err
	}

	for _, d := range downloads {
		if d.found {
			builder.Add(labels[d.sysID], d.name, d.path)
		} else {
			builder.AddMissing(labels[d.sysID], d.name)
		}
	}
	return builder.Build(), nil
}
