// Package retrieval implements the paginated adapters between the backend
// client and the fetch pipelines. Every adapter is a pure paging loop over
// the transport: it takes an explicit context, streams pages through an emit
// callback, and leaves batching and concurrency decisions to the caller.
package retrieval

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/backend"
	"github.com/neptune-ai/fetcher-go/pkg/dataquality"
)

const defaultBatchSize = 10000

// BatchSizes are the page and batch limits the adapters request from the
// backend. Zero fields fall back to the backend default of 10000.
type BatchSizes struct {
	SysAttrs    int
	Definitions int
	Values      int
	Series      int
}

func (b BatchSizes) normalized() BatchSizes {
	if b.SysAttrs < 1 {
		b.SysAttrs = defaultBatchSize
	}
	if b.Definitions < 1 {
		b.Definitions = defaultBatchSize
	}
	if b.Values < 1 {
		b.Values = defaultBatchSize
	}
	if b.Series < 1 {
		b.Series = defaultBatchSize
	}
	return b
}

// Retriever bundles the transport with the paging configuration.
type Retriever struct {
	client backend.Client
	logger log.Logger
	sizes  BatchSizes
}

func New(client backend.Client, logger log.Logger, sizes BatchSizes) *Retriever {
	return &Retriever{
		client: client,
		logger: logger,
		sizes:  sizes.normalized(),
	}
}

// unknownTypeWarnings dedupes unknown-type log lines process-wide: a backend
// that grows a new attribute type would otherwise flood the log once per
// value.
var unknownTypeWarnings sync.Map

func (r *Retriever) warnUnknownType(tag string) {
	dataquality.WarnUnknownAttributeType(tag)
	if _, seen := unknownTypeWarnings.LoadOrStore(tag, struct{}{}); !seen {
		level.Warn(r.logger).Log("msg", "skipping attribute values of a type this client does not know", "type", tag)
	}
}

func sysIDStrings(ids []attribute.SysID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func projectStrings(projects []attribute.ProjectIdentifier) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.String())
	}
	return out
}
