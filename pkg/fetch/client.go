// Package fetch is the public surface of the fetcher. It binds type
// inference, the retrieval adapters, the worker pools and the frame builders
// into the query entry points: metadata tables, metric frames, non-numeric
// series frames, listings and file listings.
//
// Every query runs two bounded pools, one for orchestration and one for
// attribute-definition fetches, both released on every exit path. Input
// validation happens before the first wire call.
package fetch

import (
	"context"

	kitlog "github.com/go-kit/log"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/backend"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/inference"
	"github.com/neptune-ai/fetcher-go/pkg/pipeline"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
	"github.com/neptune-ai/fetcher-go/pkg/util/log"
)

// Client executes queries against one project.
type Client struct {
	backend   backend.Client
	retriever *retrieval.Retriever
	inferrer  *inference.Inferrer
	logger    kitlog.Logger
	cfg       Config
	project   attribute.ProjectIdentifier
	shutdown  func()
}

// NewClient dials the backend for one project. An empty project falls back
// to cfg.Project and then to the active context; the api token falls back to
// the active context the same way. A nil logger uses the package-wide one.
func NewClient(cfg Config, project string, logger kitlog.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Logger
	}

	active := ActiveContext()
	if cfg.APIToken == "" {
		cfg.APIToken = active.APIToken
	}
	if project == "" {
		project = cfg.Project
	}
	if project == "" {
		project = active.Project
	}

	ident, err := attribute.ParseProjectIdentifier(project)
	if err != nil {
		return nil, err
	}
	if cfg.APIToken == "" {
		return nil, fetcherr.ErrAPITokenNotProvided
	}

	cfg = cfg.withDefaults()
	httpClient, err := backend.NewHTTPClient(cfg.backendConfig(), project)
	if err != nil {
		return nil, err
	}

	c := newClient(httpClient, cfg, ident, logger)
	c.shutdown = httpClient.Close
	return c, nil
}

// newClient is the test seam: the transport is supplied by the caller.
func newClient(cl backend.Client, cfg Config, project attribute.ProjectIdentifier, logger kitlog.Logger) *Client {
	cfg = cfg.withDefaults()
	retriever := retrieval.New(cl, logger, cfg.batchSizes())
	return &Client{
		backend:   cl,
		retriever: retriever,
		inferrer:  inference.New(retriever, logger),
		logger:    logger,
		cfg:       cfg,
		project:   project,
		shutdown:  func() {},
	}
}

// Project is the project this client is bound to.
func (c *Client) Project() attribute.ProjectIdentifier { return c.project }

// Close releases the transport. The client must not be used afterwards.
func (c *Client) Close() { c.shutdown() }

func (c *Client) newPool(ctx context.Context) *pipeline.Pool {
	return pipeline.NewPool(ctx, c.cfg.MaxWorkers)
}

func (c *Client) projects() []attribute.ProjectIdentifier {
	return []attribute.ProjectIdentifier{c.project}
}
