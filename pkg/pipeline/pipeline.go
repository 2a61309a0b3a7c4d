// Package pipeline is the concurrency backbone of every query: a scoped,
// bounded worker pool plus the Source/Generate/Fork/Gather combinators that
// fan pages out to workers and merge their results back into a single
// bounded channel.
//
// A query acquires its pools up front and releases them on every exit path
// via Close. The first failure cancels the whole scope; outputs of cancelled
// siblings are discarded. Tasks must never schedule onto their own pool, so
// stages that spawn sub-stages use a second pool. A query therefore runs one
// orchestration pool and one attribute-definitions pool.
package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var (
	metricActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "neptune",
		Subsystem: "fetcher",
		Name:      "pipeline_active_workers",
		Help:      "Pipeline tasks currently holding a worker slot.",
	})
	metricQueuedTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "neptune",
		Subsystem: "fetcher",
		Name:      "pipeline_queued_tasks",
		Help:      "Pipeline tasks waiting for a worker slot.",
	})
)

var errScopeClosed = errors.New("pipeline scope closed")

// Pool is a bounded worker group tied to a cancellable scope.
type Pool struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	size   int

	// dispatchers tracks the stage goroutines that feed the pool, so Close
	// never races a late Go against group.Wait.
	dispatchers sync.WaitGroup

	failOnce sync.Once
	srcErr   error

	closeOnce sync.Once
	closeErr  error
}

// NewPool builds a pool of at most size concurrent workers scoped to ctx.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	scopeCtx, cancel := context.WithCancelCause(ctx)
	group, groupCtx := errgroup.WithContext(scopeCtx)
	group.SetLimit(size)
	return &Pool{
		group:  group,
		ctx:    groupCtx,
		cancel: cancel,
		size:   size,
	}
}

// Context is the scope shared by all tasks; it dies with the first failure.
func (p *Pool) Context() context.Context { return p.ctx }

// Size is the worker bound, which is also the capacity of merge channels.
func (p *Pool) Size() int { return p.size }

// Go schedules one task, blocking while every worker slot is busy.
func (p *Pool) Go(task func(ctx context.Context) error) {
	metricQueuedTasks.Inc()
	p.group.Go(func() error {
		metricQueuedTasks.Dec()
		metricActiveWorkers.Inc()
		defer metricActiveWorkers.Dec()
		return task(p.ctx)
	})
}

// fail records a stage failure and cancels the scope. The first failure wins.
func (p *Pool) fail(err error) {
	if errors.Is(err, errScopeClosed) {
		return
	}
	p.failOnce.Do(func() {
		p.srcErr = err
		p.cancel(err)
	})
}

// Close cancels the scope, waits for all stages and workers to unwind, and
// returns the first failure, if any. Idempotent: later calls return the same
// result.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.cancel(errScopeClosed)
		p.dispatchers.Wait()
		err := p.group.Wait()
		if p.srcErr != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errScopeClosed)) {
			err = p.srcErr
		}
		if errors.Is(err, errScopeClosed) {
			err = nil
		}
		p.closeErr = err
	})
	return p.closeErr
}

// Source runs producer on its own goroutine, outside the worker bound.
// Sources are serial pagination drivers: they spend their life blocked on a
// single wire call or on emit, so they must not hold a worker slot that
// their own downstream needs. A source failure cancels the scope like any
// task failure.
func Source[O any](p *Pool, producer func(ctx context.Context, emit func(O) error) error) <-chan O {
	out := make(chan O, p.size)
	emit := emitter(p.ctx, out)

	p.dispatchers.Add(1)
	go func() {
		defer p.dispatchers.Done()
		defer close(out)
		if err := producer(p.ctx, emit); err != nil {
			p.fail(err)
		}
	}()
	return out
}

// Generate launches downstream for every item arriving on items, running up
// to the pool's bound concurrently. Emissions from all downstream calls are
// merged into the returned channel in completion order. The channel's
// capacity equals the worker count, so producers block once the consumer
// falls that far behind. The channel closes when every downstream has
// returned.
func Generate[I, O any](p *Pool, items <-chan I, downstream func(ctx context.Context, item I, emit func(O) error) error) <-chan O {
	out := make(chan O, p.size)
	emit := emitter(p.ctx, out)

	p.dispatchers.Add(1)
	go func() {
		defer p.dispatchers.Done()
		var tasks sync.WaitGroup
	dispatch:
		for {
			select {
			case <-p.ctx.Done():
				break dispatch
			case item, ok := <-items:
				if !ok {
					break dispatch
				}
				tasks.Add(1)
				p.Go(func(ctx context.Context) error {
					defer tasks.Done()
					return downstream(ctx, item, emit)
				})
			}
		}
		tasks.Wait()
		close(out)
	}()
	return out
}

// Fork runs the given producers as pool tasks and merges their emissions
// into one channel, closed after the last producer returns.
func Fork[O any](p *Pool, producers ...func(ctx context.Context, emit func(O) error) error) <-chan O {
	out := make(chan O, p.size)
	emit := emitter(p.ctx, out)

	p.dispatchers.Add(1)
	go func() {
		defer p.dispatchers.Done()
		var tasks sync.WaitGroup
		for _, producer := range producers {
			tasks.Add(1)
			p.Go(func(ctx context.Context) error {
				defer tasks.Done()
				return producer(ctx, emit)
			})
		}
		tasks.Wait()
		close(out)
	}()
	return out
}

// Transform runs fn for each item on free goroutines rather than worker
// slots: reshaping stages (a page into batches) must not hold a slot their
// own downstream needs, and their wire calls run on another pool anyway.
// workers bounds how many items are reshaped at once.
func Transform[I, O any](p *Pool, workers int, items <-chan I, fn func(ctx context.Context, item I, emit func(O) error) error) <-chan O {
	if workers < 1 {
		workers = 1
	}
	out := make(chan O, p.size)
	emit := emitter(p.ctx, out)

	p.dispatchers.Add(1)
	go func() {
		defer p.dispatchers.Done()
		defer close(out)
		var tasks sync.WaitGroup
		for w := 0; w < workers; w++ {
			tasks.Add(1)
			go func() {
				defer tasks.Done()
				for {
					select {
					case <-p.ctx.Done():
						return
					case item, ok := <-items:
						if !ok {
							return
						}
						if err := fn(p.ctx, item, emit); err != nil {
							p.fail(err)
							return
						}
					}
				}
			}()
		}
		tasks.Wait()
	}()
	return out
}

// ForkJoin runs producers as pool tasks and consumes their merged emissions
// on the caller's goroutine, returning the first producer or consume error.
// Unlike Fork it joins in place, so a task on one pool can fan work out to a
// sibling pool and wait for it.
func ForkJoin[O any](p *Pool, consume func(O) error, producers ...func(ctx context.Context, emit func(O) error) error) error {
	out := make(chan O, p.size)
	emit := emitter(p.ctx, out)
	errs := make(chan error, len(producers))

	p.dispatchers.Add(1)
	go func() {
		defer p.dispatchers.Done()
		var tasks sync.WaitGroup
		for _, producer := range producers {
			tasks.Add(1)
			p.Go(func(ctx context.Context) error {
				defer tasks.Done()
				err := producer(ctx, emit)
				errs <- err
				return err
			})
		}
		tasks.Wait()
		close(out)
	}()

	for record := range out {
		if err := consume(record); err != nil {
			return err
		}
	}
	for range producers {
		if err := <-errs; err != nil {
			return err
		}
	}
	return nil
}

// Gather drains the merged stream on the caller's goroutine, invoking
// consume per record. It returns early if consume fails; the caller then
// closes the pool, which discards whatever the workers still produce.
func Gather[O any](stream <-chan O, consume func(O) error) error {
	for record := range stream {
		if err := consume(record); err != nil {
			return err
		}
	}
	return nil
}

func emitter[O any](ctx context.Context, out chan<- O) func(O) error {
	return func(o O) error {
		select {
		case out <- o:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}
