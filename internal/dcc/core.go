package dcc

import (
	"go.uber.org/zap"
)

// Core bundles the running collection subsystem: the poll scheduler, the
// collector pool, the cache loader and the stats sampler, all sharing one
// collection context.
type Core struct {
	ctx        *Context
	poller     *ItemPoller
	collectors *CollectorPool
	cache      *CacheLoader
	stats      *StatsSampler

	numWorkers int
}

// Start launches the collection subsystem on the given context.
func Start(cctx *Context) *Core {
	workers := cctx.NumCollectors
	if workers <= 0 {
		workers = 10
	}

	c := &Core{
		ctx:        cctx,
		poller:     newItemPoller(cctx),
		collectors: newCollectorPool(cctx),
		cache:      newCacheLoader(cctx),
		stats:      newStatsSampler(cctx),
		numWorkers: workers,
	}

	c.collectors.start(workers)
	c.poller.start()
	c.stats.start()
	c.cache.start()

	zap.S().Named("data_collection").Infow("data collection subsystem started", "collectors", workers)
	return c
}

// Context returns the collection context the core runs on.
func (c *Core) Context() *Context { return c.ctx }

// Stats returns the stats sampler for telemetry registration and export.
func (c *Core) Stats() *StatsSampler { return c.stats }

// AvgQueuingTime re-exports the poller's one-minute enqueue-duration
// average.
func (c *Core) AvgQueuingTime() float64 {
	return c.poller.AvgQueuingTime().Seconds()
}

// Shutdown terminates the subsystem cooperatively: the scheduler stops
// before its next tick, workers drain shutdown sentinels after completing
// in-flight polls, then the cache loader and the stats sampler exit.
func (c *Core) Shutdown() {
	log := zap.S().Named("data_collection")
	log.Info("data collection subsystem shutdown initiated")

	c.ctx.initiateShutdown()

	c.poller.shutdown()
	c.ctx.Queue.PutShutdown(c.numWorkers)
	c.collectors.join()
	c.cache.shutdown()
	c.stats.shutdown()

	log.Info("data collection subsystem stopped")
}
