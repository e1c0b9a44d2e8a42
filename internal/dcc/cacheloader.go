package dcc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// CacheLoader is the dedicated worker that warms per-item historical caches
// before their first poll. Until an item reports its cache loaded, the
// scheduler will not enqueue it.
type CacheLoader struct {
	ctx  *Context
	done chan struct{}
}

func newCacheLoader(cctx *Context) *CacheLoader {
	return &CacheLoader{ctx: cctx, done: make(chan struct{})}
}

func (l *CacheLoader) start() {
	go l.run()
}

// EnqueueCacheLoad schedules an item for cache warm-up, taking a reference
// on its owner for the duration.
func EnqueueCacheLoad(cctx *Context, item *Item) {
	if owner := item.Owner(); owner != nil {
		owner.IncRefCount()
	}
	cctx.CacheQueue.Put(item)
}

func (l *CacheLoader) run() {
	defer close(l.done)
	log := zap.S().Named("cache_loader")
	log.Debug("cache loader thread started")

	for {
		w := l.ctx.CacheQueue.Take()
		if w.Kind == WorkShutdown {
			break
		}
		item := w.Item

		log.Debugw("loading cache", "dciId", item.ID(), "dciName", item.Name(),
			"ownerId", item.OwnerID())

		// Downstream storage may be briefly unavailable during startup;
		// retry with exponential backoff before giving up on this pass.
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
			return struct{}{}, item.ReloadCache()
		}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(5*time.Second))
		if err != nil {
			log.Errorw("cache load failed", "dciId", item.ID(), "error", err)
		}

		if owner := item.Owner(); owner != nil {
			owner.DecRefCount()
		}
	}

	log.Debug("cache loader thread stopped")
}

func (l *CacheLoader) shutdown() {
	l.ctx.CacheQueue.PutShutdown(1)
	<-l.done
}
