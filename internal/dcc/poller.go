package dcc

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const pollerInterval = time.Second

// ItemPoller is the fixed-tick scanner. Every second it walks all
// registered targets and asks each to enqueue its due items. It keeps a
// one-minute ring of per-tick wall-clock durations for the "avg DCI queuing
// time" telemetry.
type ItemPoller struct {
	ctx  *Context
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	history [60]time.Duration
	pos     int
}

func newItemPoller(cctx *Context) *ItemPoller {
	return &ItemPoller{
		ctx:  cctx,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (p *ItemPoller) start() {
	go p.run()
}

func (p *ItemPoller) run() {
	defer close(p.done)
	log := zap.S().Named("item_poller")

	tick := time.NewTicker(pollerInterval)
	defer tick.Stop()

	for {
		select {
		case <-p.stop:
			log.Debug("item poller thread terminated")
			return
		case <-tick.C:
		}
		if p.ctx.ShuttingDown() {
			log.Debug("item poller thread terminated")
			return
		}

		log.Debug("wakeup")
		started := time.Now()
		now := started
		p.ctx.Objects.ForEachCollectionTarget(func(t Target) {
			if p.ctx.ShuttingDown() {
				return
			}
			log.Debugw("queueing items for polling", "targetId", t.ID(), "targetName", t.Name())
			t.QueueItemsForPolling(now, p.ctx.Queue)
		})

		p.recordTiming(time.Since(started))
	}
}

func (p *ItemPoller) recordTiming(d time.Duration) {
	p.mu.Lock()
	p.history[p.pos] = d
	p.pos = (p.pos + 1) % len(p.history)
	p.mu.Unlock()
}

// AvgQueuingTime is the one-minute moving average of per-tick enqueue
// durations.
func (p *ItemPoller) AvgQueuingTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sum time.Duration
	for _, d := range p.history {
		sum += d
	}
	return sum / time.Duration(len(p.history))
}

func (p *ItemPoller) shutdown() {
	close(p.stop)
	<-p.done
}
