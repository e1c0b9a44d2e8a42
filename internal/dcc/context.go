package dcc

import (
	"context"
	"sync/atomic"

	"github.com/openwatch/netmon-server/internal/events"
	"github.com/openwatch/netmon-server/pkg/scriptenv"
)

// ScheduleStore persists the advanced-schedule relation owned by the
// collection core. Implemented by internal/store.
type ScheduleStore interface {
	LoadSchedules(ctx context.Context, itemID uint32) ([]string, error)
	SaveSchedules(ctx context.Context, itemID uint32, schedules []string) error
	DeleteSchedules(ctx context.Context, itemID uint32) error
}

// CacheSource warms the per-item historical cache before the first poll.
// Implementations read from downstream storage; the core only drives the
// reload flow.
type CacheSource interface {
	LoadItemCache(item *Item) error
}

// QueueSizer exposes the depth of an external queue to the stats sampler.
type QueueSizer interface {
	Len() int
}

// Context carries everything the collection components share: queues,
// the object index, sinks, the script environment, persistence and process
// defaults. Tests instantiate a private context per case.
type Context struct {
	Queue      *Queue
	CacheQueue *Queue
	Objects    *ObjectIndex

	Events    events.Sink
	Scripts   scriptenv.Environment
	Schedules ScheduleStore
	Cache     CacheSource

	// Process defaults, read from configuration at start.
	NumCollectors        int
	DefaultInterval      int // seconds
	DefaultRetentionDays int

	// ManagementNodeID is the final SSH proxy fallback.
	ManagementNodeID uint32

	shutdown atomic.Bool
}

// NewContext returns a context with process defaults and no external sinks
// wired: events go to the log, scripts run on a fresh Lua environment.
func NewContext() *Context {
	return &Context{
		Queue:                NewQueue(),
		CacheQueue:           NewQueue(),
		Objects:              NewObjectIndex(),
		Events:               events.LogSink{},
		Scripts:              scriptenv.NewLuaEnvironment(),
		NumCollectors:        10,
		DefaultInterval:      60,
		DefaultRetentionDays: 30,
	}
}

// ShuttingDown reports whether cooperative shutdown has been initiated.
func (c *Context) ShuttingDown() bool {
	return c.shutdown.Load()
}

func (c *Context) initiateShutdown() {
	c.shutdown.Store(true)
}
