// Package dcc implements the server-side data collection core: it decides
// what to collect from each managed target, schedules collection against
// heterogeneous sources, executes it on a bounded worker pool and routes
// results to the owning targets.
//
// # Architecture Overview
//
//	┌────────────┐  tick   ┌──────────────────┐  due items  ┌───────────────┐
//	│ ItemPoller ├────────►│ Target item walk ├────────────►│  work Queue   │
//	└────────────┘         └──────────────────┘             └──────┬────────┘
//	                                                               │ take
//	                                                        ┌──────▼────────┐
//	                                                        │ CollectorPool │
//	                                                        │  (N workers)  │
//	                                                        └──────┬────────┘
//	             resolve effective target → probe dispatch         │
//	             → transform → Target.ProcessNewValue /            │
//	               Item.ProcessNewError → status machine           ▼
//	                                                        owning Target
//
// A separate cache loader warms per-item historical caches before first
// poll, and a stats sampler publishes one-minute moving averages of queue
// depths. All components share a Context and terminate cooperatively via
// Core.Shutdown.
//
// The object model (nodes, clusters, chassis, mobile devices) and the
// transport drivers live outside this package; they appear here only as the
// Target and probe capabilities.
package dcc
