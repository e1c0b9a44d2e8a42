package dcc

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/models"
)

// Target is a monitored object capable of hosting collection items. The
// object model lives outside the core; this is the capability set the core
// needs from it. Targets own their items; items carry a non-owning back
// reference to the target.
type Target interface {
	ObjectClass() models.ObjectClass
	ID() uint32
	Name() string

	IncRefCount()
	DecRefCount()

	// EffectiveSourceNode returns the id of the node collection should be
	// routed through for the given item, or 0 for direct collection.
	EffectiveSourceNode(item *Item) uint32

	// AgentCacheMode is the target-level default for items whose cache mode
	// flag is CacheModeDefault.
	AgentCacheMode() models.CacheMode

	// ProcessNewValue hands a collected sample to the target. A false return
	// demotes the sample to a collection error.
	ProcessNewValue(item *Item, timestamp time.Time, value any) bool

	// QueueItemsForPolling walks the target's items and enqueues those due
	// at now, marking them busy.
	QueueItemsForPolling(now time.Time, q *Queue)

	FindItem(id uint32) *Item
	SupportedParameters() []models.ParameterDefinition

	ReadInternalMetric(name string) (string, models.ProbeResult)
	ReadScriptMetric(name string) (string, models.ProbeResult)
}

// NodeTarget is a node-class target reachable over collection transports.
type NodeTarget interface {
	Target

	PrimaryIPAddress() string
	SSHLogin() string
	SSHPassword() string
	SSHProxyID() uint32
	ZoneID() uint32

	// TrustsObject reports whether this node accepts collection requests
	// redirected from the object with the given id.
	TrustsObject(id uint32) bool

	// EffectiveSNMPProxy returns the id of the SNMP proxy node, or 0 when
	// SNMP requests go out directly.
	EffectiveSNMPProxy() uint32

	// Cluster returns the cluster this node is a member of, or nil.
	Cluster() ClusterTarget

	ReadAgentMetric(name string) (string, models.ProbeResult)
	ReadAgentTable(name string) (*models.Table, models.ProbeResult)
	ReadSNMPMetric(port uint16, name string, raw models.SNMPRawKind) (string, models.ProbeResult)
	ReadSNMPTable(port uint16, name string, columns []string) (*models.Table, models.ProbeResult)
	ReadCheckpointMetric(name string) (string, models.ProbeResult)
	ReadSMCLPMetric(name string) (string, models.ProbeResult)
}

// ClusterTarget aggregates values across member nodes.
type ClusterTarget interface {
	Target

	// CollectAggregatedValue runs cluster-wide aggregation for the item.
	CollectAggregatedValue(item *Item) (any, models.ProbeResult)

	// IsResourceOnNode reports whether the cluster resource with the given
	// id currently runs on the node with the given id.
	IsResourceOnNode(resourceID, nodeID uint32) bool
}

// ChassisTarget is a chassis whose collection is served by its controller.
type ChassisTarget interface {
	Target
	ControllerID() uint32
}

// ItemRegistry holds a target's collection items and implements the
// canonical enqueue walk. Concrete targets embed it via BaseTarget.
type ItemRegistry struct {
	mu    sync.RWMutex
	items []*Item
}

func (r *ItemRegistry) Add(item *Item) {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()
}

func (r *ItemRegistry) Remove(id uint32) *Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.ID() == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return item
		}
	}
	return nil
}

func (r *ItemRegistry) Find(id uint32) *Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if item.ID() == id {
			return item
		}
	}
	return nil
}

func (r *ItemRegistry) ForEach(fn func(item *Item)) {
	r.mu.RLock()
	items := make([]*Item, len(r.items))
	copy(items, r.items)
	r.mu.RUnlock()
	for _, item := range items {
		fn(item)
	}
}

// QueueDueItems enqueues every item due at now. The item is marked busy and
// a reference on its owner is taken before it enters the queue; the worker
// releases both.
func (r *ItemRegistry) QueueDueItems(now time.Time, q *Queue) {
	r.ForEach(func(item *Item) {
		if !item.IsDue(now) || !item.tryMarkBusy() {
			return
		}
		if owner := item.Owner(); owner != nil {
			owner.IncRefCount()
		}
		q.Put(item)
	})
}

// BaseTarget supplies the bookkeeping half of the Target interface: class,
// identity, refcounting and the item registry. Concrete targets embed it and
// add value processing and transport reads.
type BaseTarget struct {
	ItemRegistry

	class    models.ObjectClass
	id       uint32
	name     string
	refCount atomic.Int32

	cacheMode models.CacheMode
	params    []models.ParameterDefinition
}

func NewBaseTarget(class models.ObjectClass, id uint32, name string) BaseTarget {
	return BaseTarget{class: class, id: id, name: name, cacheMode: models.CacheModeOff}
}

func (t *BaseTarget) ObjectClass() models.ObjectClass { return t.class }
func (t *BaseTarget) ID() uint32                      { return t.id }
func (t *BaseTarget) Name() string                    { return t.name }

func (t *BaseTarget) IncRefCount() { t.refCount.Add(1) }
func (t *BaseTarget) DecRefCount() { t.refCount.Add(-1) }

// RefCount is exposed for lifetime assertions in tests and self-monitoring.
func (t *BaseTarget) RefCount() int32 { return t.refCount.Load() }

func (t *BaseTarget) AgentCacheMode() models.CacheMode     { return t.cacheMode }
func (t *BaseTarget) SetAgentCacheMode(m models.CacheMode) { t.cacheMode = m }
func (t *BaseTarget) EffectiveSourceNode(item *Item) uint32 {
	return item.SourceNodeID()
}
func (t *BaseTarget) QueueItemsForPolling(now time.Time, q *Queue) {
	t.QueueDueItems(now, q)
}
func (t *BaseTarget) FindItem(id uint32) *Item { return t.Find(id) }

func (t *BaseTarget) SupportedParameters() []models.ParameterDefinition { return t.params }
func (t *BaseTarget) SetSupportedParameters(p []models.ParameterDefinition) {
	t.params = p
}

func (t *BaseTarget) ReadInternalMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

func (t *BaseTarget) ReadScriptMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

// ObjectIndex resolves targets by id and drives the poll scheduler's walk.
// Enumeration order follows the poller contract: nodes, clusters, mobile
// devices, chassis.
type ObjectIndex struct {
	mu            sync.RWMutex
	nodes         map[uint32]NodeTarget
	clusters      map[uint32]ClusterTarget
	mobileDevices map[uint32]Target
	chassis       map[uint32]ChassisTarget
	zoneProxies   map[uint32]uint32
}

func NewObjectIndex() *ObjectIndex {
	return &ObjectIndex{
		nodes:         make(map[uint32]NodeTarget),
		clusters:      make(map[uint32]ClusterTarget),
		mobileDevices: make(map[uint32]Target),
		chassis:       make(map[uint32]ChassisTarget),
		zoneProxies:   make(map[uint32]uint32),
	}
}

func (x *ObjectIndex) RegisterNode(n NodeTarget) {
	x.mu.Lock()
	x.nodes[n.ID()] = n
	x.mu.Unlock()
}

func (x *ObjectIndex) RegisterCluster(c ClusterTarget) {
	x.mu.Lock()
	x.clusters[c.ID()] = c
	x.mu.Unlock()
}

func (x *ObjectIndex) RegisterMobileDevice(t Target) {
	x.mu.Lock()
	x.mobileDevices[t.ID()] = t
	x.mu.Unlock()
}

func (x *ObjectIndex) RegisterChassis(c ChassisTarget) {
	x.mu.Lock()
	x.chassis[c.ID()] = c
	x.mu.Unlock()
}

// SetZoneProxy records the proxy node serving a zone.
func (x *ObjectIndex) SetZoneProxy(zoneID, proxyNodeID uint32) {
	x.mu.Lock()
	x.zoneProxies[zoneID] = proxyNodeID
	x.mu.Unlock()
}

// ZoneProxy returns the proxy node for a zone, or 0 when the zone has none.
func (x *ObjectIndex) ZoneProxy(zoneID uint32) uint32 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.zoneProxies[zoneID]
}

func (x *ObjectIndex) FindNode(id uint32) NodeTarget {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if n, ok := x.nodes[id]; ok {
		return n
	}
	return nil
}

// ForEachCollectionTarget visits every registered target, class by class.
func (x *ObjectIndex) ForEachCollectionTarget(fn func(t Target)) {
	x.mu.RLock()
	targets := make([]Target, 0, len(x.nodes)+len(x.clusters)+len(x.mobileDevices)+len(x.chassis))
	for _, n := range x.nodes {
		targets = append(targets, n)
	}
	for _, c := range x.clusters {
		targets = append(targets, c)
	}
	for _, m := range x.mobileDevices {
		targets = append(targets, m)
	}
	for _, c := range x.chassis {
		targets = append(targets, c)
	}
	x.mu.RUnlock()

	for _, t := range targets {
		fn(t)
	}
}

// FindItem resolves a collection item by id across all targets.
func (x *ObjectIndex) FindItem(id uint32) *Item {
	var found *Item
	x.ForEachCollectionTarget(func(t Target) {
		if found != nil {
			return
		}
		if item := t.FindItem(id); item != nil {
			found = item
		}
	})
	return found
}

// MergedParameterCatalog deduplicates the supported-parameter lists of all
// registered targets by name.
func (x *ObjectIndex) MergedParameterCatalog() []models.ParameterDefinition {
	seen := make(map[string]struct{})
	var merged []models.ParameterDefinition
	x.ForEachCollectionTarget(func(t Target) {
		for _, p := range t.SupportedParameters() {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			merged = append(merged, p)
		}
	})
	zap.S().Named("object_index").Debugw("merged parameter catalog", "count", len(merged))
	return merged
}
