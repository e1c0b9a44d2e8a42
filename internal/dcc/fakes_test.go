package dcc_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/models"
)

var errCacheUnavailable = errors.New("cache storage unavailable")

type sample struct {
	itemID        uint32
	value         any
	statusAtValue models.ItemStatus
}

type collectionError struct {
	itemID     uint32
	noInstance bool
}

type probeFn func(name string) (string, models.ProbeResult)

// fakeNode is a node-class target with scripted probe behavior. Probe reads
// default to not-supported unless a function is installed.
type fakeNode struct {
	dcc.BaseTarget

	ip          string
	sshLogin    string
	sshPassword string
	sshProxy    uint32
	zoneID      uint32

	mu      sync.Mutex
	trusted map[uint32]struct{}
	cluster dcc.ClusterTarget

	agentFn    probeFn
	snmpFn     func(port uint16, name string, raw models.SNMPRawKind) (string, models.ProbeResult)
	internalFn probeFn
	scriptFn   probeFn
	tableFn    func(name string) (*models.Table, models.ProbeResult)

	processOK bool
	values    chan sample
	errors    chan collectionError

	// concurrent probe tracking per metric name, for the mutual exclusion
	// invariant
	inProbe    map[string]*atomic.Int32
	maxInProbe map[string]*atomic.Int32
}

func newFakeNode(id uint32, name string) *fakeNode {
	return &fakeNode{
		BaseTarget:  dcc.NewBaseTarget(models.ClassNode, id, name),
		ip:          "10.0.0.1",
		sshLogin:    "monitor",
		sshPassword: "secret",
		trusted:     make(map[uint32]struct{}),
		processOK:   true,
		values:      make(chan sample, 64),
		errors:      make(chan collectionError, 64),
		inProbe:     make(map[string]*atomic.Int32),
		maxInProbe:  make(map[string]*atomic.Int32),
	}
}

func (n *fakeNode) trust(id uint32) {
	n.mu.Lock()
	n.trusted[id] = struct{}{}
	n.mu.Unlock()
}

func (n *fakeNode) PrimaryIPAddress() string { return n.ip }
func (n *fakeNode) SSHLogin() string         { return n.sshLogin }
func (n *fakeNode) SSHPassword() string      { return n.sshPassword }
func (n *fakeNode) SSHProxyID() uint32       { return n.sshProxy }
func (n *fakeNode) ZoneID() uint32           { return n.zoneID }

func (n *fakeNode) TrustsObject(id uint32) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.trusted[id]
	return ok
}

func (n *fakeNode) EffectiveSNMPProxy() uint32 { return 0 }

func (n *fakeNode) Cluster() dcc.ClusterTarget {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cluster
}

func (n *fakeNode) ProcessNewValue(item *dcc.Item, timestamp time.Time, value any) bool {
	if !n.processOK {
		return false
	}
	n.values <- sample{itemID: item.ID(), value: value, statusAtValue: item.Status()}
	return true
}

func (n *fakeNode) ProcessNewError(item *dcc.Item, noInstance bool, timestamp time.Time) {
	n.errors <- collectionError{itemID: item.ID(), noInstance: noInstance}
}

func (n *fakeNode) trackProbe(name string) func() {
	n.mu.Lock()
	in, ok := n.inProbe[name]
	if !ok {
		in = &atomic.Int32{}
		n.inProbe[name] = in
		n.maxInProbe[name] = &atomic.Int32{}
	}
	max := n.maxInProbe[name]
	n.mu.Unlock()

	current := in.Add(1)
	for {
		prev := max.Load()
		if current <= prev || max.CompareAndSwap(prev, current) {
			break
		}
	}
	return func() { in.Add(-1) }
}

func (n *fakeNode) maxConcurrentProbes(name string) int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := n.maxInProbe[name]; ok {
		return m.Load()
	}
	return 0
}

func (n *fakeNode) ReadAgentMetric(name string) (string, models.ProbeResult) {
	done := n.trackProbe(name)
	defer done()
	if n.agentFn == nil {
		return "", models.ProbeNotSupported
	}
	return n.agentFn(name)
}

func (n *fakeNode) ReadAgentTable(name string) (*models.Table, models.ProbeResult) {
	if n.tableFn == nil {
		return nil, models.ProbeNotSupported
	}
	return n.tableFn(name)
}

func (n *fakeNode) ReadSNMPMetric(port uint16, name string, raw models.SNMPRawKind) (string, models.ProbeResult) {
	done := n.trackProbe(name)
	defer done()
	if n.snmpFn == nil {
		return "", models.ProbeNotSupported
	}
	return n.snmpFn(port, name, raw)
}

func (n *fakeNode) ReadSNMPTable(port uint16, name string, columns []string) (*models.Table, models.ProbeResult) {
	return nil, models.ProbeNotSupported
}

func (n *fakeNode) ReadCheckpointMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

func (n *fakeNode) ReadSMCLPMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

func (n *fakeNode) ReadInternalMetric(name string) (string, models.ProbeResult) {
	if n.internalFn == nil {
		return "", models.ProbeNotSupported
	}
	return n.internalFn(name)
}

func (n *fakeNode) ReadScriptMetric(name string) (string, models.ProbeResult) {
	if n.scriptFn == nil {
		return "", models.ProbeNotSupported
	}
	return n.scriptFn(name)
}

var _ dcc.NodeTarget = (*fakeNode)(nil)

// fakeCluster is a cluster-class target with a scripted aggregation entry
// point.
type fakeCluster struct {
	dcc.BaseTarget

	aggregateFn func(item *dcc.Item) (any, models.ProbeResult)
	aggregated  chan uint32
	values      chan sample

	mu        sync.Mutex
	resources map[uint32]uint32 // resource id -> owning node id
}

func newFakeCluster(id uint32, name string) *fakeCluster {
	return &fakeCluster{
		BaseTarget: dcc.NewBaseTarget(models.ClassCluster, id, name),
		aggregated: make(chan uint32, 64),
		values:     make(chan sample, 64),
		resources:  make(map[uint32]uint32),
	}
}

func (c *fakeCluster) CollectAggregatedValue(item *dcc.Item) (any, models.ProbeResult) {
	c.aggregated <- item.ID()
	if c.aggregateFn == nil {
		return "0", models.ProbeSuccess
	}
	return c.aggregateFn(item)
}

func (c *fakeCluster) IsResourceOnNode(resourceID, nodeID uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resources[resourceID] == nodeID
}

func (c *fakeCluster) setResourceOwner(resourceID, nodeID uint32) {
	c.mu.Lock()
	c.resources[resourceID] = nodeID
	c.mu.Unlock()
}

func (c *fakeCluster) ProcessNewValue(item *dcc.Item, timestamp time.Time, value any) bool {
	c.values <- sample{itemID: item.ID(), value: value, statusAtValue: item.Status()}
	return true
}

var _ dcc.ClusterTarget = (*fakeCluster)(nil)

// fakeTemplate is a template-class owner: it hosts item definitions but is
// not an event source and never processes values.
type fakeTemplate struct {
	dcc.BaseTarget
}

func newFakeTemplate(id uint32, name string) *fakeTemplate {
	return &fakeTemplate{BaseTarget: dcc.NewBaseTarget(models.ClassTemplate, id, name)}
}

func (t *fakeTemplate) ProcessNewValue(item *dcc.Item, timestamp time.Time, value any) bool {
	return false
}

var _ dcc.Target = (*fakeTemplate)(nil)

// fakeSession counts force-poll notifications and releases.
type fakeSession struct {
	notified atomic.Int32
	released atomic.Int32
}

func (s *fakeSession) Notify(code string, objectID uint32) { s.notified.Add(1) }
func (s *fakeSession) Release()                            { s.released.Add(1) }

// fakeCacheSource fails a configurable number of loads before succeeding.
type fakeCacheSource struct {
	failures atomic.Int32
	loads    atomic.Int32
}

func (c *fakeCacheSource) LoadItemCache(item *dcc.Item) error {
	c.loads.Add(1)
	if c.failures.Add(-1) >= 0 {
		return errCacheUnavailable
	}
	return nil
}
