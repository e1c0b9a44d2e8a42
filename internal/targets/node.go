// Package targets contains reference Target implementations. The real
// object model lives in the management server; these cover the server's own
// node (internal metrics, script metrics, SNMP against localhost) and are
// what the test and the binary register when no full model is attached.
package targets

import (
	"time"

	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/models"
	"github.com/openwatch/netmon-server/internal/probes"
)

// ValueSink receives collected samples for downstream storage. The core
// never writes values itself; it only enqueues them here.
type ValueSink interface {
	Write(itemID uint32, timestamp time.Time, value any) error
}

// LogValueSink logs samples instead of storing them. Wired when no
// downstream writer is attached.
type LogValueSink struct{}

func (LogValueSink) Write(itemID uint32, timestamp time.Time, value any) error {
	zap.S().Named("value_sink").Infow("collected value", "dciId", itemID, "timestamp", timestamp.Unix(), "value", value)
	return nil
}

// Node is a node-class target backed by the reference probes.
type Node struct {
	dcc.BaseTarget

	ip          string
	sshLogin    string
	sshPassword string
	sshProxy    uint32
	zoneID      uint32
	trusted     map[uint32]struct{}

	snmp     *probes.SNMPReader
	internal *probes.InternalRegistry
	script   *probes.ScriptProbe
	sink     ValueSink
}

type NodeConfig struct {
	ID          uint32
	Name        string
	IPAddress   string
	SSHLogin    string
	SSHPassword string
	SSHProxy    uint32
	ZoneID      uint32

	SNMP     *probes.SNMPReader
	Internal *probes.InternalRegistry
	Script   *probes.ScriptProbe
	Sink     ValueSink
}

func NewNode(cfg NodeConfig) *Node {
	sink := cfg.Sink
	if sink == nil {
		sink = LogValueSink{}
	}
	n := &Node{
		BaseTarget:  dcc.NewBaseTarget(models.ClassNode, cfg.ID, cfg.Name),
		ip:          cfg.IPAddress,
		sshLogin:    cfg.SSHLogin,
		sshPassword: cfg.SSHPassword,
		sshProxy:    cfg.SSHProxy,
		zoneID:      cfg.ZoneID,
		trusted:     make(map[uint32]struct{}),
		snmp:        cfg.SNMP,
		internal:    cfg.Internal,
		script:      cfg.Script,
		sink:        sink,
	}
	if n.internal != nil {
		n.SetSupportedParameters(n.internal.Definitions())
	}
	return n
}

// AddTrustedObject allows the object with the given id to redirect its
// collection through this node.
func (n *Node) AddTrustedObject(id uint32) {
	n.trusted[id] = struct{}{}
}

func (n *Node) PrimaryIPAddress() string { return n.ip }
func (n *Node) SSHLogin() string         { return n.sshLogin }
func (n *Node) SSHPassword() string      { return n.sshPassword }
func (n *Node) SSHProxyID() uint32       { return n.sshProxy }
func (n *Node) ZoneID() uint32           { return n.zoneID }

func (n *Node) TrustsObject(id uint32) bool {
	_, ok := n.trusted[id]
	return ok
}

func (n *Node) EffectiveSNMPProxy() uint32 { return 0 }
func (n *Node) Cluster() dcc.ClusterTarget { return nil }

func (n *Node) ProcessNewValue(item *dcc.Item, timestamp time.Time, value any) bool {
	if err := n.sink.Write(item.ID(), timestamp, value); err != nil {
		zap.S().Named("targets").Errorw("value sink write failed", "dciId", item.ID(), "error", err)
		return false
	}
	return true
}

func (n *Node) ReadInternalMetric(name string) (string, models.ProbeResult) {
	if n.internal == nil {
		return "", models.ProbeNotSupported
	}
	return n.internal.Read(name)
}

func (n *Node) ReadScriptMetric(name string) (string, models.ProbeResult) {
	if n.script == nil {
		return "", models.ProbeNotSupported
	}
	bindings := map[string]any{
		"node": map[string]any{"id": n.ID(), "name": n.Name(), "ipAddr": n.ip},
	}
	return n.script.Read(name, bindings)
}

func (n *Node) ReadSNMPMetric(port uint16, name string, raw models.SNMPRawKind) (string, models.ProbeResult) {
	if n.snmp == nil {
		return "", models.ProbeNotSupported
	}
	return n.snmp.Read(port, name, raw)
}

func (n *Node) ReadSNMPTable(port uint16, name string, columns []string) (*models.Table, models.ProbeResult) {
	return nil, models.ProbeNotSupported
}

// ReadAgentMetric is served by the native-agent transport, which is not
// part of this reference target.
func (n *Node) ReadAgentMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

func (n *Node) ReadAgentTable(name string) (*models.Table, models.ProbeResult) {
	return nil, models.ProbeNotSupported
}

func (n *Node) ReadCheckpointMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

func (n *Node) ReadSMCLPMetric(name string) (string, models.ProbeResult) {
	return "", models.ProbeNotSupported
}

var _ dcc.NodeTarget = (*Node)(nil)
