package dcc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/events"
	"github.com/openwatch/netmon-server/internal/models"
)

// CollectorPool runs the identical worker goroutines consuming the
// collection queue. Each worker resolves the effective target, dispatches
// the probe, applies the transformation and routes the outcome into the
// item's status machine and the target's value sink.
type CollectorPool struct {
	ctx *Context
	wg  sync.WaitGroup
}

func newCollectorPool(cctx *Context) *CollectorPool {
	return &CollectorPool{ctx: cctx}
}

func (p *CollectorPool) start(workers int) {
	for n := range workers {
		p.wg.Add(1)
		go p.run(n)
	}
}

func (p *CollectorPool) join() {
	p.wg.Wait()
}

func (p *CollectorPool) run(workerID int) {
	defer p.wg.Done()
	log := zap.S().Named("data_collector")

	// One line buffer per worker, reused across polls for synthesized
	// parameter names.
	buf := make([]byte, 0, 256)

	for {
		w := p.ctx.Queue.Take()
		if w.Kind == WorkShutdown {
			break
		}
		item := w.Item
		target := item.Owner()

		if item.ScheduledForDeletion() {
			log.Debugw("destroying collection item", "dciId", item.ID(), "dciName", item.Name(), "ownerId", item.OwnerID())
			item.deleteFromStore()
			if target != nil {
				target.DecRefCount()
			}
			continue
		}

		if target == nil {
			log.Infow("attempt to collect for non-existing object", "dciId", item.ID(), "dciName", item.Name())
			item.finishPoll(time.Now())
			continue
		}

		log.Debugw("processing collection item",
			"dciId", item.ID(), "dciName", item.Name(), "ownerId", target.ID(), "sourceNode", item.SourceNodeID())

		target, switched := p.resolveEffectiveTarget(item, target)

		now := time.Now()
		if target != nil {
			if !p.ctx.ShuttingDown() {
				value, result := p.collect(target, item, &buf)
				p.applyResult(item, now, value, result)
			}

			// Notify the force-poll requester, if one is attached.
			if session := item.ProcessForcePoll(); session != nil {
				session.Notify(events.NotifyForceDCIPoll, item.OwnerID())
				session.Release()
			}

			target.DecRefCount()
			if switched {
				if owner := item.Owner(); owner != nil {
					owner.DecRefCount()
				}
			}
		} else {
			log.Infow("attempt to collect for inaccessible object",
				"dciId", item.ID(), "dciName", item.Name(), "ownerId", item.OwnerID())
		}

		item.finishPoll(now)
	}

	log.Debugw("data collector worker terminated", "worker", workerID)
}

// resolveEffectiveTarget applies the source-node override and its trust
// gate. A missing or untrusted override returns a nil target; the untrusted
// case also demotes the item to not-supported so the scheduler stops
// hammering it.
func (p *CollectorPool) resolveEffectiveTarget(item *Item, owner Target) (Target, bool) {
	sourceNodeID := owner.EffectiveSourceNode(item)
	if sourceNodeID == 0 {
		return owner, false
	}

	sourceNode := p.ctx.Objects.FindNode(sourceNodeID)
	if sourceNode == nil {
		owner.DecRefCount()
		return nil, false
	}

	controllerMatch := false
	if chassis, ok := owner.(ChassisTarget); ok {
		controllerMatch = chassis.ControllerID() == sourceNodeID
	}
	if controllerMatch || sourceNode.TrustsObject(owner.ID()) {
		sourceNode.IncRefCount()
		return sourceNode, true
	}

	item.SetStatus(models.ItemStatusNotSupported, true)
	owner.DecRefCount()
	return nil, false
}

// applyResult maps a probe outcome onto the item status machine and the
// downstream sinks. Values always go to the item's owner even when the
// probe ran against an override source node. Success, collection-error and
// no-such-instance outcomes re-promote an unsupported item before the value
// or error is forwarded; comm errors and ignored results leave the status
// unchanged.
func (p *CollectorPool) applyResult(item *Item, timestamp time.Time, value any, result models.ProbeResult) {
	switch result {
	case models.ProbeSuccess:
		if item.Status() == models.ItemStatusNotSupported {
			item.SetStatus(models.ItemStatusActive, true)
		}
		if item.Type() == models.ItemTypeSimpleValue {
			transformed, err := item.Transform(value)
			if err != nil {
				zap.S().Named("data_collector").Warnw("transformation failed",
					"dciId", item.ID(), "dciName", item.Name(), "error", err)
				item.ProcessNewError(false)
				return
			}
			value = transformed
		}
		owner := item.Owner()
		if owner == nil || !owner.ProcessNewValue(item, timestamp, value) {
			// Value processing failed; convert to a collection error.
			item.ProcessNewError(false)
			return
		}
		item.resetErrorCount()

	case models.ProbeCollectionError:
		if item.Status() == models.ItemStatusNotSupported {
			item.SetStatus(models.ItemStatusActive, true)
		}
		item.ProcessNewError(false)

	case models.ProbeNoSuchInstance:
		if item.Status() == models.ItemStatusNotSupported {
			item.SetStatus(models.ItemStatusActive, true)
		}
		item.ProcessNewError(true)

	case models.ProbeCommError:
		item.ProcessNewError(false)

	case models.ProbeNotSupported:
		item.SetStatus(models.ItemStatusNotSupported, true)

	case models.ProbeIgnore:
		// Nothing to forward; last-poll still advances.
	}
}

// collect dispatches on (target class, source kind, item type).
func (p *CollectorPool) collect(target Target, item *Item, buf *[]byte) (any, models.ProbeResult) {
	if target.ObjectClass() == models.ClassCluster {
		cluster, ok := target.(ClusterTarget)
		if !ok {
			return nil, models.ProbeNotSupported
		}
		if item.Flags()&models.FlagAggregateOnCluster == 0 {
			return nil, models.ProbeIgnore
		}
		return cluster.CollectAggregatedValue(item)
	}

	if item.Type() == models.ItemTypeTable {
		return p.collectTable(target, item)
	}
	return p.collectValue(target, item, buf)
}

func (p *CollectorPool) collectValue(target Target, item *Item, buf *[]byte) (any, models.ProbeResult) {
	node, isNode := target.(NodeTarget)
	if isNode && target.ObjectClass() != models.ClassNode {
		isNode = false
	}

	switch item.Source() {
	case models.SourceInternal:
		return stringResult(target.ReadInternalMetric(item.Name()))

	case models.SourceSNMP:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		return stringResult(node.ReadSNMPMetric(item.SNMPPort(), item.Name(), item.SNMPRawKind()))

	case models.SourceCheckpointSNMP:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		return stringResult(node.ReadCheckpointMetric(item.Name()))

	case models.SourceNativeAgent:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		return stringResult(node.ReadAgentMetric(item.Name()))

	case models.SourceWinPerf:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		*buf = fmt.Appendf((*buf)[:0], "PDH.CounterValue(\"%s\",%d)",
			escapeAgentString(item.Name()), item.SampleCount())
		return stringResult(node.ReadAgentMetric(string(*buf)))

	case models.SourceSSH:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		return p.collectSSH(node, item, buf)

	case models.SourceSMCLP:
		if !isNode {
			return nil, models.ProbeNotSupported
		}
		return stringResult(node.ReadSMCLPMetric(item.Name()))

	case models.SourceScript:
		return stringResult(target.ReadScriptMetric(item.Name()))
	}

	return nil, models.ProbeNotSupported
}

// collectSSH synthesizes an SSH.Command agent parameter and runs it against
// the resolved proxy: the item-pinned proxy, else the zone proxy, else the
// management node.
func (p *CollectorPool) collectSSH(node NodeTarget, item *Item, buf *[]byte) (any, models.ProbeResult) {
	proxyID := node.SSHProxyID()
	if proxyID == 0 {
		if zoneProxy := p.ctx.Objects.ZoneProxy(node.ZoneID()); zoneProxy != 0 {
			proxyID = zoneProxy
		} else {
			proxyID = p.ctx.ManagementNodeID
		}
	}

	proxy := p.ctx.Objects.FindNode(proxyID)
	if proxy == nil {
		return nil, models.ProbeCommError
	}

	*buf = fmt.Appendf((*buf)[:0], "SSH.Command(%s,\"%s\",\"%s\",\"%s\")",
		node.PrimaryIPAddress(),
		escapeAgentString(node.SSHLogin()),
		escapeAgentString(node.SSHPassword()),
		escapeAgentString(item.Name()))
	return stringResult(proxy.ReadAgentMetric(string(*buf)))
}

func (p *CollectorPool) collectTable(target Target, item *Item) (any, models.ProbeResult) {
	node, ok := target.(NodeTarget)
	if !ok || target.ObjectClass() != models.ClassNode {
		return nil, models.ProbeNotSupported
	}

	switch item.Source() {
	case models.SourceNativeAgent:
		table, result := node.ReadAgentTable(item.Name())
		if result == models.ProbeSuccess && table != nil {
			item.UpdateResultColumns(table)
		}
		return table, result

	case models.SourceSNMP:
		table, result := node.ReadSNMPTable(item.SNMPPort(), item.Name(), item.Columns())
		if result == models.ProbeSuccess && table != nil {
			item.UpdateResultColumns(table)
		}
		return table, result
	}

	return nil, models.ProbeNotSupported
}

func stringResult(value string, result models.ProbeResult) (any, models.ProbeResult) {
	if result != models.ProbeSuccess {
		return nil, result
	}
	return value, result
}

// escapeAgentString quotes a string for embedding in a synthesized agent
// parameter.
func escapeAgentString(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
