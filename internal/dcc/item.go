package dcc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/events"
	"github.com/openwatch/netmon-server/internal/models"
	"github.com/openwatch/netmon-server/pkg/scriptenv"
)

const maxItemNameLen = 1024

// Item is one configured metric on one target. All mutable state is guarded
// by the per-item lock; the poll scheduler only try-acquires it so a busy or
// administratively locked item is skipped instead of blocking the tick.
type Item struct {
	mu sync.Mutex

	id             uint32
	guid           uuid.UUID
	templateID     uint32
	templateItemID uint32
	name           string
	description    string
	systemTag      string

	source   models.SourceKind
	itemType models.ItemType
	interval int // seconds; <= 0 means process default
	// retentionDays is a downstream hint, opaque to the core.
	retentionDays int
	status        models.ItemStatus
	flags         models.ItemFlags

	sourceNode  uint32
	snmpPort    uint16
	snmpRawKind models.SNMPRawKind
	resourceID  uint32
	sampleCount int

	transformSource string
	transform       scriptenv.Script

	schedules []string

	busy                 bool
	scheduledForDeletion bool
	lastPoll             time.Time
	lastCheck            time.Time
	errorCount           uint32
	pollingSession       events.ClientSession

	cacheSize   int
	cacheLoaded bool
	noValue     bool

	tableColumns []models.TableColumn

	owner Target // non-owning back reference
	ctx   *Context
}

// NewItem creates an item bound to owner. A zero interval falls back to the
// process default at poll time.
func NewItem(cctx *Context, id uint32, name string, source models.SourceKind, interval, retentionDays int, owner Target) *Item {
	if len(name) > maxItemNameLen {
		name = name[:maxItemNameLen]
	}
	return &Item{
		id:            id,
		guid:          uuid.New(),
		name:          name,
		description:   name,
		source:        source,
		interval:      interval,
		retentionDays: retentionDays,
		status:        models.ItemStatusActive,
		owner:         owner,
		ctx:           cctx,
	}
}

// Clone duplicates the item for template push. Runtime state (busy flag,
// poll times, force-poll session) does not carry over.
func (i *Item) Clone() *Item {
	i.mu.Lock()
	defer i.mu.Unlock()

	dup := &Item{
		id:             i.id,
		guid:           i.guid,
		templateID:     i.templateID,
		templateItemID: i.templateItemID,
		name:           i.name,
		description:    i.description,
		systemTag:      i.systemTag,
		source:         i.source,
		itemType:       i.itemType,
		interval:       i.interval,
		retentionDays:  i.retentionDays,
		status:         i.status,
		flags:          i.flags,
		sourceNode:     i.sourceNode,
		snmpPort:       i.snmpPort,
		snmpRawKind:    i.snmpRawKind,
		resourceID:     i.resourceID,
		sampleCount:    i.sampleCount,
		schedules:      append([]string(nil), i.schedules...),
		tableColumns:   append([]models.TableColumn(nil), i.tableColumns...),
		cacheSize:      i.cacheSize,
		noValue:        i.noValue,
		ctx:            i.ctx,
	}
	dup.setTransformationScriptLocked(i.transformSource)
	return dup
}

func (i *Item) ID() uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.id
}

func (i *Item) GUID() uuid.UUID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.guid
}

func (i *Item) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.name
}

func (i *Item) Description() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.description
}

func (i *Item) SystemTag() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.systemTag
}

func (i *Item) Source() models.SourceKind {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.source
}

func (i *Item) Type() models.ItemType {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.itemType
}

func (i *Item) Status() models.ItemStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

func (i *Item) Flags() models.ItemFlags {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flags
}

func (i *Item) SourceNodeID() uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sourceNode
}

func (i *Item) SNMPPort() uint16 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snmpPort
}

func (i *Item) SNMPRawKind() models.SNMPRawKind {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.flags&models.FlagInterpretSNMPRaw != 0 {
		return i.snmpRawKind
	}
	return models.SNMPRawNone
}

func (i *Item) ResourceID() uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.resourceID
}

func (i *Item) SampleCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sampleCount
}

func (i *Item) RetentionDays() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.retentionDays <= 0 {
		return i.ctx.DefaultRetentionDays
	}
	return i.retentionDays
}

func (i *Item) Owner() Target {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owner
}

func (i *Item) OwnerID() uint32 {
	if o := i.Owner(); o != nil {
		return o.ID()
	}
	return 0
}

func (i *Item) LastPollTime() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastPoll
}

func (i *Item) ErrorCount() uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.errorCount
}

func (i *Item) Schedules() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.schedules...)
}

func (i *Item) IsBusy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.busy
}

func (i *Item) ScheduledForDeletion() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.scheduledForDeletion
}

func (i *Item) SetType(t models.ItemType) {
	i.mu.Lock()
	i.itemType = t
	i.mu.Unlock()
}

func (i *Item) SetDescription(d string) {
	i.mu.Lock()
	i.description = d
	i.mu.Unlock()
}

func (i *Item) SetSystemTag(tag string) {
	i.mu.Lock()
	i.systemTag = tag
	i.mu.Unlock()
}

func (i *Item) SetInterval(seconds int) {
	i.mu.Lock()
	i.interval = seconds
	i.mu.Unlock()
}

func (i *Item) SetFlags(f models.ItemFlags) {
	i.mu.Lock()
	i.flags = f
	i.mu.Unlock()
}

func (i *Item) SetSourceNode(id uint32) {
	i.mu.Lock()
	i.sourceNode = id
	i.mu.Unlock()
}

func (i *Item) SetSNMPPort(port uint16) {
	i.mu.Lock()
	i.snmpPort = port
	i.mu.Unlock()
}

func (i *Item) SetSNMPRawKind(k models.SNMPRawKind) {
	i.mu.Lock()
	i.snmpRawKind = k
	i.mu.Unlock()
}

func (i *Item) SetResourceID(id uint32) {
	i.mu.Lock()
	i.resourceID = id
	i.mu.Unlock()
}

func (i *Item) SetSampleCount(n int) {
	i.mu.Lock()
	i.sampleCount = n
	i.mu.Unlock()
}

func (i *Item) SetTemplateReference(templateID, templateItemID uint32) {
	i.mu.Lock()
	i.templateID = templateID
	i.templateItemID = templateItemID
	i.mu.Unlock()
}

func (i *Item) TemplateReference() (uint32, uint32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.templateID, i.templateItemID
}

// SetCacheRequirement declares how many historical samples must be warmed
// before the first poll. Zero means no cache is needed.
func (i *Item) SetCacheRequirement(size int) {
	i.mu.Lock()
	i.cacheSize = size
	if size == 0 {
		i.cacheLoaded = false
	}
	i.mu.Unlock()
}

// SetHasValue marks items (such as instance discovery parents) that never
// produce a collectable value.
func (i *Item) SetHasValue(has bool) {
	i.mu.Lock()
	i.noValue = !has
	i.mu.Unlock()
}

func (i *Item) HasValue() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.noValue
}

// SetSchedules replaces the advanced schedule set.
func (i *Item) SetSchedules(schedules []string) {
	i.mu.Lock()
	i.schedules = append([]string(nil), schedules...)
	i.mu.Unlock()
}

func (i *Item) AddSchedule(schedule string) {
	i.mu.Lock()
	i.schedules = append(i.schedules, schedule)
	i.mu.Unlock()
}

// SetTableColumns configures the columns of a tabular item.
func (i *Item) SetTableColumns(columns []models.TableColumn) {
	i.mu.Lock()
	i.tableColumns = append([]models.TableColumn(nil), columns...)
	i.mu.Unlock()
}

// Columns returns the source-side column names of a tabular item.
func (i *Item) Columns() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	names := make([]string, len(i.tableColumns))
	for n, c := range i.tableColumns {
		names[n] = c.Name
	}
	return names
}

// UpdateResultColumns stamps configured display names onto a collected
// table.
func (i *Item) UpdateResultColumns(t *models.Table) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for n, name := range t.Columns {
		for _, c := range i.tableColumns {
			if c.Name == name && c.DisplayName != "" {
				t.Columns[n] = c.DisplayName
				break
			}
		}
	}
}

// EffectiveInterval is the poll cadence in seconds, falling back to the
// process default for non-positive values.
func (i *Item) EffectiveInterval() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.effectiveIntervalLocked()
}

func (i *Item) effectiveIntervalLocked() int {
	if i.interval <= 0 {
		return i.ctx.DefaultInterval
	}
	return i.interval
}

// SetStatus changes the item status and, when requested and the owner is an
// event source, publishes the matching status-change event.
func (i *Item) SetStatus(status models.ItemStatus, generateEvent bool) {
	i.mu.Lock()
	changed := i.status != status
	owner := i.owner
	code := statusEventCode(status)
	fields := map[string]any{
		"dciId":          i.id,
		"dciName":        i.name,
		"dciDescription": i.description,
		"origin":         int(i.source),
		"originName":     i.source.Label(),
	}
	i.status = status
	i.mu.Unlock()

	if generateEvent && changed && owner != nil && owner.ObjectClass().IsEventSource() && code != "" {
		i.ctx.Events.Post(events.Event{Code: code, Origin: owner.ID(), Fields: fields})
	}
}

func statusEventCode(status models.ItemStatus) events.Code {
	switch status {
	case models.ItemStatusActive:
		return events.CodeDCIActive
	case models.ItemStatusDisabled:
		return events.CodeDCIDisabled
	case models.ItemStatusNotSupported:
		return events.CodeDCIUnsupported
	}
	return ""
}

// ErrorSink is optionally implemented by targets that track per-item
// collection errors.
type ErrorSink interface {
	ProcessNewError(item *Item, noInstance bool, timestamp time.Time)
}

// ProcessNewError records a collection error and notifies the owner.
func (i *Item) ProcessNewError(noInstance bool) {
	now := time.Now()

	i.mu.Lock()
	i.errorCount++
	owner := i.owner
	i.mu.Unlock()

	if sink, ok := owner.(ErrorSink); ok {
		sink.ProcessNewError(i, noInstance, now)
	}
}

func (i *Item) resetErrorCount() {
	i.mu.Lock()
	i.errorCount = 0
	i.mu.Unlock()
}

// SetTransformationScript compiles and installs a new transformation script.
// Compilation failures are logged once here and the script stays disabled;
// collection continues with raw values.
func (i *Item) SetTransformationScript(source string) {
	i.mu.Lock()
	i.setTransformationScriptLocked(source)
	i.mu.Unlock()
}

func (i *Item) setTransformationScriptLocked(source string) {
	i.transformSource = strings.TrimSpace(source)
	i.transform = nil
	if i.transformSource == "" {
		return
	}

	script, err := i.ctx.Scripts.Compile(i.transformSource)
	if err != nil {
		zap.S().Named("data_collection").Warnw("transformation script compilation failed",
			"ownerId", i.ownerIDLocked(), "ownerName", i.ownerNameLocked(),
			"dciId", i.id, "dciName", i.name, "error", err)
		return
	}
	i.transform = script
}

func (i *Item) TransformationScriptSource() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.transformSource
}

// Transform applies the transformation script to a collected value. Items
// without a working script pass the value through. Runtime failures surface
// to the caller and count as collection errors for that sample.
func (i *Item) Transform(value any) (any, error) {
	i.mu.Lock()
	script := i.transform
	i.mu.Unlock()
	if script == nil {
		return value, nil
	}

	bindings := i.scriptBindings()
	bindings["value"] = value
	result, err := i.ctx.Scripts.Run(script, bindings)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return value, nil
	}
	return result, nil
}

func (i *Item) ownerIDLocked() uint32 {
	if i.owner != nil {
		return i.owner.ID()
	}
	return 0
}

func (i *Item) ownerNameLocked() string {
	if i.owner != nil {
		return i.owner.Name()
	}
	return "(null)"
}

// scriptBindings exposes the owner and the item to scripts the way schedule
// expansion and macro scripts expect them.
func (i *Item) scriptBindings() map[string]any {
	i.mu.Lock()
	defer i.mu.Unlock()

	dci := map[string]any{
		"id":          i.id,
		"name":        i.name,
		"description": i.description,
		"systemTag":   i.systemTag,
		"origin":      int(i.source),
		"status":      int(i.status),
		"errorCount":  i.errorCount,
		"lastPoll":    i.lastPoll.Unix(),
	}
	node := map[string]any{}
	if i.owner != nil {
		node["id"] = i.owner.ID()
		node["name"] = i.owner.Name()
	}
	return map[string]any{"node": node, "dci": dci}
}

// matchSchedule evaluates one schedule expression, expanding a `%[script]`
// reference through the script environment first. Expansion failures and
// syntax errors make the schedule not match.
func (i *Item) matchSchedule(now time.Time, schedule string) (matched, withSeconds bool) {
	log := zap.S().Named("data_collection")

	expr := schedule
	if strings.HasPrefix(schedule, "%[") {
		closing := strings.Index(schedule, "]")
		if closing < 0 {
			log.Warnw("invalid script schedule syntax", "dciId", i.ID(), "dciName", i.Name(), "schedule", schedule)
			return false, false
		}
		name := schedule[2:closing]
		result, err := i.ctx.Scripts.RunNamed(name, i.scriptBindings())
		if err != nil {
			log.Warnw("schedule expansion script failed", "dciId", i.ID(), "script", name, "error", err)
			return false, false
		}
		expr = scriptenv.ToString(result)
		if expr == "" {
			return false, false
		}
		// One level of expansion only.
		if strings.HasPrefix(expr, "%[") {
			log.Warnw("recursive script schedule rejected", "dciId", i.ID(), "script", name, "expanded", expr)
			return false, false
		}
		log.Debugw("script schedule expanded", "dciId", i.ID(), "script", name, "expanded", expr)
	}

	ok, withSeconds, err := MatchScheduleExpression(expr, now)
	if err != nil {
		log.Debugw("schedule did not parse", "dciId", i.ID(), "schedule", expr, "error", err)
		return false, withSeconds
	}
	return ok, withSeconds
}

// IsDue decides whether the item should be enqueued for collection at now.
// The item lock is only try-acquired: an item being reconfigured or already
// collecting is skipped and picked up on a later tick.
func (i *Item) IsDue(now time.Time) bool {
	if !i.mu.TryLock() {
		zap.S().Named("data_collection").Debugw("cannot obtain lock for collection item", "dciId", i.id)
		return false
	}

	pollable := i.status != models.ItemStatusDisabled &&
		i.isCacheLoadedLocked() &&
		i.source != models.SourcePush &&
		!i.noValue

	if i.pollingSession != nil && !i.busy {
		if pollable && i.matchClusterResourceLocked() && i.agentCacheModeLocked() == models.CacheModeOff {
			i.mu.Unlock()
			return true
		}
		// The item cannot be force polled right now; drop the request.
		zap.S().Named("data_collection").Debugw("forced poll cancelled",
			"dciId", i.id, "dciName", i.name, "ownerId", i.ownerIDLocked(), "ownerName", i.ownerNameLocked())
		i.pollingSession.Release()
		i.pollingSession = nil
		i.mu.Unlock()
		return false
	}

	if i.busy || !pollable || !i.matchClusterResourceLocked() || i.agentCacheModeLocked() != models.CacheModeOff {
		i.mu.Unlock()
		return false
	}

	var due bool
	if i.flags&models.FlagAdvancedSchedule != 0 {
		schedules := append([]string(nil), i.schedules...)
		lastCheck := i.lastCheck
		// Schedule evaluation may call into the script environment;
		// run it outside the item lock.
		i.mu.Unlock()
		for _, schedule := range schedules {
			matched, withSeconds := i.matchSchedule(now, schedule)
			if matched && (withSeconds || now.Sub(lastCheck) >= time.Minute || now.Minute() != lastCheck.Minute()) {
				due = true
				break
			}
		}
		i.mu.Lock()
		i.lastCheck = now
	} else {
		interval := time.Duration(i.effectiveIntervalLocked()) * time.Second
		if i.status == models.ItemStatusNotSupported {
			interval *= 10
		}
		due = !i.lastPoll.Add(interval).After(now)
	}

	i.mu.Unlock()
	return due
}

func (i *Item) matchClusterResourceLocked() bool {
	if i.resourceID == 0 || i.owner == nil || i.owner.ObjectClass() != models.ClassNode {
		return true
	}
	node, ok := i.owner.(NodeTarget)
	if !ok {
		return false
	}
	cluster := node.Cluster()
	if cluster == nil {
		// Has a resource association but no owning cluster.
		return false
	}
	return cluster.IsResourceOnNode(i.resourceID, i.owner.ID())
}

// MatchClusterResource reports whether the item's cluster-resource affinity
// is satisfied. Items without an association always pass.
func (i *Item) MatchClusterResource() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.matchClusterResourceLocked()
}

// agentCacheModeLocked resolves the effective agent-side cache mode. Items
// served from an agent cache are driven by an adjacent subsystem, so the
// scheduler skips them.
func (i *Item) agentCacheModeLocked() models.CacheMode {
	if i.source != models.SourceNativeAgent && i.source != models.SourceSNMP {
		return models.CacheModeOff
	}

	var node NodeTarget
	if i.sourceNode != 0 {
		node = i.ctx.Objects.FindNode(i.sourceNode)
	} else if i.owner != nil {
		switch i.owner.ObjectClass() {
		case models.ClassNode:
			node, _ = i.owner.(NodeTarget)
		case models.ClassChassis:
			if chassis, ok := i.owner.(ChassisTarget); ok {
				node = i.ctx.Objects.FindNode(chassis.ControllerID())
			}
		}
	}
	if node == nil {
		return models.CacheModeOff
	}

	if i.source == models.SourceSNMP && node.EffectiveSNMPProxy() == 0 {
		return models.CacheModeOff
	}

	if mode := i.flags.CacheMode(); mode != models.CacheModeDefault {
		return mode
	}
	return node.AgentCacheMode()
}

// AgentCacheMode resolves the effective agent-side cache mode for the item.
func (i *Item) AgentCacheMode() models.CacheMode {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.agentCacheModeLocked()
}

func (i *Item) isCacheLoadedLocked() bool {
	return i.cacheSize == 0 || i.cacheLoaded
}

// IsCacheLoaded reports whether the historical cache required before the
// first poll is in place. Items without a cache requirement are always
// loaded.
func (i *Item) IsCacheLoaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.isCacheLoadedLocked()
}

// NeedsCacheLoad reports whether the item must go through the cache loader
// before the scheduler will pick it up.
func (i *Item) NeedsCacheLoad() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cacheSize > 0 && !i.cacheLoaded
}

// ReloadCache warms the item's historical cache from downstream storage.
func (i *Item) ReloadCache() error {
	i.mu.Lock()
	source := i.ctx.Cache
	needed := i.cacheSize > 0
	i.mu.Unlock()

	if needed && source != nil {
		if err := source.LoadItemCache(i); err != nil {
			return err
		}
	}

	i.mu.Lock()
	i.cacheLoaded = true
	i.mu.Unlock()
	return nil
}

// tryMarkBusy acquires the busy flag, failing if another enqueue won the
// race. Guarantees the per-item queue depth never exceeds one.
func (i *Item) tryMarkBusy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.busy {
		return false
	}
	i.busy = true
	return true
}

// finishPoll records the poll completion: last-poll time is written after
// all status and value updates so observers see a consistent pair, then the
// busy flag is cleared.
func (i *Item) finishPoll(at time.Time) {
	i.mu.Lock()
	i.lastPoll = at
	i.busy = false
	i.mu.Unlock()
}

// SetLastPollTime is exposed for tests and administrative backfill.
func (i *Item) SetLastPollTime(at time.Time) {
	i.mu.Lock()
	i.lastPoll = at
	i.mu.Unlock()
}

// RequestForcePoll attaches a one-shot force-poll requester. A newer request
// replaces a pending one, releasing the earlier session handle.
func (i *Item) RequestForcePoll(session events.ClientSession) {
	i.mu.Lock()
	prev := i.pollingSession
	i.pollingSession = session
	i.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// ProcessForcePoll consumes the pending force-poll requester, if any.
func (i *Item) ProcessForcePoll() events.ClientSession {
	i.mu.Lock()
	session := i.pollingSession
	i.pollingSession = nil
	i.mu.Unlock()
	return session
}

// HasPendingForcePoll is exposed for tests.
func (i *Item) HasPendingForcePoll() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pollingSession != nil
}

// PrepareForDeletion disables the item, flags it for deletion and reports
// whether it can be destroyed immediately. When false, the worker holding it
// busy performs the destruction.
func (i *Item) PrepareForDeletion() bool {
	i.mu.Lock()
	i.status = models.ItemStatusDisabled
	i.scheduledForDeletion = true
	canDelete := !i.busy
	i.mu.Unlock()

	zap.S().Named("data_collection").Debugw("item prepared for deletion", "dciId", i.ID(), "canDelete", canDelete)
	return canDelete
}

// ChangeBinding re-binds the item to a new owner, optionally assigning a new
// id. A new id regenerates the GUID. Macro expansion rewrites name,
// description and system tag against the new owner.
func (i *Item) ChangeBinding(newID uint32, newOwner Target, doMacroExpansion bool) {
	i.mu.Lock()
	i.owner = newOwner
	if newID != 0 {
		i.id = newID
		i.guid = uuid.New()
	}
	name, description, tag := i.name, i.description, i.systemTag
	i.mu.Unlock()

	if doMacroExpansion {
		name = i.ExpandMacros(name)
		description = i.ExpandMacros(description)
		tag = i.ExpandMacros(tag)
		i.mu.Lock()
		i.name = name
		i.description = description
		i.systemTag = tag
		i.mu.Unlock()
	}
}

// UpdateFromTemplate copies configuration from a template item, expanding
// macros against this item's owner.
func (i *Item) UpdateFromTemplate(src *Item) {
	src.mu.Lock()
	name := src.name
	description := src.description
	tag := src.systemTag
	interval := src.interval
	retention := src.retentionDays
	source := src.source
	status := src.status
	flags := src.flags
	sourceNode := src.sourceNode
	resourceID := src.resourceID
	snmpPort := src.snmpPort
	snmpRawKind := src.snmpRawKind
	transform := src.transformSource
	schedules := append([]string(nil), src.schedules...)
	src.mu.Unlock()

	name = i.ExpandMacros(name)
	description = i.ExpandMacros(description)
	tag = i.ExpandMacros(tag)

	i.mu.Lock()
	i.name = name
	i.description = description
	i.systemTag = tag
	i.interval = interval
	i.retentionDays = retention
	i.source = source
	i.flags = flags
	i.sourceNode = sourceNode
	i.resourceID = resourceID
	i.snmpPort = snmpPort
	i.snmpRawKind = snmpRawKind
	i.setTransformationScriptLocked(transform)
	i.schedules = schedules
	i.mu.Unlock()

	i.SetStatus(status, true)
}

// ExpandMacros substitutes `%{...}` references in text: node_id, node_name,
// node_primary_ip and script:NAME. Failed script macros substitute "(error)"
// and publish a script error event.
func (i *Item) ExpandMacros(src string) string {
	if !strings.Contains(src, "%{") {
		return src
	}

	log := zap.S().Named("data_collection")
	var out strings.Builder
	rest := src
	for {
		start := strings.Index(rest, "%{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += start

		out.WriteString(rest[:start])
		macro := strings.TrimSpace(rest[start+2 : end])
		rest = rest[end+1:]

		owner := i.Owner()
		switch {
		case macro == "node_id":
			if owner != nil {
				out.WriteString(scriptenv.ToString(float64(owner.ID())))
			} else {
				out.WriteString("(error)")
			}
		case macro == "node_name":
			if owner != nil {
				out.WriteString(owner.Name())
			} else {
				out.WriteString("(error)")
			}
		case macro == "node_primary_ip":
			if node, ok := owner.(NodeTarget); ok {
				out.WriteString(node.PrimaryIPAddress())
			} else {
				out.WriteString("(error)")
			}
		case strings.HasPrefix(macro, "script:"):
			name := macro[len("script:"):]
			result, err := i.ctx.Scripts.RunNamed(name, i.scriptBindings())
			if err != nil {
				log.Warnw("macro script failed", "dciId", i.ID(), "script", name, "error", err)
				out.WriteString("(error)")
				i.ctx.Events.Post(events.Event{
					Code:   events.CodeScriptError,
					Origin: i.ctx.ManagementNodeID,
					Fields: map[string]any{"script": name, "error": err.Error(), "dciId": i.ID()},
				})
			} else {
				out.WriteString(scriptenv.ToString(result))
			}
		default:
			// Unknown macros expand to nothing.
		}
	}
	return out.String()
}

// LoadSchedules restores the advanced schedule set from the store.
func (i *Item) LoadSchedules(ctx context.Context) error {
	if i.ctx.Schedules == nil || i.Flags()&models.FlagAdvancedSchedule == 0 {
		return nil
	}
	schedules, err := i.ctx.Schedules.LoadSchedules(ctx, i.ID())
	if err != nil {
		return err
	}
	i.SetSchedules(schedules)
	return nil
}

// SaveSchedules rebuilds the item's rows in the schedules relation.
func (i *Item) SaveSchedules(ctx context.Context) error {
	if i.ctx.Schedules == nil {
		return nil
	}
	return i.ctx.Schedules.SaveSchedules(ctx, i.ID(), i.Schedules())
}

// deleteFromStore flushes persistence on destruction.
func (i *Item) deleteFromStore() {
	if i.ctx.Schedules == nil {
		return
	}
	if err := i.ctx.Schedules.DeleteSchedules(context.Background(), i.ID()); err != nil {
		zap.S().Named("data_collection").Errorw("failed to delete item schedules", "dciId", i.ID(), "error", err)
	}
}
