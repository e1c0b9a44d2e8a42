package models

import "fmt"

// SourceKind identifies the transport a collection item is read from.
type SourceKind int

const (
	SourceInternal SourceKind = iota
	SourceNativeAgent
	SourceSNMP
	SourceCheckpointSNMP
	SourcePush
	SourceWinPerf
	SourceSMCLP
	SourceSSH
	SourceScript
)

var sourceKindLabels = map[SourceKind]string{
	SourceInternal:       "Internal",
	SourceNativeAgent:    "Native Agent",
	SourceSNMP:           "SNMP",
	SourceCheckpointSNMP: "CheckPoint SNMP",
	SourcePush:           "Push",
	SourceWinPerf:        "WinPerf",
	SourceSMCLP:          "SMCLP",
	SourceSSH:            "SSH",
	SourceScript:         "Script",
}

// Label returns the human readable name used in events and the admin API.
func (s SourceKind) Label() string {
	if l, ok := sourceKindLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

// ItemType discriminates between single-value and tabular collection items.
type ItemType int

const (
	ItemTypeSimpleValue ItemType = iota
	ItemTypeTable
)

// ItemStatus is the administrative/operational state of a collection item.
type ItemStatus int

const (
	ItemStatusActive ItemStatus = iota
	ItemStatusDisabled
	ItemStatusNotSupported
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusActive:
		return "active"
	case ItemStatusDisabled:
		return "disabled"
	case ItemStatusNotSupported:
		return "not-supported"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// CacheMode controls whether agent-side caching serves an item instead of
// direct collection.
type CacheMode int

const (
	CacheModeDefault CacheMode = iota // inherit from the owning target
	CacheModeOn
	CacheModeOff
)

// ItemFlags is the per-item flags bitfield.
type ItemFlags uint16

const (
	FlagAdvancedSchedule   ItemFlags = 0x0001
	FlagAggregateOnCluster ItemFlags = 0x0002
	FlagInterpretSNMPRaw   ItemFlags = 0x0004

	cacheModeShift           = 12
	cacheModeMask  ItemFlags = 0x3000
)

// CacheMode extracts the 2-bit agent cache mode subfield.
func (f ItemFlags) CacheMode() CacheMode {
	return CacheMode((f & cacheModeMask) >> cacheModeShift)
}

// WithCacheMode returns the flags with the cache mode subfield replaced.
func (f ItemFlags) WithCacheMode(m CacheMode) ItemFlags {
	return (f &^ cacheModeMask) | (ItemFlags(m)<<cacheModeShift)&cacheModeMask
}

// SNMPRawKind forces integer interpretation of raw SNMP output when the
// FlagInterpretSNMPRaw flag is set.
type SNMPRawKind int

const (
	SNMPRawNone SNMPRawKind = iota
	SNMPRawInt32
	SNMPRawUint32
	SNMPRawInt64
	SNMPRawUint64
	SNMPRawDouble
	SNMPRawIPAddr
	SNMPRawMACAddr
)

// ProbeResult is the outcome of a single read attempt against a source.
type ProbeResult int

const (
	ProbeSuccess ProbeResult = iota
	ProbeCollectionError
	ProbeNoSuchInstance
	ProbeCommError
	ProbeNotSupported
	ProbeIgnore
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeSuccess:
		return "success"
	case ProbeCollectionError:
		return "collection-error"
	case ProbeNoSuchInstance:
		return "no-such-instance"
	case ProbeCommError:
		return "comm-error"
	case ProbeNotSupported:
		return "not-supported"
	case ProbeIgnore:
		return "ignore"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// ObjectClass tags the kind of monitored object hosting collection items.
type ObjectClass int

const (
	ClassNode ObjectClass = iota
	ClassCluster
	ClassMobileDevice
	ClassChassis
	ClassZone
	ClassTemplate
)

func (c ObjectClass) String() string {
	switch c {
	case ClassNode:
		return "node"
	case ClassCluster:
		return "cluster"
	case ClassMobileDevice:
		return "mobile-device"
	case ClassChassis:
		return "chassis"
	case ClassZone:
		return "zone"
	case ClassTemplate:
		return "template"
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// IsEventSource reports whether status-change events are generated for items
// owned by objects of this class. Template-class owners hold item definitions
// only and never produce events.
func (c ObjectClass) IsEventSource() bool {
	switch c {
	case ClassNode, ClassCluster, ClassMobileDevice, ClassChassis:
		return true
	}
	return false
}

// Table is a tabular collection result. Columns are positional; rows carry
// one string cell per column.
type Table struct {
	Columns []string
	Rows    [][]string
}

// TableColumn configures one column of a tabular item: the name requested
// from the source and the display name stamped onto results.
type TableColumn struct {
	Name        string
	DisplayName string
}

// ParameterDefinition describes one metric a target can serve, for the
// supported-parameter catalog exposed over the admin API.
type ParameterDefinition struct {
	Name        string
	Description string
	DataType    string
}
