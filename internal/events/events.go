// Package events defines the message sinks the data collection core posts
// into: the server event bus and per-client session notifications. The core
// only depends on the interfaces; the zap-backed implementations here are
// what the server binary wires in when no real bus is attached.
package events

import (
	"go.uber.org/zap"
)

// Code identifies an event on the bus.
type Code string

const (
	CodeDCIActive      Code = "DCI_ACTIVE"
	CodeDCIDisabled    Code = "DCI_DISABLED"
	CodeDCIUnsupported Code = "DCI_UNSUPPORTED"
	CodeScriptError    Code = "SCRIPT_ERROR"
)

// NotifyForceDCIPoll is sent to a client session when its force-poll request
// has been processed.
const NotifyForceDCIPoll = "FORCE_DCI_POLL"

// Event is one message posted to the bus. Origin is the id of the object the
// event is generated for; Fields carries event-specific parameters.
type Event struct {
	Code   Code
	Origin uint32
	Fields map[string]any
}

// Sink consumes bus events. Implementations must be safe for concurrent use.
type Sink interface {
	Post(e Event)
}

// ClientSession is a handle to a connected client that requested a force
// poll. The core notifies it once and releases the reference it was given.
type ClientSession interface {
	Notify(code string, objectID uint32)
	Release()
}

// LogSink posts events to the process log. Used when no event bus is wired.
type LogSink struct{}

func (LogSink) Post(e Event) {
	zap.S().Named("event_bus").Infow("event posted", "code", string(e.Code), "origin", e.Origin, "fields", e.Fields)
}

// CollectingSink records events in memory. Intended for tests.
type CollectingSink struct {
	ch chan Event
}

func NewCollectingSink(capacity int) *CollectingSink {
	return &CollectingSink{ch: make(chan Event, capacity)}
}

func (s *CollectingSink) Post(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

func (s *CollectingSink) C() <-chan Event {
	return s.ch
}
