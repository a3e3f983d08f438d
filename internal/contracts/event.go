package contracts

import (
	"net/netip"

	"github.com/jsribeiro/ddnsd/internal/domain"
)

// EngineEventKind discriminates the EngineEvent sum type.
type EngineEventKind int

const (
	EventStarted EngineEventKind = iota
	EventStopped
	EventIpChangeDetected
	EventUpdateStarted
	EventUpdateSucceeded
	EventUpdateSkipped
	EventUpdateFailed
	EventStateError
)

func (k EngineEventKind) String() string {
	switch k {
	case EventStarted:
		return "Started"
	case EventStopped:
		return "Stopped"
	case EventIpChangeDetected:
		return "IpChangeDetected"
	case EventUpdateStarted:
		return "UpdateStarted"
	case EventUpdateSucceeded:
		return "UpdateSucceeded"
	case EventUpdateSkipped:
		return "UpdateSkipped"
	case EventUpdateFailed:
		return "UpdateFailed"
	case EventStateError:
		return "StateError"
	default:
		return "Unknown"
	}
}

// EngineEvent is emitted to the observer channel; sends are non-blocking.
type EngineEvent struct {
	kind EngineEventKind

	recordsCount int
	reason       string

	recordName domain.Name
	newIP      netip.Addr
	previousIP netip.Addr
	hasPrevIP  bool
	currentIP  netip.Addr

	errMessage string
	retryCount int
}

// Kind returns the discriminant.
func (e EngineEvent) Kind() EngineEventKind { return e.kind }

// RecordsCount is valid for EventStarted.
func (e EngineEvent) RecordsCount() int { return e.recordsCount }

// Reason is valid for EventStopped and EventUpdateSkipped.
func (e EngineEvent) Reason() string { return e.reason }

// RecordName is valid for every per-record event.
func (e EngineEvent) RecordName() domain.Name { return e.recordName }

// NewIP is valid for EventIpChangeDetected, EventUpdateStarted, and
// EventUpdateSucceeded.
func (e EngineEvent) NewIP() netip.Addr { return e.newIP }

// PreviousIP is valid for EventUpdateSucceeded, when present.
func (e EngineEvent) PreviousIP() netip.Addr { return e.previousIP }

// HasPreviousIP reports whether PreviousIP was populated.
func (e EngineEvent) HasPreviousIP() bool { return e.hasPrevIP }

// CurrentIP is valid for EventUpdateSkipped, whatever its reason.
func (e EngineEvent) CurrentIP() netip.Addr { return e.currentIP }

// ErrMessage is valid for EventUpdateFailed and EventStateError.
func (e EngineEvent) ErrMessage() string { return e.errMessage }

// RetryCount is valid for EventUpdateFailed.
func (e EngineEvent) RetryCount() int { return e.retryCount }

func StartedEvent(recordsCount int) EngineEvent {
	return EngineEvent{kind: EventStarted, recordsCount: recordsCount}
}

func StoppedEvent(reason string) EngineEvent {
	return EngineEvent{kind: EventStopped, reason: reason}
}

func IpChangeDetectedEvent(name domain.Name, newIP netip.Addr) EngineEvent {
	return EngineEvent{kind: EventIpChangeDetected, recordName: name, newIP: newIP}
}

func UpdateStartedEvent(name domain.Name, newIP netip.Addr) EngineEvent {
	return EngineEvent{kind: EventUpdateStarted, recordName: name, newIP: newIP}
}

func UpdateSucceededEvent(name domain.Name, newIP, previousIP netip.Addr, hasPrevIP bool) EngineEvent {
	return EngineEvent{
		kind:       EventUpdateSucceeded,
		recordName: name,
		newIP:      newIP,
		previousIP: previousIP,
		hasPrevIP:  hasPrevIP,
	}
}

func UpdateSkippedEvent(name domain.Name, currentIP netip.Addr, reason string) EngineEvent {
	return EngineEvent{kind: EventUpdateSkipped, recordName: name, currentIP: currentIP, reason: reason}
}

func UpdateFailedEvent(name domain.Name, errMessage string, retryCount int) EngineEvent {
	return EngineEvent{kind: EventUpdateFailed, recordName: name, errMessage: errMessage, retryCount: retryCount}
}

// StateErrorEvent reports a state-store read/write/flush failure. name is
// the zero domain.Name for a flush failure at shutdown, which is not
// scoped to one record.
func StateErrorEvent(name domain.Name, errMessage string) EngineEvent {
	return EngineEvent{kind: EventStateError, recordName: name, errMessage: errMessage}
}
