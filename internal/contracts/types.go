// Package contracts defines the polymorphic subsystem boundaries the
// engine depends on — IpSource, DnsProvider, StateStore — and the plain
// data types that flow across them. Nothing in this package performs I/O;
// it is the shared vocabulary concrete implementations and the engine
// both compile against.
package contracts

import (
	"net/netip"
	"time"

	"github.com/jsribeiro/ddnsd/internal/domain"
)

// IpChangeEvent is produced by an IpSource. PreviousIP is advisory and may
// be the zero netip.Addr when the source does not track history.
type IpChangeEvent struct {
	NewIP      netip.Addr
	PreviousIP netip.Addr
	ObservedAt time.Time
}

// HasPreviousIP reports whether PreviousIP was populated by the source.
func (e IpChangeEvent) HasPreviousIP() bool {
	return e.PreviousIP.IsValid()
}

// RecordConfig is one managed DNS record.
type RecordConfig struct {
	Name    domain.Name
	Enabled bool
}

// EngineConfig is the validated configuration the engine is constructed
// with. The caller (cmd/ddnsd) is responsible for producing a valid value;
// the engine performs no further validation of these fields.
type EngineConfig struct {
	// Records is the ordered set of managed records; update order follows
	// this order.
	Records []RecordConfig

	// MaxRetries is 0-10: retry attempts after an initial attempt on
	// transient failure.
	MaxRetries int

	// RetryDelay is the base backoff; attempt k waits RetryDelay*2^(k-1).
	RetryDelay time.Duration

	// MinUpdateInterval is the minimum time between accepted updates per
	// record.
	MinUpdateInterval time.Duration

	// EventChannelCapacity is the bounded capacity of the outbound event
	// channel.
	EventChannelCapacity int

	// UpdateTimeout is the wall-clock timeout per provider invocation.
	UpdateTimeout time.Duration
}

// StateRecord is the durable record of the last confirmed update for one
// managed name.
type StateRecord struct {
	LastIP           netip.Addr
	LastUpdated      time.Time
	ProviderMetadata map[string]string
}

// PersistedState is the top-level document a StateStore reads and writes.
type PersistedState struct {
	Version string
	Records map[domain.Name]StateRecord
}

// RecordMetadata is what a DnsProvider reports for get_record: read from
// the provider, used for observability and validation, not the hot path.
type RecordMetadata struct {
	RecordName domain.Name
	CurrentIP  netip.Addr
	TTL        *int
	ProviderID *string
}

// IpVersion is an advisory filter a source exposes about what address
// families it can produce.
type IpVersion int

const (
	IpVersionUnknown IpVersion = iota
	IpVersionV4
	IpVersionV6
	IpVersionBoth
)
