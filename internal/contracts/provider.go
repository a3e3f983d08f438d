package contracts

import (
	"context"
	"net/netip"

	"github.com/jsribeiro/ddnsd/internal/domain"
)

// DnsProvider performs a single logical attempt to converge one DNS
// record toward an IP address. Implementations are stateless between
// calls (except read-only configuration captured at construction), must
// not retry, back off, sleep, spawn goroutines, or touch the state store,
// and must have no knowledge of other providers.
type DnsProvider interface {
	// UpdateRecord makes exactly one logical attempt. If the provider
	// already holds newIP for name, it returns Unchanged without writing.
	UpdateRecord(ctx context.Context, name domain.Name, newIP netip.Addr) (UpdateResult, error)

	// GetRecord is used for observability and validation; not required on
	// the hot path.
	GetRecord(ctx context.Context, name domain.Name) (RecordMetadata, error)

	// SupportsRecord is a synchronous filter letting the provider decline
	// records outside its authority (e.g. wrong zone).
	SupportsRecord(name domain.Name) bool

	// ProviderName is a static string for logs and events.
	ProviderName() string
}
