package contracts

import (
	"context"
	"net/netip"

	"github.com/jsribeiro/ddnsd/internal/domain"
)

// StateStore is the sole durable record of what the engine last
// confirmed with the provider. The engine is the only caller; it is
// single-writer by construction, so implementations need only guard
// against the trivial concurrency of sequential calls.
type StateStore interface {
	GetLastIP(ctx context.Context, name domain.Name) (netip.Addr, bool, error)
	GetRecord(ctx context.Context, name domain.Name) (StateRecord, bool, error)

	// SetLastIP is a convenience equivalent to SetRecord with
	// LastUpdated = now and the prior ProviderMetadata preserved.
	SetLastIP(ctx context.Context, name domain.Name, ip netip.Addr) error

	SetRecord(ctx context.Context, name domain.Name, record StateRecord) error
	DeleteRecord(ctx context.Context, name domain.Name) error

	// ListRecords returns record names in a stable, deterministic order.
	ListRecords(ctx context.Context) ([]domain.Name, error)

	// Flush persists all pending writes to durable storage. Mandatory
	// before shutdown; a no-op for the in-memory implementation.
	Flush(ctx context.Context) error
}
