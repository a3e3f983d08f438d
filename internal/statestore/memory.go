// Package statestore implements the StateStore contract: an in-memory
// map and a file-backed store with the atomic write protocol from
// SPEC_FULL.md §4.4.
package statestore

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// Memory is the in-memory StateStore. Flush is a no-op; state does not
// survive process restart.
type Memory struct {
	mu      sync.Mutex
	records map[domain.Name]contracts.StateRecord
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[domain.Name]contracts.StateRecord)}
}

func (m *Memory) GetLastIP(_ context.Context, name domain.Name) (netip.Addr, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return netip.Addr{}, false, nil
	}
	return rec.LastIP, true, nil
}

func (m *Memory) GetRecord(_ context.Context, name domain.Name) (contracts.StateRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	return rec, ok, nil
}

func (m *Memory) SetLastIP(_ context.Context, name domain.Name, ip netip.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.records[name]
	m.records[name] = contracts.StateRecord{
		LastIP:           ip,
		LastUpdated:      time.Now().UTC(),
		ProviderMetadata: prev.ProviderMetadata,
	}
	return nil
}

func (m *Memory) SetRecord(_ context.Context, name domain.Name, record contracts.StateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = record
	return nil
}

func (m *Memory) DeleteRecord(_ context.Context, name domain.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, name)
	return nil
}

func (m *Memory) ListRecords(_ context.Context) ([]domain.Name, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]domain.Name, 0, len(m.records))
	for n := range m.records {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

func (m *Memory) Flush(_ context.Context) error { return nil }
