// Package registry wires the contracts.*Factory interfaces to concrete
// implementations, keyed by a string Kind — the same "pick an
// implementation by config string" pattern the teacher's config.go uses
// for provider selection, generalized here to all three subsystem
// boundaries (IpSource, DnsProvider, StateStore).
package registry

import (
	"context"
	"fmt"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
)

// Registry dispatches tagged configuration to the factory registered for
// its Kind. Construct one with New; the zero value has nil tables, so its
// Register methods panic.
type Registry struct {
	ipSources   map[string]contracts.IpSourceFactory
	providers   map[string]contracts.DnsProviderFactory
	stateStores map[string]contracts.StateStoreFactory
}

// New returns an empty Registry. Use RegisterDefaults to populate it with
// the implementations this module ships.
func New() *Registry {
	return &Registry{
		ipSources:   make(map[string]contracts.IpSourceFactory),
		providers:   make(map[string]contracts.DnsProviderFactory),
		stateStores: make(map[string]contracts.StateStoreFactory),
	}
}

func (r *Registry) RegisterIpSource(kind string, f contracts.IpSourceFactory) {
	r.ipSources[kind] = f
}

func (r *Registry) RegisterProvider(kind string, f contracts.DnsProviderFactory) {
	r.providers[kind] = f
}

func (r *Registry) RegisterStateStore(kind string, f contracts.StateStoreFactory) {
	r.stateStores[kind] = f
}

func (r *Registry) CreateIpSource(ctx context.Context, cfg contracts.IpSourceConfig) (contracts.IpSource, error) {
	f, ok := r.ipSources[cfg.Kind]
	if !ok {
		return nil, ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("no ip source registered for kind %q", cfg.Kind))
	}
	return f.Create(ctx, cfg)
}

func (r *Registry) CreateProvider(ctx context.Context, cfg contracts.ProviderConfig) (contracts.DnsProvider, error) {
	f, ok := r.providers[cfg.Kind]
	if !ok {
		return nil, ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("no dns provider registered for kind %q", cfg.Kind))
	}
	return f.Create(ctx, cfg)
}

func (r *Registry) CreateStateStore(ctx context.Context, cfg contracts.StateStoreConfig) (contracts.StateStore, error) {
	f, ok := r.stateStores[cfg.Kind]
	if !ok {
		return nil, ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("no state store registered for kind %q", cfg.Kind))
	}
	return f.Create(ctx, cfg)
}
