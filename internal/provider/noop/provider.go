// Package noop implements a DnsProvider that performs no network I/O. It
// exists so the registry has more than one factory per kind to dispatch
// between (see DESIGN.md), and as a safe default for local testing of the
// engine/state-store wiring without a real Cloudflare account.
package noop

import (
	"context"
	"net/netip"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// Provider always reports success: Created on first sight of a name,
// Unchanged when the IP repeats, and Updated when it differs from the
// last one seen, tracked purely in memory — so
// repeated calls with the same (name, ip) behave like a real provider
// would for the "idempotent update" law in SPEC_FULL.md §8.
type Provider struct {
	authoritative string
	seen          map[domain.Name]netip.Addr
}

// New constructs a Provider. authoritative, when non-empty, restricts
// SupportsRecord to names whose apex matches it.
func New(authoritative string) *Provider {
	return &Provider{authoritative: authoritative, seen: make(map[domain.Name]netip.Addr)}
}

func (p *Provider) ProviderName() string { return "noop" }

func (p *Provider) SupportsRecord(name domain.Name) bool {
	if p.authoritative == "" {
		return true
	}
	return string(name.Apex()) == p.authoritative
}

func (p *Provider) UpdateRecord(_ context.Context, name domain.Name, newIP netip.Addr) (contracts.UpdateResult, error) {
	prev, ok := p.seen[name]
	p.seen[name] = newIP
	if ok && prev == newIP {
		return contracts.Unchanged(name, newIP), nil
	}
	if !ok {
		return contracts.Created(name, newIP, nil), nil
	}
	return contracts.Updated(name, newIP, prev, nil), nil
}

func (p *Provider) GetRecord(_ context.Context, name domain.Name) (contracts.RecordMetadata, error) {
	ip, ok := p.seen[name]
	if !ok {
		return contracts.RecordMetadata{}, ddnserr.New(ddnserr.KindNotFound, "record not seen by noop provider")
	}
	return contracts.RecordMetadata{RecordName: name, CurrentIP: ip}, nil
}
