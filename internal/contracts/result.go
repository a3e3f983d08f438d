package contracts

import (
	"net/netip"

	"github.com/jsribeiro/ddnsd/internal/domain"
)

// UpdateResultKind discriminates the UpdateResult sum type.
type UpdateResultKind int

const (
	ResultUpdated UpdateResultKind = iota
	ResultUnchanged
	ResultCreated
)

// UpdateResult is the tagged variant a DnsProvider returns from
// UpdateRecord. Go has no native sum type, so this is a struct carrying
// every field any variant might need plus a discriminant; use the
// constructors below rather than building one by hand, and the accessor
// methods rather than reading fields directly, so a future added variant
// cannot silently be read with the wrong accessor.
type UpdateResult struct {
	kind             UpdateResultKind
	recordName       domain.Name
	newIP            netip.Addr
	previousIP       netip.Addr
	currentIP        netip.Addr
	providerMetadata map[string]string
}

// Kind returns the discriminant.
func (r UpdateResult) Kind() UpdateResultKind { return r.kind }

// RecordName is valid for every variant.
func (r UpdateResult) RecordName() domain.Name { return r.recordName }

// NewIP is valid for ResultUpdated and ResultCreated.
func (r UpdateResult) NewIP() netip.Addr { return r.newIP }

// PreviousIP is valid (and may be the zero value) for ResultUpdated.
func (r UpdateResult) PreviousIP() netip.Addr { return r.previousIP }

// HasPreviousIP reports whether PreviousIP was populated.
func (r UpdateResult) HasPreviousIP() bool { return r.previousIP.IsValid() }

// CurrentIP is valid for ResultUnchanged.
func (r UpdateResult) CurrentIP() netip.Addr { return r.currentIP }

// ProviderMetadata is valid for ResultUpdated and ResultCreated.
func (r UpdateResult) ProviderMetadata() map[string]string { return r.providerMetadata }

// Updated builds the ResultUpdated variant.
func Updated(name domain.Name, newIP, previousIP netip.Addr, metadata map[string]string) UpdateResult {
	return UpdateResult{
		kind:             ResultUpdated,
		recordName:       name,
		newIP:            newIP,
		previousIP:       previousIP,
		providerMetadata: metadata,
	}
}

// Unchanged builds the ResultUnchanged variant: the provider confirmed the
// record already holds the desired value.
func Unchanged(name domain.Name, currentIP netip.Addr) UpdateResult {
	return UpdateResult{
		kind:       ResultUnchanged,
		recordName: name,
		currentIP:  currentIP,
	}
}

// Created builds the ResultCreated variant: the record did not exist
// before this call.
func Created(name domain.Name, newIP netip.Addr, metadata map[string]string) UpdateResult {
	return UpdateResult{
		kind:             ResultCreated,
		recordName:       name,
		newIP:            newIP,
		providerMetadata: metadata,
	}
}
