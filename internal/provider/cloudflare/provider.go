// Package cloudflare implements the DnsProvider contract against the
// Cloudflare v4 HTTP DNS API, adapted from the teacher's
// fetchRecordID/updateDNS logic and generalized to zone auto-discovery,
// both address families, and dry-run.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
	"github.com/jsribeiro/ddnsd/internal/ipaddr"
	"github.com/jsribeiro/ddnsd/internal/logging"
)

// Config is the validated construction-time configuration for Provider.
type Config struct {
	APIToken string
	// ZoneID, when set, skips zone auto-discovery.
	ZoneID string
	// ZoneName, when set, is used for discovery/apex instead of deriving
	// the apex from each record name. Optional.
	ZoneName string
	DryRun   bool
	Log      logging.Logger
}

// Provider is the reference DnsProvider implementation.
type Provider struct {
	client   *client
	zoneID   string
	zoneName string
	dryRun   bool
	log      logging.Logger
}

// New validates cfg and constructs a Provider. An empty token is a
// KindConfig error, per SPEC_FULL.md §4.3.
func New(cfg Config) (*Provider, error) {
	if cfg.APIToken == "" {
		return nil, ddnserr.New(ddnserr.KindConfig, "cloudflare: api token is required")
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Provider{
		client:   newClient(apiToken(cfg.APIToken), cfg.DryRun),
		zoneID:   cfg.ZoneID,
		zoneName: cfg.ZoneName,
		dryRun:   cfg.DryRun,
		log:      log,
	}, nil
}

func (p *Provider) ProviderName() string { return "cloudflare" }

// SupportsRecord declines names outside the configured zone, when a zone
// name was configured. With no configured zone name, every syntactically
// valid name is accepted and zone discovery happens per call.
func (p *Provider) SupportsRecord(name domain.Name) bool {
	if p.zoneName == "" {
		return true
	}
	return string(name.Apex()) == p.zoneName || string(name) == p.zoneName
}

func (p *Provider) GetRecord(ctx context.Context, name domain.Name) (contracts.RecordMetadata, error) {
	zoneID, err := p.resolveZone(ctx, name)
	if err != nil {
		return contracts.RecordMetadata{}, err
	}
	// GetRecord has no target IP, so probe both record types and return
	// whichever exists; A is checked first.
	for _, rt := range []string{"A", "AAAA"} {
		rec, found, err := p.lookupRecord(ctx, zoneID, rt, string(name))
		if err != nil {
			return contracts.RecordMetadata{}, err
		}
		if found {
			addr, err := netip.ParseAddr(rec.Content)
			if err != nil {
				return contracts.RecordMetadata{}, ddnserr.Wrap(ddnserr.KindTransient, "cloudflare returned an unparsable record content", err)
			}
			ttl := rec.TTL
			id := rec.ID
			return contracts.RecordMetadata{
				RecordName: name,
				CurrentIP:  addr,
				TTL:        &ttl,
				ProviderID: &id,
			}, nil
		}
	}
	return contracts.RecordMetadata{}, ddnserr.New(ddnserr.KindNotFound, fmt.Sprintf("record %s not found", name))
}

// UpdateRecord implements the algorithm from SPEC_FULL.md §4.3 steps 1-5.
func (p *Provider) UpdateRecord(ctx context.Context, name domain.Name, newIP netip.Addr) (contracts.UpdateResult, error) {
	zoneID, err := p.resolveZone(ctx, name)
	if err != nil {
		return contracts.UpdateResult{}, err
	}

	recordType := recordTypeFor(newIP)
	existing, found, err := p.lookupRecord(ctx, zoneID, recordType, string(name))
	if err != nil {
		return contracts.UpdateResult{}, err
	}

	if found {
		existingIP, err := netip.ParseAddr(existing.Content)
		if err == nil && existingIP == newIP {
			return contracts.Unchanged(name, newIP), nil
		}
	}

	if p.dryRun {
		p.log.Infow("dry-run: would write cloudflare record", "record", string(name), "new_ip", newIP.String(), "existed", found)
	}

	if found {
		updated, err := p.updateExisting(ctx, zoneID, existing.ID, recordType, string(name), newIP)
		if err != nil {
			return contracts.UpdateResult{}, err
		}
		previous, _ := netip.ParseAddr(existing.Content)
		return contracts.Updated(name, newIP, previous, map[string]string{"record_id": updated.ID}), nil
	}

	created, err := p.createRecord(ctx, zoneID, recordType, string(name), newIP)
	if err != nil {
		return contracts.UpdateResult{}, err
	}
	if p.dryRun {
		return contracts.Updated(name, newIP, netip.Addr{}, nil), nil
	}
	return contracts.Created(name, newIP, map[string]string{"record_id": created.ID}), nil
}

func recordTypeFor(addr netip.Addr) string {
	if ipaddr.IsIPv4(addr) {
		return "A"
	}
	return "AAAA"
}

// resolveZone implements zone resolution: a configured zone id wins, else
// list zones filtered by apex. The resolution is cached for the duration
// of this call only, per SPEC_FULL.md §4.3 — concretely, it is simply
// never cached across calls, since Provider holds no mutable state.
func (p *Provider) resolveZone(ctx context.Context, name domain.Name) (string, error) {
	if p.zoneID != "" {
		return p.zoneID, nil
	}

	apex := name.Apex()
	if p.zoneName != "" {
		apex = domain.Name(p.zoneName)
	}

	u := fmt.Sprintf("%s/zones?name=%s", p.client.baseURL, url.QueryEscape(string(apex)))
	body, _, err := p.client.do(ctx, http.MethodGet, u, nil, false)
	if err != nil {
		return "", err
	}
	env, err := decodeEnvelope[[]zone](body)
	if err != nil {
		return "", err
	}
	if len(env.Result) == 0 {
		return "", ddnserr.New(ddnserr.KindNotFound, fmt.Sprintf("no cloudflare zone found for %s", apex))
	}
	return env.Result[0].ID, nil
}

func (p *Provider) lookupRecord(ctx context.Context, zoneID, recordType, name string) (dnsRecord, bool, error) {
	u := fmt.Sprintf("%s/zones/%s/dns_records?type=%s&name=%s", p.client.baseURL, zoneID, recordType, url.QueryEscape(name))
	body, _, err := p.client.do(ctx, http.MethodGet, u, nil, false)
	if err != nil {
		return dnsRecord{}, false, err
	}
	env, err := decodeEnvelope[[]dnsRecord](body)
	if err != nil {
		return dnsRecord{}, false, err
	}
	if len(env.Result) == 0 {
		return dnsRecord{}, false, nil
	}
	return env.Result[0], true, nil
}

func (p *Provider) createRecord(ctx context.Context, zoneID, recordType, name string, ip netip.Addr) (dnsRecord, error) {
	u := fmt.Sprintf("%s/zones/%s/dns_records", p.client.baseURL, zoneID)
	payload := map[string]any{
		"type":    recordType,
		"name":    name,
		"content": ip.String(),
		"ttl":     1,
	}
	body, _, err := p.client.do(ctx, http.MethodPost, u, payload, true)
	if err != nil {
		if errors.Is(err, errDryRun) {
			return dnsRecord{}, nil
		}
		return dnsRecord{}, err
	}
	env, err := decodeEnvelope[dnsRecord](body)
	if err != nil {
		return dnsRecord{}, err
	}
	return env.Result, nil
}

func (p *Provider) updateExisting(ctx context.Context, zoneID, recordID, recordType, name string, ip netip.Addr) (dnsRecord, error) {
	u := fmt.Sprintf("%s/zones/%s/dns_records/%s", p.client.baseURL, zoneID, recordID)
	payload := map[string]any{
		"type":    recordType,
		"name":    name,
		"content": ip.String(),
		"ttl":     1,
	}
	body, _, err := p.client.do(ctx, http.MethodPut, u, payload, true)
	if err != nil {
		if errors.Is(err, errDryRun) {
			return dnsRecord{ID: recordID}, nil
		}
		return dnsRecord{}, err
	}
	env, err := decodeEnvelope[dnsRecord](body)
	if err != nil {
		return dnsRecord{}, err
	}
	return env.Result, nil
}
