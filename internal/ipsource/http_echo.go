package ipsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/ipaddr"
	"github.com/jsribeiro/ddnsd/internal/logging"
)

// HTTPEchoSource polls one or two "what is my IP" echo endpoints —
// ipify-style services that respond with the caller's address as plain
// text. It is the source of last resort for hosts behind NAT, where no
// local interface ever carries the public address InterfaceSource looks
// for (SPEC_FULL.md §4.2).
type HTTPEchoSource struct {
	urlV4    string
	urlV6    string
	interval time.Duration
	client   *http.Client
	log      logging.Logger
}

// NewHTTPEchoSource constructs a source polling urlV4 and/or urlV6. At
// least one must be non-empty. Either endpoint is optional so a
// dual-stack host can run two sources, one per family.
func NewHTTPEchoSource(urlV4, urlV6 string, interval time.Duration, log logging.Logger) (*HTTPEchoSource, error) {
	if urlV4 == "" && urlV6 == "" {
		return nil, ddnserr.New(ddnserr.KindConfig, "http-echo source requires at least one of urlV4/urlV6")
	}
	if log == nil {
		log = logging.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HTTPEchoSource{
		urlV4:    urlV4,
		urlV6:    urlV6,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}, nil
}

func (s *HTTPEchoSource) Version() contracts.IpVersion {
	switch {
	case s.urlV4 != "" && s.urlV6 != "":
		return contracts.IpVersionBoth
	case s.urlV4 != "":
		return contracts.IpVersionV4
	default:
		return contracts.IpVersionV6
	}
}

func (s *HTTPEchoSource) Current(ctx context.Context) (netip.Addr, error) {
	return s.probe(ctx)
}

func (s *HTTPEchoSource) Watch(ctx context.Context) (<-chan contracts.IpChangeEvent, error) {
	out := make(chan contracts.IpChangeEvent)
	go s.run(ctx, out)
	return out, nil
}

func (s *HTTPEchoSource) run(ctx context.Context, out chan<- contracts.IpChangeEvent) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last netip.Addr
	emit := func() {
		current, err := s.probe(ctx)
		if err != nil {
			s.log.Warnw("http echo probe failed", "error", err)
			return
		}
		if last.IsValid() && current == last {
			return
		}
		event := contracts.IpChangeEvent{NewIP: current, ObservedAt: time.Now().UTC()}
		if last.IsValid() {
			event.PreviousIP = last
		}
		last = current
		select {
		case out <- event:
		case <-ctx.Done():
		}
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit()
		}
	}
}

// probe tries the IPv6 endpoint first when both are configured, since a
// dual-stack host that has a working v6 echo almost always wants the v6
// address registered; a v4-only config still works unchanged.
func (s *HTTPEchoSource) probe(ctx context.Context) (netip.Addr, error) {
	if s.urlV6 != "" {
		if addr, err := s.fetch(ctx, s.urlV6); err == nil {
			return addr, nil
		}
	}
	if s.urlV4 != "" {
		return s.fetch(ctx, s.urlV4)
	}
	return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, "http echo: no endpoint responded")
}

func (s *HTTPEchoSource) fetch(ctx context.Context, endpoint string) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return netip.Addr{}, ddnserr.Wrap(ddnserr.KindInternal, "build http echo request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return netip.Addr{}, ddnserr.Wrap(ddnserr.KindTransient, fmt.Sprintf("http echo request to %s failed", endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("http echo %s returned status %d", endpoint, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return netip.Addr{}, ddnserr.Wrap(ddnserr.KindTransient, "read http echo response", err)
	}

	raw := strings.TrimSpace(string(body))
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("http echo %s returned unparsable address %q", endpoint, raw))
	}
	addr = addr.Unmap()
	if !ipaddr.Valid(addr) {
		return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("http echo %s returned unusable address %s", endpoint, addr))
	}
	return addr, nil
}
