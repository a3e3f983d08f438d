// Package ipsource implements the IpSource contract: a local-interface
// poller generalizing the teacher's getPublicIPv6, and an HTTP echo
// source for hosts behind NAT where no public address appears on any
// local interface.
package ipsource

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/ipaddr"
	"github.com/jsribeiro/ddnsd/internal/logging"
)

// InterfaceSource watches a named network interface for its globally
// routable address, polling at a fixed interval. This is the documented
// low-frequency fallback sweep the contract permits: true event-driven
// netlink subscription is platform-specific and out of scope (spec.md
// §1), so a bounded poll is the portable mechanism, generalized from the
// teacher's getPublicIPv6 to run continuously instead of once per
// invocation and to accept either address family.
type InterfaceSource struct {
	ifaceName string
	interval  time.Duration
	version   contracts.IpVersion
	log       logging.Logger
}

// NewInterfaceSource constructs a source polling ifaceName every
// interval. version filters which family Current/Watch consider.
func NewInterfaceSource(ifaceName string, interval time.Duration, version contracts.IpVersion, log logging.Logger) *InterfaceSource {
	if log == nil {
		log = logging.Nop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &InterfaceSource{ifaceName: ifaceName, interval: interval, version: version, log: log}
}

func (s *InterfaceSource) Version() contracts.IpVersion { return s.version }

func (s *InterfaceSource) Current(ctx context.Context) (netip.Addr, error) {
	return s.probe()
}

func (s *InterfaceSource) Watch(ctx context.Context) (<-chan contracts.IpChangeEvent, error) {
	out := make(chan contracts.IpChangeEvent)
	go s.run(ctx, out)
	return out, nil
}

func (s *InterfaceSource) run(ctx context.Context, out chan<- contracts.IpChangeEvent) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last netip.Addr
	emit := func() {
		current, err := s.probe()
		if err != nil {
			s.log.Warnw("interface ip probe failed", "interface", s.ifaceName, "error", err)
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

func (s *InterfaceSource) probe() (netip.Addr, error) {
	iface, err := net.InterfaceByName(s.ifaceName)
	if err != nil {
		return netip.Addr{}, ddnserr.Wrap(ddnserr.KindTransient, fmt.Sprintf("interface %s not found", s.ifaceName), err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, ddnserr.Wrap(ddnserr.KindTransient, fmt.Sprintf("reading addresses for %s", s.ifaceName), err)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !ipaddr.Valid(addr) {
			continue
		}
		switch s.version {
		case contracts.IpVersionV4:
			if !ipaddr.IsIPv4(addr) {
				continue
			}
		case contracts.IpVersionV6:
			if !ipaddr.IsIPv6(addr) {
				continue
			}
		}
		return addr, nil
	}

	return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("no usable address found on interface %s", s.ifaceName))
}
