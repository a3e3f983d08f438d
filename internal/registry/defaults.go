package registry

import (
	"context"
	"time"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/ipsource"
	"github.com/jsribeiro/ddnsd/internal/logging"
	"github.com/jsribeiro/ddnsd/internal/provider/cloudflare"
	"github.com/jsribeiro/ddnsd/internal/provider/noop"
	"github.com/jsribeiro/ddnsd/internal/statestore"
)

// RegisterDefaults populates r with every implementation this module
// ships: the "interface" and "http-echo" ip sources, the "cloudflare" and
// "noop" providers, and the "file" and "memory" state stores.
func RegisterDefaults(r *Registry, log logging.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	r.RegisterIpSource("interface", interfaceSourceFactory{log: log})
	r.RegisterIpSource("http-echo", httpEchoSourceFactory{log: log})

	r.RegisterProvider("cloudflare", cloudflareProviderFactory{log: log})
	r.RegisterProvider("noop", noopProviderFactory{})

	r.RegisterStateStore("file", fileStateStoreFactory{log: log})
	r.RegisterStateStore("memory", memoryStateStoreFactory{})
}

type interfaceSourceFactory struct{ log logging.Logger }

func (f interfaceSourceFactory) Create(_ context.Context, cfg contracts.IpSourceConfig) (contracts.IpSource, error) {
	if cfg.Interface == nil {
		return nil, ddnserr.New(ddnserr.KindConfig, "ip source kind \"interface\" requires an interface config block")
	}
	if cfg.Interface.InterfaceName == "" {
		return nil, ddnserr.New(ddnserr.KindConfig, "ip source kind \"interface\" requires interface_name")
	}
	interval := time.Duration(cfg.Interface.PollInterval) * time.Second
	return ipsource.NewInterfaceSource(cfg.Interface.InterfaceName, interval, contracts.IpVersionBoth, f.log), nil
}

type httpEchoSourceFactory struct{ log logging.Logger }

func (f httpEchoSourceFactory) Create(_ context.Context, cfg contracts.IpSourceConfig) (contracts.IpSource, error) {
	if cfg.HTTPEcho == nil {
		return nil, ddnserr.New(ddnserr.KindConfig, "ip source kind \"http-echo\" requires an http_echo config block")
	}
	interval := time.Duration(cfg.HTTPEcho.PollInterval) * time.Second
	return ipsource.NewHTTPEchoSource(cfg.HTTPEcho.URLv4, cfg.HTTPEcho.URLv6, interval, f.log)
}

type cloudflareProviderFactory struct{ log logging.Logger }

func (f cloudflareProviderFactory) Create(_ context.Context, cfg contracts.ProviderConfig) (contracts.DnsProvider, error) {
	if cfg.Cloudflare == nil {
		return nil, ddnserr.New(ddnserr.KindConfig, "dns provider kind \"cloudflare\" requires a cloudflare config block")
	}
	return cloudflare.New(cloudflare.Config{
		APIToken: cfg.Cloudflare.APIToken,
		ZoneID:   cfg.Cloudflare.ZoneID,
		ZoneName: cfg.Cloudflare.ZoneName,
		DryRun:   cfg.Cloudflare.DryRun,
		Log:      f.log,
	})
}

type noopProviderFactory struct{}

func (noopProviderFactory) Create(_ context.Context, cfg contracts.ProviderConfig) (contracts.DnsProvider, error) {
	authoritative := ""
	if cfg.Noop != nil {
		authoritative = cfg.Noop.Authoritative
	}
	return noop.New(authoritative), nil
}

type fileStateStoreFactory struct{ log logging.Logger }

func (f fileStateStoreFactory) Create(_ context.Context, cfg contracts.StateStoreConfig) (contracts.StateStore, error) {
	if cfg.File == nil || cfg.File.Path == "" {
		return nil, ddnserr.New(ddnserr.KindConfig, "state store kind \"file\" requires a path")
	}
	return statestore.OpenFile(cfg.File.Path, f.log)
}

type memoryStateStoreFactory struct{}

func (memoryStateStoreFactory) Create(_ context.Context, _ contracts.StateStoreConfig) (contracts.StateStore, error) {
	return statestore.NewMemory(), nil
}
