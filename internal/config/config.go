// Package config loads and validates daemon configuration, generalizing
// the teacher's loadConfig/validateConfig pair (originally a single
// struct decoded straight from YAML into one interface/CloudFlare
// record) into the full tagged-variant subsystem configuration the
// engine and registry need. The decode itself stays exactly as the
// teacher did it: os.ReadFile followed by yaml.Unmarshal. Locating which
// file to read (--config flag / DDNSD_CONFIG env var) is cmd/ddnsd's job,
// the same split cldmnky-oooi/cmd/root.go makes between flag binding and
// the subcommand that actually consumes the resolved path.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// EnvPrefix is the prefix recognized for the small set of operational
// fields that may be overridden by environment variable without editing
// the config file, e.g. DDNSD_CLOUDFLARE_API_TOKEN.
const EnvPrefix = "DDNSD"

// RawConfig is the on-disk shape, decoded with yaml.v3. Durations are
// plain strings (e.g. "30s", "5m") so the file stays human-editable, the
// same trade-off the teacher made by using plain integer seconds for
// poll_interval/stability_delay.
type RawConfig struct {
	Records []RawRecord `yaml:"records"`

	MaxRetries           int    `yaml:"max_retries"`
	RetryDelay           string `yaml:"retry_delay"`
	MinUpdateInterval    string `yaml:"min_update_interval"`
	EventChannelCapacity int    `yaml:"event_channel_capacity"`
	UpdateTimeout        string `yaml:"update_timeout"`

	IpSource   RawIpSource   `yaml:"ip_source"`
	Provider   RawProvider   `yaml:"provider"`
	StateStore RawStateStore `yaml:"state_store"`
}

type RawRecord struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

type RawIpSource struct {
	Kind      string             `yaml:"kind"`
	Interface RawInterfaceSource `yaml:"interface"`
	HTTPEcho  RawHTTPEchoSource  `yaml:"http_echo"`
}

type RawInterfaceSource struct {
	InterfaceName string `yaml:"interface_name"`
	PollInterval  int    `yaml:"poll_interval"`
}

type RawHTTPEchoSource struct {
	URLv4        string `yaml:"url_v4"`
	URLv6        string `yaml:"url_v6"`
	PollInterval int    `yaml:"poll_interval"`
}

type RawProvider struct {
	Kind       string          `yaml:"kind"`
	Cloudflare RawCloudflare   `yaml:"cloudflare"`
	Noop       RawNoopProvider `yaml:"noop"`
}

type RawCloudflare struct {
	APIToken string `yaml:"api_token"`
	ZoneID   string `yaml:"zone_id"`
	ZoneName string `yaml:"zone_name"`
	DryRun   bool   `yaml:"dry_run"`
}

type RawNoopProvider struct {
	Authoritative string `yaml:"authoritative"`
}

type RawStateStore struct {
	Kind   string         `yaml:"kind"`
	File   RawFileStore   `yaml:"file"`
	Memory RawMemoryStore `yaml:"memory"`
}

type RawFileStore struct {
	Path string `yaml:"path"`
}

type RawMemoryStore struct{}

// defaults mirrors the teacher's loadConfig default-filling, generalized
// to the new fields. Called after Load unmarshals, before Validate.
func (c *RawConfig) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "5s"
	}
	if c.MinUpdateInterval == "" {
		c.MinUpdateInterval = "5m"
	}
	if c.EventChannelCapacity == 0 {
		c.EventChannelCapacity = 64
	}
	if c.UpdateTimeout == "" {
		c.UpdateTimeout = "30s"
	}
	if c.IpSource.Kind == "" {
		c.IpSource.Kind = "interface"
	}
	if c.IpSource.Interface.PollInterval == 0 {
		c.IpSource.Interface.PollInterval = 30
	}
	if c.IpSource.HTTPEcho.PollInterval == 0 {
		c.IpSource.HTTPEcho.PollInterval = 300
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = "cloudflare"
	}
	if c.StateStore.Kind == "" {
		c.StateStore.Kind = "file"
	}
	for i := range c.Records {
		if c.Records[i].Enabled == nil {
			enabled := true
			c.Records[i].Enabled = &enabled
		}
	}
}

// Load reads and decodes the YAML file at path, the same two steps as
// the teacher's loadConfig: os.ReadFile then yaml.Unmarshal. It then
// applies a handful of environment-variable overrides, fills defaults,
// and validates the result.
func Load(path string) (*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ddnserr.Wrap(ddnserr.KindConfig, "reading config file", err)
	}

	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ddnserr.Wrap(ddnserr.KindConfig, "decoding config", err)
	}

	raw.applyEnvOverrides()
	raw.applyDefaults()

	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return &raw, nil
}

// applyEnvOverrides lets a handful of operational/secret fields be
// supplied out-of-band, so the Cloudflare token in particular never has
// to be committed alongside the rest of the config file.
func (c *RawConfig) applyEnvOverrides() {
	if v, ok := os.LookupEnv(EnvPrefix + "_CLOUDFLARE_API_TOKEN"); ok {
		c.Provider.Cloudflare.APIToken = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "_CLOUDFLARE_ZONE_ID"); ok {
		c.Provider.Cloudflare.ZoneID = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "_STATE_FILE"); ok {
		c.StateStore.File.Path = v
	}
}

// Validate generalizes the teacher's validateConfig: required fields per
// selected kind, plus the bounds spec.md §4.6 places on MaxRetries.
func (c *RawConfig) Validate() error {
	if len(c.Records) == 0 {
		return ddnserr.New(ddnserr.KindConfig, "at least one record is required")
	}
	for _, r := range c.Records {
		if _, err := domain.Parse(r.Name); err != nil {
			return ddnserr.Wrap(ddnserr.KindConfig, fmt.Sprintf("record %q", r.Name), err)
		}
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return ddnserr.New(ddnserr.KindConfig, "max_retries must be between 0 and 10")
	}
	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return ddnserr.Wrap(ddnserr.KindConfig, "retry_delay", err)
	}
	if _, err := time.ParseDuration(c.MinUpdateInterval); err != nil {
		return ddnserr.Wrap(ddnserr.KindConfig, "min_update_interval", err)
	}
	if _, err := time.ParseDuration(c.UpdateTimeout); err != nil {
		return ddnserr.Wrap(ddnserr.KindConfig, "update_timeout", err)
	}
	if c.EventChannelCapacity < 0 {
		return ddnserr.New(ddnserr.KindConfig, "event_channel_capacity must be >= 0")
	}

	switch c.Provider.Kind {
	case "cloudflare":
		if c.Provider.Cloudflare.APIToken == "" {
			return ddnserr.New(ddnserr.KindConfig, "provider.cloudflare.api_token is required")
		}
	case "noop":
	default:
		return ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("unknown provider kind %q", c.Provider.Kind))
	}

	switch c.IpSource.Kind {
	case "interface":
		if c.IpSource.Interface.InterfaceName == "" {
			return ddnserr.New(ddnserr.KindConfig, "ip_source.interface.interface_name is required")
		}
	case "http-echo":
		if c.IpSource.HTTPEcho.URLv4 == "" && c.IpSource.HTTPEcho.URLv6 == "" {
			return ddnserr.New(ddnserr.KindConfig, "ip_source.http_echo requires url_v4 and/or url_v6")
		}
	default:
		return ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("unknown ip_source kind %q", c.IpSource.Kind))
	}

	switch c.StateStore.Kind {
	case "file":
		if c.StateStore.File.Path == "" {
			return ddnserr.New(ddnserr.KindConfig, "state_store.file.path is required")
		}
	case "memory":
	default:
		return ddnserr.New(ddnserr.KindConfig, fmt.Sprintf("unknown state_store kind %q", c.StateStore.Kind))
	}

	return nil
}

// EngineConfig converts the validated raw config into contracts.EngineConfig.
func (c *RawConfig) EngineConfig() (contracts.EngineConfig, error) {
	retryDelay, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return contracts.EngineConfig{}, err
	}
	minInterval, err := time.ParseDuration(c.MinUpdateInterval)
	if err != nil {
		return contracts.EngineConfig{}, err
	}
	updateTimeout, err := time.ParseDuration(c.UpdateTimeout)
	if err != nil {
		return contracts.EngineConfig{}, err
	}

	records := make([]contracts.RecordConfig, 0, len(c.Records))
	for _, r := range c.Records {
		name, err := domain.Parse(r.Name)
		if err != nil {
			return contracts.EngineConfig{}, err
		}
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		records = append(records, contracts.RecordConfig{Name: name, Enabled: enabled})
	}

	return contracts.EngineConfig{
		Records:              records,
		MaxRetries:           c.MaxRetries,
		RetryDelay:           retryDelay,
		MinUpdateInterval:    minInterval,
		EventChannelCapacity: c.EventChannelCapacity,
		UpdateTimeout:        updateTimeout,
	}, nil
}

// IpSourceConfig converts the raw ip_source block into its tagged
// contracts.IpSourceConfig variant.
func (c *RawConfig) IpSourceConfig() contracts.IpSourceConfig {
	switch c.IpSource.Kind {
	case "http-echo":
		return contracts.IpSourceConfig{
			Kind: "http-echo",
			HTTPEcho: &contracts.HTTPEchoSourceConfig{
				URLv4:        c.IpSource.HTTPEcho.URLv4,
				URLv6:        c.IpSource.HTTPEcho.URLv6,
				PollInterval: contracts.DurationSeconds(c.IpSource.HTTPEcho.PollInterval),
			},
		}
	default:
		return contracts.IpSourceConfig{
			Kind: "interface",
			Interface: &contracts.InterfaceSourceConfig{
				InterfaceName: c.IpSource.Interface.InterfaceName,
				PollInterval:  contracts.DurationSeconds(c.IpSource.Interface.PollInterval),
			},
		}
	}
}

// ProviderConfig converts the raw provider block into its tagged
// contracts.ProviderConfig variant.
func (c *RawConfig) ProviderConfig() contracts.ProviderConfig {
	switch c.Provider.Kind {
	case "noop":
		return contracts.ProviderConfig{
			Kind: "noop",
			Noop: &contracts.NoopProviderConfig{Authoritative: c.Provider.Noop.Authoritative},
		}
	default:
		return contracts.ProviderConfig{
			Kind: "cloudflare",
			Cloudflare: &contracts.CloudflareProviderConfig{
				APIToken: c.Provider.Cloudflare.APIToken,
				ZoneID:   c.Provider.Cloudflare.ZoneID,
				ZoneName: c.Provider.Cloudflare.ZoneName,
				DryRun:   c.Provider.Cloudflare.DryRun,
			},
		}
	}
}

// StateStoreConfig converts the raw state_store block into its tagged
// contracts.StateStoreConfig variant.
func (c *RawConfig) StateStoreConfig() contracts.StateStoreConfig {
	switch c.StateStore.Kind {
	case "memory":
		return contracts.StateStoreConfig{Kind: "memory", Memory: &contracts.MemoryStateStoreConfig{}}
	default:
		return contracts.StateStoreConfig{
			Kind: "file",
			File: &contracts.FileStateStoreConfig{Path: c.StateStore.File.Path},
		}
	}
}
