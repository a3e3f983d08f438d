package contracts

import (
	"context"
	"net/netip"
)

// IpSource observes the host's externally visible IP address. It must do
// no state-store access, no provider calls, no retry loops, and must not
// poll with fixed sleeps as its primary mechanism — event-driven
// observation is required, with a documented low-frequency fallback sweep
// permitted (see internal/ipsource.InterfaceSource). Spawning is
// permitted only for a single observer goroutine whose shutdown is tied
// to the context passed to Watch.
type IpSource interface {
	// Current returns a single snapshot. Callers (only the engine, once at
	// startup) impose their own deadline via ctx.
	Current(ctx context.Context) (netip.Addr, error)

	// Watch returns a channel of IpChangeEvent. Cancelling ctx must stop
	// observation and close the channel within 1 second. The channel may
	// close without ctx being cancelled exactly once, to signal
	// unrecoverable failure; the engine treats this as a request to begin
	// graceful shutdown.
	Watch(ctx context.Context) (<-chan IpChangeEvent, error)

	// Version is an advisory filter describing what address families this
	// source can produce.
	Version() IpVersion
}
