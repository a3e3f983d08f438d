// Package engine implements the daemon's core loop: a single goroutine
// that consumes IP-change events, converges configured records through a
// DnsProvider, and persists outcomes to a StateStore. The teacher's
// main.go ran this sequence inline against one hard-coded record; here it
// is generalized to a configured record list and one of several
// pluggable sources/providers/stores, but the shape — observe, check,
// write, log — is unchanged.
package engine

import (
	"context"
	"math"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
	"github.com/jsribeiro/ddnsd/internal/ipaddr"
	"github.com/jsribeiro/ddnsd/internal/logging"
)

const (
	startupIpDeadline   = 5 * time.Second
	shutdownFlushDeadline = 5 * time.Second
)

// Engine holds the three subsystem instances exclusively and drives the
// event loop described in SPEC_FULL.md §4.6.
type Engine struct {
	provider contracts.DnsProvider
	source   contracts.IpSource
	state    contracts.StateStore
	config   contracts.EngineConfig
	log      logging.Logger

	events chan contracts.EngineEvent

	// lastAccepted tracks, in memory, the most recent accepted-update
	// timestamp per record, reloaded at New() from the state store per
	// the Open Question decision recorded in DESIGN.md.
	lastAccepted map[domain.Name]time.Time
}

// New constructs an Engine. It performs exactly one piece of I/O —
// reloading per-record last-update timestamps from state — everything
// else is pure, matching spec.md §4.6's "construction is pure" note as
// closely as Go allows given the reload requirement.
func New(ctx context.Context, provider contracts.DnsProvider, source contracts.IpSource, state contracts.StateStore, cfg contracts.EngineConfig, log logging.Logger) (*Engine, <-chan contracts.EngineEvent, error) {
	if log == nil {
		log = logging.Nop()
	}

	lastAccepted := make(map[domain.Name]time.Time, len(cfg.Records))
	for _, rec := range cfg.Records {
		stateRec, ok, err := state.GetRecord(ctx, rec.Name)
		if err != nil {
			log.Warnw("failed to reload last-update timestamp from state", "record", string(rec.Name), "error", err)
			continue
		}
		if ok {
			lastAccepted[rec.Name] = stateRec.LastUpdated
		}
	}

	events := make(chan contracts.EngineEvent, cfg.EventChannelCapacity)

	e := &Engine{
		provider:     provider,
		source:       source,
		state:        state,
		config:       cfg,
		log:          log,
		events:       events,
		lastAccepted: lastAccepted,
	}
	return e, events, nil
}

func (e *Engine) emit(ev contracts.EngineEvent) {
	select {
	case e.events <- ev:
	default:
		e.log.Warnw("engine event channel full; event dropped", "kind", ev.Kind().String())
	}
}

// Run executes the startup sequence, event loop, and shutdown. It
// returns once the IP source's stream terminates or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.emit(contracts.StartedEvent(len(e.config.Records)))

	e.runStartupProbe(ctx)

	stream, err := e.source.Watch(ctx)
	if err != nil {
		e.log.Errorw("ip source watch failed at startup", "error", err)
		e.emit(contracts.StoppedEvent("ip source unavailable"))
		return err
	}

	stopReason := e.eventLoop(ctx, stream)

	shutdownErr := e.shutdown(stopReason)
	e.emit(contracts.StoppedEvent(stopReason))
	close(e.events)
	return shutdownErr
}

func (e *Engine) runStartupProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, startupIpDeadline)
	defer cancel()

	addr, err := e.source.Current(probeCtx)
	if err != nil {
		e.log.Infow("startup ip probe failed; waiting for stream", "error", err)
		return
	}
	if !ipaddr.Valid(addr) {
		e.log.Warnw("startup ip probe returned an unusable address", "ip", addr.String())
		return
	}
	e.processIpEvent(ctx, contracts.IpChangeEvent{NewIP: addr, ObservedAt: time.Now().UTC()})
}

// eventLoop is the cooperative select over the IP stream and ctx
// cancellation. It returns the reason the loop stopped.
func (e *Engine) eventLoop(ctx context.Context, stream <-chan contracts.IpChangeEvent) string {
	for {
		select {
		case <-ctx.Done():
			return "shutdown requested"
		case ev, ok := <-stream:
			if !ok {
				return "ip source terminated"
			}
			e.processIpEvent(ctx, ev)
		}
	}
}

func (e *Engine) processIpEvent(ctx context.Context, ev contracts.IpChangeEvent) {
	if !ipaddr.Valid(ev.NewIP) {
		e.log.Warnw("discarding ip event with invalid address", "ip", ev.NewIP.String())
		return
	}

	for _, rec := range e.config.Records {
		e.emit(contracts.IpChangeDetectedEvent(rec.Name, ev.NewIP))
	}
	for _, rec := range e.config.Records {
		e.handleRecord(ctx, rec, ev.NewIP)
	}
}

func (e *Engine) handleRecord(ctx context.Context, rec contracts.RecordConfig, newIP netip.Addr) {
	if !rec.Enabled {
		return
	}
	if !e.provider.SupportsRecord(rec.Name) {
		e.emit(contracts.UpdateSkippedEvent(rec.Name, newIP, "unsupported"))
		return
	}

	if last, ok := e.lastAccepted[rec.Name]; ok {
		if time.Since(last) < e.config.MinUpdateInterval {
			e.emit(contracts.UpdateSkippedEvent(rec.Name, newIP, "rate-limited"))
			return
		}
	}

	currentIP, ok, err := e.state.GetLastIP(ctx, rec.Name)
	if err != nil {
		e.log.Errorw("state read failed; proceeding without idempotency check", "record", string(rec.Name), "error", err)
		e.emit(contracts.StateErrorEvent(rec.Name, err.Error()))
	} else if ok && currentIP == newIP {
		e.emit(contracts.UpdateSkippedEvent(rec.Name, newIP, "unchanged"))
		return
	}

	e.emit(contracts.UpdateStartedEvent(rec.Name, newIP))

	result, retryCount, err := e.retryUpdate(ctx, rec.Name, newIP)
	if err != nil {
		e.emit(contracts.UpdateFailedEvent(rec.Name, err.Error(), retryCount))
		return
	}

	now := time.Now().UTC()
	switch result.Kind() {
	case contracts.ResultUpdated, contracts.ResultCreated:
		stateErr := e.state.SetRecord(ctx, rec.Name, contracts.StateRecord{
			LastIP:           result.NewIP(),
			LastUpdated:      now,
			ProviderMetadata: result.ProviderMetadata(),
		})
		if stateErr != nil {
			e.log.Errorw("state write failed after successful provider update", "record", string(rec.Name), "error", stateErr)
			e.emit(contracts.StateErrorEvent(rec.Name, stateErr.Error()))
		}
		e.lastAccepted[rec.Name] = now

		var previous netip.Addr
		hasPrev := false
		if result.Kind() == contracts.ResultUpdated && result.HasPreviousIP() {
			previous = result.PreviousIP()
			hasPrev = true
		}
		e.emit(contracts.UpdateSucceededEvent(rec.Name, result.NewIP(), previous, hasPrev))
	case contracts.ResultUnchanged:
		// Per the Open Question decision: Unchanged never refreshes
		// last_updated, and does not count as an accepted update for
		// rate-limiting purposes either.
		e.emit(contracts.UpdateSucceededEvent(rec.Name, result.CurrentIP(), netip.Addr{}, false))
	}
}

// retryUpdate implements the retry loop from spec.md §4.6. It returns the
// number of retries actually performed (0 means the first attempt
// succeeded or failed fatally).
func (e *Engine) retryUpdate(ctx context.Context, name domain.Name, newIP netip.Addr) (contracts.UpdateResult, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.RetryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Duration(math.MaxInt64)

	attempts := 0
	var lastErr error

	for {
		callCtx, cancel := context.WithTimeout(ctx, e.config.UpdateTimeout)
		result, err := e.provider.UpdateRecord(callCtx, name, newIP)
		cancel()

		if err == nil {
			return result, attempts, nil
		}
		lastErr = err

		kind := ddnserr.KindOf(err)
		disposition := kind.Disposition()

		switch disposition {
		case ddnserr.DispositionFatalPerRecord:
			return contracts.UpdateResult{}, attempts, err
		case ddnserr.DispositionRetryableOnce:
			// The single mandated retry happens regardless of MaxRetries;
			// it is not part of the configurable retry budget.
			if attempts >= 1 {
				return contracts.UpdateResult{}, attempts, err
			}
		case ddnserr.DispositionRetryable:
			if attempts >= e.config.MaxRetries {
				return contracts.UpdateResult{}, attempts, lastErr
			}
		default:
			return contracts.UpdateResult{}, attempts, err
		}

		delay, boErr := bo.NextBackOff()
		if boErr != nil {
			return contracts.UpdateResult{}, attempts, lastErr
		}
		if de, ok := ddnserr.As(err); ok && de.Kind == ddnserr.KindRateLimited && de.RetryAfter > delay {
			delay = de.RetryAfter
		}

		select {
		case <-ctx.Done():
			return contracts.UpdateResult{}, attempts, ctx.Err()
		case <-time.After(delay):
		}

		attempts++
	}
}

// shutdown implements the teardown sequence: flush state with a bounded
// deadline, logging a flush failure at ERROR and aggregating it into the
// error that Run returns.
func (e *Engine) shutdown(reason string) error {
	var merr *multierror.Error

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushDeadline)
	defer cancel()
	if err := e.state.Flush(flushCtx); err != nil {
		e.log.Errorw("state flush failed during shutdown", "error", err)
		e.emit(contracts.StateErrorEvent(domain.Name(""), err.Error()))
		merr = multierror.Append(merr, err)
	}

	e.log.Infow("engine stopped", "reason", reason)
	return merr.ErrorOrNil()
}
