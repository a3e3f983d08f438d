package engine

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
	"github.com/jsribeiro/ddnsd/internal/statestore"
)

func baseConfig(names ...string) contracts.EngineConfig {
	records := make([]contracts.RecordConfig, len(names))
	for i, n := range names {
		records[i] = contracts.RecordConfig{Name: domain.MustParse(n), Enabled: true}
	}
	return contracts.EngineConfig{
		Records:              records,
		MaxRetries:           3,
		RetryDelay:           10 * time.Millisecond,
		MinUpdateInterval:    60 * time.Second,
		EventChannelCapacity: 32,
		UpdateTimeout:        time.Second,
	}
}

func drainUntilStopped(t *testing.T, events <-chan contracts.EngineEvent, timeout time.Duration) []contracts.EngineEvent {
	t.Helper()
	var out []contracts.EngineEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
			if ev.Kind() == contracts.EventStopped {
				// drain the close.
				for range events {
				}
				return out
			}
		case <-deadline:
			t.Fatal("timed out waiting for engine to stop")
		}
	}
}

func kindsOf(events []contracts.EngineEvent) []contracts.EngineEventKind {
	kinds := make([]contracts.EngineEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind()
	}
	return kinds
}

// scenario A: first successful update.
func TestScenarioA_FirstSuccessfulUpdate(t *testing.T) {
	cfg := baseConfig("example.com")
	state := statestore.NewMemory()
	src := newFakeSource()
	ip := netip.MustParseAddr("203.0.113.4")
	provider := newFakeProvider(scriptedCall{result: contracts.Updated(domain.MustParse("example.com"), ip, netip.Addr{}, nil)})

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	kinds := kindsOf(collected)
	assert.Contains(t, kinds, contracts.EventStarted)
	assert.Contains(t, kinds, contracts.EventIpChangeDetected)
	assert.Contains(t, kinds, contracts.EventUpdateStarted)
	assert.Contains(t, kinds, contracts.EventUpdateSucceeded)

	current, ok, err := state.GetLastIP(context.Background(), domain.MustParse("example.com"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ip, current)
}

// scenario B: idempotent re-observation, provider not called.
func TestScenarioB_IdempotentReobservation(t *testing.T) {
	cfg := baseConfig("example.com")
	ip := netip.MustParseAddr("203.0.113.4")
	state := statestore.NewMemory()
	require.NoError(t, state.SetRecord(context.Background(), domain.MustParse("example.com"), contracts.StateRecord{LastIP: ip, LastUpdated: time.Now().Add(-time.Hour)}))

	src := newFakeSource()
	provider := newFakeProvider()

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 0, provider.callCount())
	var sawSkipped bool
	for _, ev := range collected {
		if ev.Kind() == contracts.EventUpdateSkipped && ev.Reason() == "unchanged" {
			sawSkipped = true
		}
	}
	assert.True(t, sawSkipped)
}

// scenario C: transient then success; total wall clock >= retry_delay*(1+2).
func TestScenarioC_TransientThenSuccess(t *testing.T) {
	cfg := baseConfig("example.com")
	cfg.RetryDelay = 30 * time.Millisecond
	ip := netip.MustParseAddr("203.0.113.4")
	state := statestore.NewMemory()
	src := newFakeSource()

	transientErr := ddnserr.New(ddnserr.KindTransient, "simulated transient failure")
	provider := newFakeProvider(
		scriptedCall{err: transientErr},
		scriptedCall{err: transientErr},
		scriptedCall{result: contracts.Updated(domain.MustParse("example.com"), ip, netip.Addr{}, nil)},
	)

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(300 * time.Millisecond)
	elapsed := time.Since(start)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Equal(t, 3, provider.callCount())

	var succeeded, failed int
	for _, ev := range collected {
		switch ev.Kind() {
		case contracts.EventUpdateSucceeded:
			succeeded++
		case contracts.EventUpdateFailed:
			failed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
}

// scenario D: authentication failure, no retry.
func TestScenarioD_AuthenticationFailureNoRetry(t *testing.T) {
	cfg := baseConfig("example.com")
	ip := netip.MustParseAddr("203.0.113.4")
	state := statestore.NewMemory()
	src := newFakeSource()

	provider := newFakeProvider(scriptedCall{err: ddnserr.New(ddnserr.KindAuthentication, "bad token")})

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 1, provider.callCount())
	var found bool
	for _, ev := range collected {
		if ev.Kind() == contracts.EventUpdateFailed {
			found = true
			assert.Equal(t, 0, ev.RetryCount())
		}
	}
	assert.True(t, found)
}

// DispositionRetryableOnce (e.g. a Cloudflare 409 conflict) must still get
// its single mandated retry even when MaxRetries is configured as 0 — the
// one-time retry is not part of the configurable retry budget.
func TestConflictRetriesOnceEvenWhenMaxRetriesIsZero(t *testing.T) {
	cfg := baseConfig("example.com")
	cfg.MaxRetries = 0
	ip := netip.MustParseAddr("203.0.113.4")
	state := statestore.NewMemory()
	src := newFakeSource()

	provider := newFakeProvider(
		scriptedCall{err: ddnserr.New(ddnserr.KindConflict, "concurrent modification")},
		scriptedCall{result: contracts.Updated(domain.MustParse("example.com"), ip, netip.Addr{}, nil)},
	)

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 2, provider.callCount())
	assert.Contains(t, kindsOf(collected), contracts.EventUpdateSucceeded)
}

// scenario E: ip flap within the rate-limit window; only the first event
// triggers a provider call.
func TestScenarioE_IpFlapRateLimited(t *testing.T) {
	cfg := baseConfig("example.com")
	cfg.MinUpdateInterval = 60 * time.Second
	state := statestore.NewMemory()
	src := newFakeSource()

	ip0 := netip.MustParseAddr("203.0.113.1")
	provider := newFakeProvider(scriptedCall{result: contracts.Updated(domain.MustParse("example.com"), ip0, netip.Addr{}, nil)})

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	ips := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.5"}
	for _, ipStr := range ips {
		src.send(contracts.IpChangeEvent{NewIP: netip.MustParseAddr(ipStr), ObservedAt: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 1, provider.callCount())
	var rateLimited int
	for _, ev := range collected {
		if ev.Kind() == contracts.EventUpdateSkipped && ev.Reason() == "rate-limited" {
			rateLimited++
		}
	}
	assert.Equal(t, 4, rateLimited)
}

// scenario F: crash mid-write recovery is covered by
// internal/statestore.TestFileCorruptMainRecoversFromBackup and
// TestFileBothCorruptIsFatal; no engine-level behaviour is exercised by
// that scenario beyond constructing the store, already tested there.

func TestEventChannelCapacityZeroStillRuns(t *testing.T) {
	cfg := baseConfig("example.com")
	cfg.EventChannelCapacity = 0
	state := statestore.NewMemory()
	src := newFakeSource()
	ip := netip.MustParseAddr("203.0.113.4")
	provider := newFakeProvider(scriptedCall{result: contracts.Updated(domain.MustParse("example.com"), ip, netip.Addr{}, nil)})

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()

	// With zero capacity every send not immediately received is dropped;
	// draining in a background goroutine lets some through anyway, so
	// just assert the engine still runs to completion without blocking.
	go func() {
		for range events {
		}
	}()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, provider.callCount(), 1)
}

func TestUnchangedDoesNotRefreshLastUpdated(t *testing.T) {
	cfg := baseConfig("example.com")
	ip := netip.MustParseAddr("203.0.113.4")
	oldTimestamp := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	state := statestore.NewMemory()
	// Pre-populate with a *different* ip so the idempotency check (step 4)
	// does not short-circuit before the provider call, but provider
	// itself reports Unchanged (e.g. it independently observed the same
	// value already).
	require.NoError(t, state.SetRecord(context.Background(), domain.MustParse("example.com"), contracts.StateRecord{LastIP: netip.MustParseAddr("203.0.113.1"), LastUpdated: oldTimestamp}))

	src := newFakeSource()
	provider := newFakeProvider(scriptedCall{result: contracts.Unchanged(domain.MustParse("example.com"), ip)})

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: ip, ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()
	drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	rec, ok, err := state.GetRecord(context.Background(), domain.MustParse("example.com"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, oldTimestamp, rec.LastUpdated.Truncate(time.Second))
}

func TestInvalidIpEventDiscardedWithoutProviderCall(t *testing.T) {
	cfg := baseConfig("example.com")
	state := statestore.NewMemory()
	src := newFakeSource()
	provider := newFakeProvider()

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	src.send(contracts.IpChangeEvent{NewIP: netip.IPv4Unspecified(), ObservedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)
	cancel()
	drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 0, provider.callCount())
}

func TestRunStopsWhenStreamTerminates(t *testing.T) {
	cfg := baseConfig("example.com")
	state := statestore.NewMemory()
	src := newFakeSource()
	provider := newFakeProvider()

	e, events, err := New(context.Background(), provider, src, state, cfg, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	src.closeStream()

	collected := drainUntilStopped(t, events, 2*time.Second)
	require.NoError(t, <-done)

	var stoppedReason string
	for _, ev := range collected {
		if ev.Kind() == contracts.EventStopped {
			stoppedReason = ev.Reason()
		}
	}
	assert.Equal(t, "ip source terminated", stoppedReason)
}
