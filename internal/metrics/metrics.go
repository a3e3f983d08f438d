// Package metrics exposes Prometheus counters and a histogram derived
// from the engine's event stream. It is intentionally outside
// internal/engine: spec.md §1 lists metrics exporters as an external
// collaborator, not core-engine scope, so this package only ever
// consumes the public contracts.EngineEvent channel — it has no access
// to engine internals.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// Recorder subscribes to an engine event channel and updates Prometheus
// metrics accordingly. Status label values follow the success/error
// convention used throughout the pack's provider instrumentation.
type Recorder struct {
	eventsTotal    *prometheus.CounterVec
	providerTotal  *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	stateErrors    prometheus.Counter

	startedAt map[string]time.Time
}

// NewRecorder constructs a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddns_engine_events_total",
			Help: "Count of engine events observed, by kind.",
		}, []string{"type"}),
		providerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddns_provider_requests_total",
			Help: "Count of provider update outcomes, by record and outcome.",
		}, []string{"record", "outcome"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddns_update_duration_seconds",
			Help:    "Wall-clock duration of a handle_record call, from UpdateStarted to its terminal event.",
			Buckets: prometheus.DefBuckets,
		}, []string{"record"}),
		stateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ddns_state_store_errors_total",
			Help: "Count of state-store read/write failures logged by the engine.",
		}),
		startedAt: make(map[string]time.Time),
	}

	reg.MustRegister(r.eventsTotal, r.providerTotal, r.updateDuration, r.stateErrors)
	return r
}

// Run drains events until the channel closes or ctx is cancelled,
// updating the registered collectors for each one observed.
func (r *Recorder) Run(ctx context.Context, events <-chan contracts.EngineEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.observe(ev)
		}
	}
}

func (r *Recorder) observe(ev contracts.EngineEvent) {
	r.eventsTotal.WithLabelValues(ev.Kind().String()).Inc()

	switch ev.Kind() {
	case contracts.EventUpdateStarted:
		r.startedAt[string(ev.RecordName())] = time.Now()
	case contracts.EventUpdateSucceeded:
		r.providerTotal.WithLabelValues(string(ev.RecordName()), "success").Inc()
		r.observeDuration(ev.RecordName())
	case contracts.EventUpdateFailed:
		r.providerTotal.WithLabelValues(string(ev.RecordName()), "error").Inc()
		r.observeDuration(ev.RecordName())
	case contracts.EventUpdateSkipped:
		r.providerTotal.WithLabelValues(string(ev.RecordName()), "skipped:"+ev.Reason()).Inc()
	case contracts.EventStateError:
		r.stateErrors.Inc()
	}
}

func (r *Recorder) observeDuration(name domain.Name) {
	started, ok := r.startedAt[string(name)]
	if !ok {
		return
	}
	delete(r.startedAt, string(name))
	r.updateDuration.WithLabelValues(string(name)).Observe(time.Since(started).Seconds())
}

// StateError increments the state-store error counter directly, for
// callers outside the engine event stream; cmd/ddnsd does not call it.
// Every state-store failure the engine itself observes is
// already counted via observe's EventStateError case, since the engine
// core emits that event rather than importing Prometheus directly.
func (r *Recorder) StateError() {
	r.stateErrors.Inc()
}
