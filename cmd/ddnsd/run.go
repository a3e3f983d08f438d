package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jsribeiro/ddnsd/internal/config"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/engine"
	"github.com/jsribeiro/ddnsd/internal/logging"
	"github.com/jsribeiro/ddnsd/internal/metrics"
	"github.com/jsribeiro/ddnsd/internal/registry"
)

// forcedShutdownDeadline bounds how long a SIGINT/SIGTERM grace period
// may run before the process exits anyway, so a wedged provider call or
// state flush can never hang the daemon indefinitely.
const forcedShutdownDeadline = 30 * time.Second

func runDaemon(cmd *cobra.Command, _ []string) error {
	runID := uuid.NewString()

	log, err := logging.New(devLog)
	if err != nil {
		return ddnserr.Wrap(ddnserr.KindInternal, "constructing logger", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With("run_id", runID)

	rawCfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	engineCfg, err := rawCfg.EngineConfig()
	if err != nil {
		return err
	}

	reg := registry.New()
	registry.RegisterDefaults(reg, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, err := reg.CreateIpSource(ctx, rawCfg.IpSourceConfig())
	if err != nil {
		return err
	}
	provider, err := reg.CreateProvider(ctx, rawCfg.ProviderConfig())
	if err != nil {
		return err
	}
	state, err := reg.CreateStateStore(ctx, rawCfg.StateStoreConfig())
	if err != nil {
		return err
	}

	eng, events, err := engine.New(ctx, provider, source, state, engineCfg, log)
	if err != nil {
		return err
	}

	metricsReg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(metricsReg)

	metricsSrv := &http.Server{
		Addr:    ":9090",
		Handler: promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnw("metrics server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCtx, cancelMetrics := context.WithCancel(context.Background())
	defer cancelMetrics()
	go recorder.Run(metricsCtx, events)

	log.Infow("starting ddnsd", "records", len(engineCfg.Records), "provider", rawCfg.Provider.Kind, "ip_source", rawCfg.IpSource.Kind)

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(runCtx) }()

	select {
	case err := <-runErr:
		if err != nil {
			log.Errorw("engine stopped with error", "error", err)
		}
		return err
	case <-runCtx.Done():
		log.Infow("shutdown signal received, waiting for engine to stop", "deadline", forcedShutdownDeadline.String())
		select {
		case err := <-runErr:
			if err != nil {
				log.Errorw("engine stopped with error during shutdown", "error", err)
			}
			return err
		case <-time.After(forcedShutdownDeadline):
			log.Errorw("engine did not stop within the shutdown deadline, forcing exit")
			os.Exit(1)
		}
	}
	return nil
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if de, ok := ddnserr.As(err); ok && de.Kind.Disposition() == ddnserr.DispositionFatalStartup {
		return 78
	}
	return 1
}
