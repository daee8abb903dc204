package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SolGate/internal/domain/repository"
	"SolGate/internal/handler/api"
	"SolGate/internal/router"
	"SolGate/internal/usage"
	"SolGate/internal/usecase"
	pkgch "SolGate/pkg/clickhouse"
	"SolGate/pkg/config"
	xhttp "SolGate/pkg/http"
	pkgkafka "SolGate/pkg/kafka"
	applogger "SolGate/pkg/logger"
	"SolGate/pkg/queue"
	"SolGate/pkg/util"
)

const healthProbeInterval = 30 * time.Second

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.GatewayHandler
	router     *router.Router
	tracker    *usage.Tracker
	usageStore repository.UsageStore
	collector  *usecase.StreamCollector
	alertQueue *queue.RedisQueue
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.GatewayHandler,
	r *router.Router,
	tracker *usage.Tracker,
	usageStore repository.UsageStore,
	collector *usecase.StreamCollector,
	alertQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		handler:    handler,
		router:     r,
		tracker:    tracker,
		usageStore: usageStore,
		collector:  collector,
		alertQueue: alertQueue,
		chClient:   chClient,
		producer:   producer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.restoreUsage(ctx)

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout.Std(), a.cfg.Server.WriteTimeout.Std(), a.cfg.Server.ShutdownTimeout.Std()),
	)

	if a.alertQueue != nil {
		if err := a.alertQueue.Start(); err != nil {
			a.log.Warn("alert queue start failed", applogger.Error(err))
		}
	}

	if a.collector != nil {
		go func() {
			if err := a.collector.Run(ctx); err != nil {
				a.log.Error("stream collector error", applogger.Error(err))
			}
		}()
		a.log.Info("stream collector started")
	}

	go a.healthProbeLoop(ctx)

	if a.usageStore != nil && a.cfg.Usage.SnapshotEvery > 0 {
		go a.snapshotLoop(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("gateway listening",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("network", a.cfg.Network),
		applogger.String("policy", a.cfg.Routing.Policy))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// restoreUsage seeds the quota tracker from the last persisted snapshot.
func (a *App) restoreUsage(ctx context.Context) {
	if a.usageStore == nil {
		return
	}
	month := util.MonthStamp(time.Now())
	snaps, err := a.usageStore.Load(ctx, month)
	if err != nil {
		a.log.Warn("usage restore failed", applogger.Error(err))
		return
	}
	a.tracker.Restore(snaps)
	a.log.Info("usage counters restored", applogger.Int("providers", len(snaps)))
}

func (a *App) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Usage.SnapshotEvery.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.saveUsage(ctx)
		}
	}
}

func (a *App) saveUsage(ctx context.Context) {
	saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.usageStore.Save(saveCtx, a.tracker.Snapshot()); err != nil {
		a.log.Warn("usage snapshot failed", applogger.Error(err))
	}
}

func (a *App) healthProbeLoop(ctx context.Context) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.router.ProbeAll(ctx)
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	// Persist counters one last time before the process exits.
	if a.usageStore != nil {
		a.saveUsage(shutdownCtx)
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.alertQueue != nil {
		if err := a.alertQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
	return nil
}
