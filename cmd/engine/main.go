package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/api/rest"
	"github.com/clinicore/monitoring-engine/internal/api/websocket"
	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/config"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/maintenance"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/notification"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
	"github.com/clinicore/monitoring-engine/internal/service/compliance"
	"github.com/clinicore/monitoring-engine/internal/service/escalation"
	"github.com/clinicore/monitoring-engine/internal/service/incident"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		seedRules  = flag.Bool("seed-rules", true, "Install the default clinic alert rules at startup")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	slogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize request logger: %v", err)
	}
	slog.SetDefault(slogger)

	ctx := context.Background()
	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "clinic-monitoring-engine",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	hub := websocket.NewHub(logger.Named("websocket"))

	dispatcher := notification.NewDispatcher(
		logger.Named("notification"),
		[]notification.Transport{
			notification.NewLogTransport(alert.ChannelEmail, logger),
			notification.NewLogTransport(alert.ChannelSMS, logger),
			notification.NewLogTransport(alert.ChannelSlack, logger),
			notification.NewLogTransport(alert.ChannelDashboard, logger),
		},
		notification.WithRateLimit(cfg.Notifications.RatePerSecond, cfg.Notifications.Burst),
		notification.WithTimeout(cfg.Notifications.DeliveryTimeout),
	)

	incidents := incident.NewManager(logger.Named("incident"),
		incident.WithNotifier(dispatcher),
		incident.WithEventPublisher(hub),
	)

	alerts := alerting.NewAlertStore(logger.Named("alerts"),
		alerting.WithIncidentSink(incidents),
		alerting.WithEventPublisher(hub),
		alerting.WithHistoryLimit(cfg.Engine.HistoryLimit),
	)

	scheduler := escalation.NewScheduler(alerts, alerts, dispatcher, logger.Named("escalation"))
	alerts.BindEscalator(scheduler)

	rules := alerting.NewRuleStore(logger.Named("rules"))
	if *seedRules {
		if err := rules.SeedDefaults(); err != nil {
			log.Fatalf("Failed to seed default rules: %v", err)
		}
	}

	evaluator := alerting.NewEvaluator(rules, alerts, scheduler, incidents, dispatcher, logger.Named("evaluator"))

	monitor := compliance.NewMonitor(logger.Named("compliance"),
		compliance.WithEventLimit(cfg.Engine.ComplianceEventLimit),
		compliance.WithHomeRegion(cfg.Engine.HomeRegion),
	)

	sweeper := maintenance.NewSweeper(logger.Named("maintenance"),
		alerts, monitor, cfg.Engine.RetentionWindow, cfg.Engine.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start retention sweeper: %v", err)
	}

	handler := rest.NewHandler(evaluator, alerts, rules, incidents, monitor)
	server := rest.NewServer(cfg.Server, rest.NewRouter(handler, hub.HandleEvents), logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	sweeper.Stop()
	hub.Stop(shutdownCtx)
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", zap.Error(err))
	}
	logger.Info("engine stopped")
}
