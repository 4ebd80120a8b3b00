package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/Vaarun-C/UptimeMonitor/internal/config/engine"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/notification"
	"github.com/Vaarun-C/UptimeMonitor/internal/obs"
	"github.com/Vaarun-C/UptimeMonitor/internal/obs/retry"
	kafkaRepo "github.com/Vaarun-C/UptimeMonitor/internal/repository/kafka"
	pg "github.com/Vaarun-C/UptimeMonitor/internal/repository/postgres"
	"github.com/Vaarun-C/UptimeMonitor/internal/services/engine"
	"github.com/Vaarun-C/UptimeMonitor/internal/services/notifier"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "config/engine.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting engine",
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
		zap.Int("max_concurrency", cfg.Sweep.MaxConcurrency),
		zap.Duration("probe_timeout", cfg.Probe.Timeout),
		zap.String("metrics_addr", cfg.Sweep.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	var db *pg.DB
	if err := retry.Do(ctx, func() error {
		var err error
		db, err = pg.NewDB(ctx, cfg.DB)
		return err
	}, retry.DefaultConnectPolicy("postgres", l)); err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Sweep.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// repos
	targets := pg.NewTargetRepo(db)
	store := pg.NewHistoryRepo(db)
	owners := pg.NewOwnerRepo(db)
	transactor := pg.NewTransactor(db, l)

	// optional state-change event stream
	var events notification.Events
	if cfg.Kafka.Enable {
		_ = kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{Name: cfg.Kafka.Topic}, l)
		prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
		defer func() { _ = prod.Close() }()
		events = kafkaRepo.NewStateEvents(prod)
	}

	// notification dispatch
	var dispatch *notifier.Dispatch
	if cfg.SMTP.Enable {
		mailer := notifier.NewMailer(cfg.SMTP).WithLogger(l)
		dispatch = notifier.NewDispatch(l, targets, owners, store, mailer, systemClock{}, cfg.Sweep.Window)
		go func() {
			if err := dispatch.Run(ctx, cfg.SMTP.ReportInterval); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("report loop", zap.Error(err))
			}
		}()
	}

	// engine wiring
	agg := engine.NewAggregator(l, store, transactor, cfg.Sweep.Window)
	exec := engine.NewExecutor(cfg.Probe)
	lim := engine.NewLimiter(cfg.Sweep.MaxConcurrency)
	runner := engine.NewRunner(l, targets, exec, agg, lim, cfg.Sweep.Interval, cfg.Sweep.ShutdownGrace)
	if events != nil {
		runner = runner.WithEvents(events)
	}
	if dispatch != nil {
		runner = runner.WithAlerter(dispatch)
	}

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("engine started")

	select {
	case <-ctx.Done():
		<-errCh
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
