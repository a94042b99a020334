// The worker binary runs the background jobs that keep the request
// table honest: outbox draining, expiry sweeping and outbox retention.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/raktaseva/blood-api/internal/config"
	"github.com/raktaseva/blood-api/internal/repository/postgres"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/messaging/redis"
	"github.com/raktaseva/blood-api/pkg/metrics"
	"github.com/raktaseva/blood-api/pkg/worker"
)

// workerEnv overrides tuning knobs per deployment without touching the
// shared config file.
type workerEnv struct {
	HealthPort    int           `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
	SweepInterval time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"10m"`
	CleanInterval time.Duration `envconfig:"WORKER_CLEAN_INTERVAL" default:"1h"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var env workerEnv
	if err := envconfig.Process("", &env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process env: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewBroker(redis.Config{
		URL: fmt.Sprintf("redis://%s/%d", cfg.Redis.Addr, cfg.Redis.DB),
	}, &log.ZL)
	if err != nil {
		log.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	requestRepo := postgres.NewRequestRepository(db)
	m := metrics.New("raktaseva_worker")

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval(),
	}, log, m)
	sweeper := worker.NewExpirySweeper(requestRepo, env.SweepInterval, log, m)
	cleaner := worker.NewOutboxCleaner(outboxRepo,
		time.Duration(cfg.Outbox.RetentionHours)*time.Hour, env.CleanInterval, log)

	startHealthServer(env.HealthPort, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down workers")
		cancel()
	}()

	go sweeper.Start(ctx)
	go cleaner.Start(ctx)
	processor.Start(ctx)
}

func startHealthServer(port int, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Error(err, "health server failed")
		}
	}()
}
