// Command server wires dependencies and runs the caseflow HTTP service.
// Business logic lives in the internal services; this stays assembly only.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	caseshandler "caseflow/internal/cases/handler"
	casesservice "caseflow/internal/cases/service"
	casesstore "caseflow/internal/cases/store"
	"caseflow/internal/events"
	"caseflow/internal/extract"
	extracthandler "caseflow/internal/extract/handler"
	"caseflow/internal/payment"
	"caseflow/internal/payment/dedup"
	paymenthandler "caseflow/internal/payment/handler"
	"caseflow/internal/payment/stripegw"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/logger"
	"caseflow/internal/platform/metrics"
	"caseflow/internal/platform/postgres"
	platformredis "caseflow/internal/platform/redis"
	httptransport "caseflow/internal/transport/http"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Stores: postgres when a DSN is configured, in-memory for local runs.
	var (
		caseStore  casesstore.CaseStore
		eventStore events.Store
		outbox     events.Outbox
	)
	if cfg.Database.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		caseStore = casesstore.NewPostgres(pool)
		pg := events.NewPostgres(pool)
		eventStore, outbox = pg, pg
	} else {
		log.Warn("no database DSN configured; using in-memory stores")
		caseStore = casesstore.NewInMemory()
		mem := events.NewInMemory()
		eventStore, outbox = mem, mem
	}

	eventLog := events.NewLog(eventStore, log)

	// Webhook dedup: redis when configured, else per-process memory.
	var registry dedup.Registry = dedup.NewMemory()
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		registry = dedup.NewRedis(redisClient.Client, 0)
	}

	// Extraction worker client; nil leaves the dispatcher in the
	// not_configured path.
	var worker extract.Worker
	if cfg.Extract.WorkerURL != "" && cfg.Extract.Secret != "" {
		worker = extract.NewHTTPWorker(cfg.Extract.WorkerURL, cfg.Extract.Secret, cfg.Extract.RequestTimeout)
	} else {
		log.Warn("extraction worker not configured; dispatches will record not_configured")
	}
	dispatcher := extract.NewDispatcher(caseStore, worker, log, m, cfg.Extract.RequestTimeout+15*time.Second)

	caseSvc := casesservice.New(caseStore, eventLog, dispatcher, log, m, casesservice.LookupPolicy{
		Retries: cfg.Lookup.Retries,
		Delay:   cfg.Lookup.Delay,
	})

	gateway := stripegw.New(stripegw.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		SiteURL:       cfg.Stripe.SiteURL,
	})
	paymentSvc := payment.New(caseStore, caseSvc, gateway, registry, eventLog, log, m)

	router := httptransport.NewRouter(log, reg,
		caseshandler.New(caseSvc, log),
		paymenthandler.New(paymentSvc, log),
		extracthandler.New(dispatcher, caseSvc, cfg.Extract.Secret, log),
	)
	srv := httpserver.New(cfg.HTTP.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting caseflow", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Event relay: optional, only when Kafka brokers are configured.
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		relay := events.NewRelay(outbox, producer, log, cfg.Kafka.RelayInterval)
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
}
