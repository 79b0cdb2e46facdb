package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	kyckafka "kycstatus/internal/kyc/adapters/kafka"
	"kycstatus/internal/kyc/adapters/failover"
	"kycstatus/internal/kyc/adapters/fineract"
	kycpostgres "kycstatus/internal/kyc/adapters/postgres"
	kychandler "kycstatus/internal/kyc/handler"
	"kycstatus/internal/kyc/metrics"
	"kycstatus/internal/kyc/ports"
	"kycstatus/internal/kyc/service"
	"kycstatus/internal/platform/config"
	"kycstatus/internal/platform/httpserver"
	"kycstatus/internal/platform/kafka"
	"kycstatus/internal/platform/logger"
	"kycstatus/internal/platform/postgres"
	httptransport "kycstatus/internal/transport/http"
	"kycstatus/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kyc-status: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	fetcher, closeFetcher, err := buildFetcher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFetcher()

	svc, err := service.New(fetcher,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithTTL(cfg.CacheTTL),
		service.WithBatchDelay(cfg.BatchDelay),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(log, kychandler.New(svc, log), prometheus.DefaultGatherer)
	srv := httpserver.New(cfg.Addr, router)

	// Shutdown waits for idle connections; snapshot streams never go idle on
	// their own, so their contexts are cancelled when shutdown starts.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(cancelRequests)

	var publisher *kyckafka.Publisher
	if cfg.KafkaEnabled() {
		client, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer client.Close()

		ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = kafka.EnsureTopic(ensureCtx, client, cfg.KafkaTopic, 3)
		cancel()
		if err != nil {
			return err
		}
		publisher = kyckafka.New(client, kyckafka.WithLogger(log))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting kyc-status", "addr", cfg.Addr, "source", cfg.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down kyc-status")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if publisher != nil {
		g.Go(func() error {
			if err := publisher.Run(gctx, svc); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("kyc status publisher: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// buildFetcher selects the upstream source. The returned func releases any
// connections it opened.
func buildFetcher(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.StatusFetcher, func(), error) {
	noop := func() {}

	newFineract := func() (*fineract.Client, error) {
		return fineract.New(cfg.FineractURL,
			fineract.WithTenant(cfg.FineractTenant),
			fineract.WithBasicAuth(cfg.FineractUsername, cfg.FineractPassword),
			fineract.WithTimeout(cfg.FineractTimeout),
			fineract.WithRetries(cfg.FineractRetries),
			fineract.WithLogger(log),
		)
	}

	switch cfg.Source {
	case config.SourceFineract:
		client, err := newFineract()
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil

	case config.SourcePostgres:
		pool, err := postgres.New(ctx, cfg.PostgresDSN, postgres.Options{})
		if err != nil {
			return nil, nil, err
		}
		return kycpostgres.New(pool), pool.Close, nil

	case config.SourceFailover:
		client, err := newFineract()
		if err != nil {
			return nil, nil, err
		}
		pool, err := postgres.New(ctx, cfg.PostgresDSN, postgres.Options{})
		if err != nil {
			return nil, nil, err
		}
		breaker := circuit.New("fineract",
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.BreakerSuccesses),
		)
		fetcher := failover.New(client, kycpostgres.New(pool), breaker,
			failover.WithLogger(log),
			failover.WithProbeInterval(cfg.BreakerProbeInterval),
		)
		return fetcher, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown upstream source %q", cfg.Source)
	}
}
