package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"covera/internal/auth"
	claimmetrics "covera/internal/claim/metrics"
	claimservice "covera/internal/claim/service"
	claimstore "covera/internal/claim/store"
	"covera/internal/platform/config"
	"covera/internal/platform/httpserver"
	"covera/internal/platform/logger"
	platformmetrics "covera/internal/platform/metrics"
	platformredis "covera/internal/platform/redis"
	"covera/internal/policy/cache"
	policymetrics "covera/internal/policy/metrics"
	policyservice "covera/internal/policy/service"
	policystore "covera/internal/policy/store"
	"covera/internal/server"
	"covera/internal/treasury"
	"covera/pkg/platform/audit"
	auditpublisher "covera/pkg/platform/audit/publisher"
	auditmemory "covera/pkg/platform/audit/store/memory"
	auditworker "covera/pkg/platform/audit/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	auditInboxSize  = 1024
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the slice services; routing lives in internal/server.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		policies policyservice.PolicyStore
		claims   claimservice.ClaimStore
		db       *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		pgPolicies := policystore.NewPostgres(db)
		pgClaims := claimstore.NewPostgres(db)
		if err := pgPolicies.EnsureSchema(ctx); err != nil {
			log.Error("failed to apply policy schema", "error", err)
			os.Exit(1)
		}
		if err := pgClaims.EnsureSchema(ctx); err != nil {
			log.Error("failed to apply claim schema", "error", err)
			os.Exit(1)
		}
		policies, claims = pgPolicies, pgClaims
		log.Info("using postgres stores")
	} else {
		policies, claims = policystore.NewInMemory(), claimstore.NewInMemory()
		log.Info("using in-memory stores")
	}

	// Listing cache is optional; a nil cache is a no-op.
	var listing *cache.Listing
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		listing = cache.NewListing(redisClient.Client, cache.DefaultTTL)
		log.Info("policy listing cache enabled")
	}

	// Audit trail: requests append to a buffered inbox; a worker drains it
	// into the memory store and, when configured, the Kafka publisher.
	auditTrail := auditmemory.New()
	auditSink := audit.Store(auditTrail)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := auditpublisher.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		auditSink = audit.Multi{auditTrail, kafka}
		log.Info("kafka audit publisher enabled")
	}
	inbox := audit.NewInbox(auditInboxSize)

	ledger := treasury.NewLedger()
	tokens := auth.NewTokenService(cfg.JWTSigningKey, "covera")

	policySvc := policyservice.New(policies, ledger,
		policyservice.WithLogger(log),
		policyservice.WithMetrics(policymetrics.New()),
		policyservice.WithListingCache(listing),
		policyservice.WithAuditor(inbox),
	)
	claimSvc, err := claimservice.New(claims, policies, ledger,
		cfg.Arbiter, int(cfg.TaxPercent), int(cfg.ProcessingFeePercent),
		claimservice.WithLogger(log),
		claimservice.WithMetrics(claimmetrics.New()),
		claimservice.WithAuditor(inbox),
	)
	if err != nil {
		log.Error("invalid claim engine configuration", "error", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Deps{
		Logger:         log,
		Policies:       policySvc,
		Claims:         claimSvc,
		Tokens:         tokens,
		Metrics:        platformmetrics.New(),
		Stats:          policySvc,
		DB:             db,
		Redis:          redisClient,
		AuditTrail:     auditTrail,
		AdminTokenHash: cfg.AdminTokenHash,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting covera ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := auditworker.NewWorker(auditSink, inbox.Events()).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
