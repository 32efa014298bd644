package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pharmaflow/reservation-service/internal/catalog"
	"github.com/pharmaflow/reservation-service/internal/config"
	"github.com/pharmaflow/reservation-service/internal/identity"
	notifapp "github.com/pharmaflow/reservation-service/internal/notification/application"
	"github.com/pharmaflow/reservation-service/internal/notification/infrastructure/fcm"
	notifhttp "github.com/pharmaflow/reservation-service/internal/notification/infrastructure/http"
	notifpg "github.com/pharmaflow/reservation-service/internal/notification/infrastructure/postgres"
	notifredis "github.com/pharmaflow/reservation-service/internal/notification/infrastructure/redis"
	"github.com/pharmaflow/reservation-service/internal/reservation/application"
	reshttp "github.com/pharmaflow/reservation-service/internal/reservation/infrastructure/http"
	respg "github.com/pharmaflow/reservation-service/internal/reservation/infrastructure/postgres"
	stockpg "github.com/pharmaflow/reservation-service/internal/stock/postgres"
	"github.com/pharmaflow/reservation-service/pkg/idempotency"
	"github.com/pharmaflow/reservation-service/pkg/logging"
	"github.com/pharmaflow/reservation-service/pkg/outbox"
	"github.com/pharmaflow/reservation-service/pkg/shutdown"
	"github.com/pharmaflow/reservation-service/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Core database: stock rows, reservations, inbox, outbox.
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := respg.Migrate(ctx, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// Catalog and identity live in separately-addressable stores; with the
	// default config all three URLs point at the same instance.
	catalogPool, err := pgxpool.New(ctx, cfg.CatalogPGURL)
	if err != nil {
		log.Error("catalog pg connect failed", "err", err)
		os.Exit(1)
	}
	defer catalogPool.Close()

	authPool, err := pgxpool.New(ctx, cfg.AuthPGURL)
	if err != nil {
		log.Error("auth pg connect failed", "err", err)
		os.Exit(1)
	}
	defer authPool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 10*time.Minute)

	// Outbox relay to Kafka.
	writer := outbox.NewWriter([]string{cfg.KafkaAddr}, cfg.ServiceName)
	defer writer.Close()
	outboxStore := respg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, cfg.ServiceName+"-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Notification fan-out channels.
	identityClient := identity.NewClient(log, authPool)
	catalogClient := catalog.NewClient(log, catalogPool)
	inbox := notifpg.NewStore(log, pool)
	realtime := notifredis.NewPublisher(log, rdb)

	var push notifapp.PushSender
	if cfg.FCMCredsFile != "" {
		creds, err := os.ReadFile(cfg.FCMCredsFile)
		if err != nil {
			log.Error("read fcm credentials failed", "err", err)
			os.Exit(1)
		}
		sender, err := fcm.NewSender(ctx, log, creds)
		if err != nil {
			log.Error("fcm sender init failed", "err", err)
			os.Exit(1)
		}
		push = sender
	} else {
		log.Warn("push disabled: no FCM credentials configured")
	}
	fanout := notifapp.NewFanout(log, inbox, realtime, push, identityClient)

	// Reservation orchestrator.
	ledger := stockpg.NewLedger(log, pool)
	store := respg.NewRepository(log, pool, ledger)
	svc := application.NewService(log, store, ledger, catalogClient, identityClient, fanout)

	r := chi.NewRouter()
	r.Use(idempotency.Middleware(idem))
	r.Mount("/reservations", reshttp.NewHandler(log, svc).Routes())
	r.Mount("/notifications", notifhttp.NewHandler(log, inbox).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("reservation-service shutdown complete")
}
