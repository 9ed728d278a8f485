package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bargain-market.git/internal/auth"
	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
	"github.com/ariefcatur/go-bargain-market.git/internal/config"
	"github.com/ariefcatur/go-bargain-market.git/internal/httpx"
	"github.com/ariefcatur/go-bargain-market.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-bargain-market.git/internal/kafka"
	"github.com/ariefcatur/go-bargain-market.git/internal/postgres"
	"github.com/ariefcatur/go-bargain-market.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer: accepted bargains menuju fulfillment
	prod := kafkax.NewProducer(cfg.KafkaBrokers, bargain.TopicBargainAccepted, 1024, logger)
	prod.Start(ctx)

	// Auth
	verifier, err := auth.NewVerifier(cfg.AuthSecret)
	if err != nil {
		logger.Fatal("auth", zap.Error(err))
	}
	dir := &auth.Directory{DB: db}

	// Negotiation engine
	registry := bargain.NewRegistry(logger)
	svc := bargain.NewService(&bargain.Repo{DB: db}, dir, prod, registry, logger, cfg.ServiceName)
	gateway := &bargain.Gateway{Svc: svc, Verifier: verifier, Log: logger}

	// Allocation & pricing (jalur order langsung, tanpa nego)
	invRepo := &inventory.Repo{DB: db}
	invSvc := &inventory.Service{
		Store:       invRepo,
		Log:         logger,
		ServiceName: cfg.ServiceName,
	}

	// HTTP
	router := httpx.NewRouter()
	authed := httpx.RequireAuth(verifier)
	(&httpx.BargainHandler{Svc: svc, Redis: rdb}).Register(router, authed)
	(&httpx.LotsHandler{Repo: invRepo, Dir: dir}).Register(router, authed)
	(&httpx.OrderHandler{Svc: invSvc, Repo: invRepo, Redis: rdb}).Register(router, authed)
	(&httpx.WSHandler{Gateway: gateway, Log: logger}).Register(router)

	srv := httpx.NewServer(cfg.HTTPAddr, router)

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
