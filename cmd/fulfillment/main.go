package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
	"github.com/ariefcatur/go-bargain-market.git/internal/config"
	"github.com/ariefcatur/go-bargain-market.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-bargain-market.git/internal/kafka"
	"github.com/ariefcatur/go-bargain-market.git/internal/postgres"
	"github.com/ariefcatur/go-bargain-market.git/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

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
		logger.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	serviceName := cfg.ServiceName + "-fulfillment"

	// Producers: allocated & rejected (dua topic berbeda)
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, bargain.TopicOrderAllocated, 1024, logger)
	pOK.Start(ctx)
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, bargain.TopicOrderRejected, 1024, logger)
	pRJ.Start(ctx)

	// Service
	svc := &inventory.Service{
		Store:          &inventory.Repo{DB: db},
		Dedup:          &redisx.Deduper{R: rdb, Service: serviceName},
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		Log:            logger,
		ServiceName:    serviceName,
	}

	// Consumer
	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, bargain.TopicBargainAccepted, workers, logger)

	go func() {
		logger.Info("fulfillment consumer started",
			zap.String("group", group),
			zap.String("topic", bargain.TopicBargainAccepted),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleBargainAccepted); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pOK.Close()
	pRJ.Close()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
