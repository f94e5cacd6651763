package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentvault/ledger/internal/api"
	"github.com/contentvault/ledger/internal/config"
	"github.com/contentvault/ledger/internal/infrastructure/kafka"
	"github.com/contentvault/ledger/internal/infrastructure/redis"
	"github.com/contentvault/ledger/internal/observability"
	core "github.com/contentvault/ledger/internal/repository/postgres"
	service "github.com/contentvault/ledger/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("contentvault-ledger")
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	accountRepo := core.NewPostgresAccountRepository(db)
	contentRepo := core.NewPostgresContentRepository(db)
	requestRepo := core.NewPostgresRequestRepository(db)
	transferRepo := core.NewPostgresTransferRepository(db)
	eventRepo := core.NewPostgresEventRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	accountsProducer := kafka.NewProducer(cfg.KafkaBrokers, "accounts")
	transfersProducer := kafka.NewProducer(cfg.KafkaBrokers, "transfers")
	rewardsProducer := kafka.NewProducer(cfg.KafkaBrokers, "rewards")
	defer accountsProducer.Close()
	defer transfersProducer.Close()
	defer rewardsProducer.Close()

	clock := service.SystemClock()
	rewards := service.UniformRewardSource()

	svc := api.Services{
		Accounts: service.NewAccountService(accountRepo, eventRepo, redisClient, accountsProducer, cfg.JWTSecret, cfg, clock),
		Ledger:   service.NewLedgerService(requestRepo, contentRepo, transferRepo, redisClient, transfersProducer, cfg, clock),
		Rewards:  service.NewRewardService(accountRepo, rewardsProducer, cfg, clock, rewards),
		Content:  service.NewContentService(contentRepo, redisClient, cfg),
	}

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	transfersConsumer := kafka.NewConsumer(cfg.KafkaBrokers, "transfers", "ledger-journal", eventRepo)
	rewardsConsumer := kafka.NewConsumer(cfg.KafkaBrokers, "rewards", "ledger-journal-rewards", eventRepo)
	go transfersConsumer.Consume(consumerCtx)
	go rewardsConsumer.Consume(consumerCtx)
	defer transfersConsumer.Close()
	defer rewardsConsumer.Close()

	router := api.SetupRouter(svc, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopConsumers()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
