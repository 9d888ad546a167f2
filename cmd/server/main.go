// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/pledge-escrow/internal/auth"
	"github.com/unclebandit/pledge-escrow/internal/clock"
	"github.com/unclebandit/pledge-escrow/internal/config"
	"github.com/unclebandit/pledge-escrow/internal/controller"
	"github.com/unclebandit/pledge-escrow/internal/db"
	"github.com/unclebandit/pledge-escrow/internal/queue"
	"github.com/unclebandit/pledge-escrow/internal/repository"
	"github.com/unclebandit/pledge-escrow/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repo  repository.UnitOfWork
		audit repository.AuditRepository
	)
	switch cfg.Store {
	case "postgres":
		db.Init(cfg.DatabaseURL)
		defer db.DB.Close()
		repo = &repository.PostgresRepository{DB: db.DB}
		audit = &repository.PostgresAuditRepository{DB: db.DB}
	default:
		log.Println("⚠️ Using in-memory store; state is lost on restart")
		repo = repository.NewMemoryRepository()
		audit = repository.NewMemoryAuditRepository()
	}

	var q queue.Queue
	if cfg.AMQPURL != "" {
		publisher, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		q = publisher
	} else {
		mem := queue.NewInMemoryQueue()
		if err := queue.StartAuditSubscriber(mem, cfg.EventsQueue, audit); err != nil {
			log.Fatalf("failed to start audit subscriber: %v", err)
		}
		defer mem.Wait()
		q = mem
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatalf("invalid auth configuration: %v", err)
	}

	campaignService := &service.CampaignService{
		Repo:          repo,
		Auth:          auth.ContextAuthenticator{},
		Clock:         clock.System{},
		Queue:         q,
		EscrowAccount: cfg.EscrowAccount,
		EventsTopic:   cfg.EventsQueue,
	}

	// Nothing else can sweep an in-memory store.
	if cfg.Store == "memory" {
		jobs := make(chan uint64, cfg.SweepBatch)
		go service.Sweep(ctx, campaignService, jobs, cfg.SweepInterval, cfg.SweepBatch)
		go service.NewWorker(campaignService, jobs).Start(context.Background())
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Audit:           audit,
	}

	r := chi.NewRouter()
	r.Use(issuer.Middleware)
	campaignController.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("🚀 Server running on", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
