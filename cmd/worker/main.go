package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/streadway/amqp"

	"github.com/unclebandit/pledge-escrow/internal/auth"
	"github.com/unclebandit/pledge-escrow/internal/clock"
	"github.com/unclebandit/pledge-escrow/internal/config"
	"github.com/unclebandit/pledge-escrow/internal/db"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/queue"
	"github.com/unclebandit/pledge-escrow/internal/repository"
	"github.com/unclebandit/pledge-escrow/internal/service"
)

// The worker finalizes expired campaigns and, when RabbitMQ is configured,
// copies published campaign events into the audit table.
func main() {
	once := flag.Bool("once", false, "finalize expired campaigns a single time and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.Store != "postgres" {
		log.Fatal("worker needs the postgres store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.Init(cfg.DatabaseURL)
	defer db.DB.Close()

	repo := &repository.PostgresRepository{DB: db.DB}
	audit := &repository.PostgresAuditRepository{DB: db.DB}

	var publisher queue.Queue
	if cfg.AMQPURL != "" {
		p, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ:", err)
		}
		defer p.Close()
		publisher = p
	}

	campaignService := &service.CampaignService{
		Repo:          repo,
		Auth:          auth.ContextAuthenticator{},
		Clock:         clock.System{},
		Queue:         publisher,
		EscrowAccount: cfg.EscrowAccount,
		EventsTopic:   cfg.EventsQueue,
	}

	if *once {
		done, err := campaignService.FinalizeExpired(ctx, cfg.SweepBatch)
		if err != nil {
			log.Fatalf("finalize pass failed after %d campaigns: %v", len(done), err)
		}
		log.Printf("✅ Finalized %d expired campaigns", len(done))
		return
	}

	var wg sync.WaitGroup
	jobs := make(chan uint64, cfg.SweepBatch)
	wg.Add(2)
	go func() {
		defer wg.Done()
		service.Sweep(ctx, campaignService, jobs, cfg.SweepInterval, cfg.SweepBatch)
	}()
	go func() {
		defer wg.Done()
		service.NewWorker(campaignService, jobs).Start(context.Background())
	}()

	if cfg.AMQPURL != "" {
		go consumeAudit(ctx, cfg, audit)
	}

	log.Println("Worker running, sweeping every", cfg.SweepInterval)
	<-ctx.Done()
	wg.Wait()
}

func consumeAudit(ctx context.Context, cfg config.Config, audit repository.AuditRepository) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Println("⚠️ audit consumer cannot connect to RabbitMQ:", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Println("⚠️ audit consumer cannot open a channel:", err)
		return
	}
	go func() {
		<-ctx.Done()
		ch.Close()
	}()

	err = queue.ConsumeCampaignEvents(ch, cfg.EventsQueue, func(ev model.CampaignEvent) error {
		return audit.Append(ctx, ev)
	})
	if err != nil {
		log.Println("⚠️ audit consumer stopped:", err)
	}
}
