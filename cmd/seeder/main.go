//cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/unclebandit/pledge-escrow/internal/auth"
	"github.com/unclebandit/pledge-escrow/internal/config"
	"github.com/unclebandit/pledge-escrow/internal/db"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

const (
	nativeAsset = "XLM"
	perkAsset   = "CHRONOS"
)

// demo accounts: one creator holding perk tokens, two backers holding the native asset
var demoBalances = []struct {
	holder string
	asset  string
	amount uint64
}{
	{"alice", nativeAsset, 10_000},
	{"alice", perkAsset, 1_000},
	{"bob", nativeAsset, 1_000},
	{"charlie", nativeAsset, 5_000},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.Store != "postgres" {
		log.Fatal("seeder needs the postgres store")
	}

	db.Init(cfg.DatabaseURL)
	defer db.DB.Close()

	// extra SQL seed files may be passed as arguments
	for _, file := range os.Args[1:] {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}
		if _, err := db.DB.Exec(string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	ctx := context.Background()
	repo := &repository.PostgresRepository{DB: db.DB}
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		for _, b := range demoBalances {
			if err := tx.Credit(ctx, b.asset, b.holder, b.amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to mint demo balances: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatal(err)
	}
	for _, who := range []string{"alice", "bob", "charlie"} {
		token, err := issuer.Issue(who, time.Now(), cfg.TokenTTL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%-8s Bearer %s\n", who, token)
	}

	fmt.Println("Database seeding completed successfully!")
}
