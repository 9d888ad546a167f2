package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. Values come from the YAML file
// named by CONFIG_FILE, then environment variables (including .env) on top.
type Config struct {
	HTTPAddr      string
	Store         string
	DatabaseURL   string
	AMQPURL       string
	EventsQueue   string
	EscrowAccount string
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

type fileConfig struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Database struct {
		URL      string `yaml:"url"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Name     string `yaml:"name"`
	} `yaml:"database"`
	Events struct {
		AMQPURL string `yaml:"amqp_url"`
		Queue   string `yaml:"queue"`
	} `yaml:"events"`
	Escrow struct {
		Account string `yaml:"account"`
	} `yaml:"escrow"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		JWTIssuer string `yaml:"jwt_issuer"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Worker struct {
		SweepInterval string `yaml:"sweep_interval"`
		SweepBatch    int    `yaml:"sweep_batch"`
	} `yaml:"worker"`
}

func defaults() fileConfig {
	var f fileConfig
	f.Server.HTTPAddr = ":8080"
	f.Store.Driver = "postgres"
	f.Database.Port = "5432"
	f.Database.Host = "localhost"
	f.Events.Queue = "campaign_events"
	f.Escrow.Account = "escrow"
	f.Auth.JWTIssuer = "pledge-escrow"
	f.Auth.TokenTTL = "24h"
	f.Worker.SweepInterval = "1m"
	f.Worker.SweepBatch = 100
	return f
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	f := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	return resolve(f)
}

func resolve(f fileConfig) (Config, error) {
	override(&f.Server.HTTPAddr, "HTTP_ADDR")
	override(&f.Store.Driver, "STORE")
	override(&f.Database.URL, "DATABASE_URL")
	override(&f.Database.User, "DB_USER")
	override(&f.Database.Password, "DB_PASSWORD")
	override(&f.Database.Host, "DB_HOST")
	override(&f.Database.Port, "DB_PORT")
	override(&f.Database.Name, "DB_NAME")
	override(&f.Events.AMQPURL, "AMQP_URL")
	override(&f.Events.Queue, "EVENTS_QUEUE")
	override(&f.Escrow.Account, "ESCROW_ACCOUNT")
	override(&f.Auth.JWTSecret, "JWT_SECRET")
	override(&f.Auth.JWTIssuer, "JWT_ISSUER")
	override(&f.Auth.TokenTTL, "TOKEN_TTL")
	override(&f.Worker.SweepInterval, "SWEEP_INTERVAL")

	cfg := Config{
		HTTPAddr:      f.Server.HTTPAddr,
		Store:         strings.ToLower(strings.TrimSpace(f.Store.Driver)),
		DatabaseURL:   f.Database.URL,
		AMQPURL:       f.Events.AMQPURL,
		EventsQueue:   f.Events.Queue,
		EscrowAccount: f.Escrow.Account,
		JWTSecret:     f.Auth.JWTSecret,
		JWTIssuer:     f.Auth.JWTIssuer,
		SweepBatch:    f.Worker.SweepBatch,
	}
	if cfg.DatabaseURL == "" && f.Database.Name != "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			f.Database.User, f.Database.Password, f.Database.Host, f.Database.Port, f.Database.Name,
		)
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(f.Auth.TokenTTL); err != nil {
		return Config{}, fmt.Errorf("token_ttl: %w", err)
	}
	if cfg.SweepInterval, err = time.ParseDuration(f.Worker.SweepInterval); err != nil {
		return Config{}, fmt.Errorf("sweep_interval: %w", err)
	}

	switch cfg.Store {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("postgres store needs DATABASE_URL or DB_NAME")
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EscrowAccount == "" {
		return Config{}, fmt.Errorf("escrow account cannot be empty")
	}
	return cfg, nil
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}
