// internal/db/db.go
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

var DB *sql.DB

// Init opens the Postgres pool, checks it and applies the schema.
func Init(dsn string) {
	var err error
	DB, err = Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	if err = Migrate(DB); err != nil {
		log.Fatalf("failed to migrate DB: %v", err)
	}
	log.Println("✅ Connected to database")
}

func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

// Migrate applies the idempotent schema.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
