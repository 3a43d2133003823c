package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

// Connect opens a pgx pool and waits for the database to answer, backing off
// fibonacci-style so a server started alongside its database comes up clean.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}

	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Printf("Database not ready: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return pool, nil
}

// Migrate applies the goose migrations in migrationsDir.
func Migrate(databaseURL, migrationsDir string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return errors.Wrap(err, "opening migration connection")
	}
	defer conn.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Up(conn, migrationsDir); err != nil {
		return errors.Wrap(err, "applying migrations")
	}
	return nil
}
