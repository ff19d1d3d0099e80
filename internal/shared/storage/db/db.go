package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"patent-backend/internal/shared/telemetry"
)

var (
	openDB = sql.Open

	// retryBackoff is the pause before the second connect attempt; it
	// doubles per attempt up to maxRetryBackoff.
	retryBackoff    = 500 * time.Millisecond
	maxRetryBackoff = 8 * time.Second

	singletonMu    sync.Mutex
	singletonCond  = sync.NewCond(&singletonMu)
	singletonDB    *sql.DB
	singletonInFly bool
)

// Connect opens a pgx-backed pool for databaseURL and pings it, retrying
// up to opts.ConnectAttempts times. Callers share the returned pool.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	opts = opts.withPoolDefaults()

	wait := retryBackoff
	var lastErr error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		database, err := open(ctx, databaseURL, opts)
		if err == nil {
			logPoolStats(database, "db.init")
			return database, nil
		}
		lastErr = err
		if attempt == opts.ConnectAttempts {
			break
		}
		telemetry.Warn("db.connect.retry", map[string]any{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
	return nil, lastErr
}

func open(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	database, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(opts.MaxOpenConns)
	database.SetMaxIdleConns(opts.MaxIdleConns)
	database.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		database.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
	if err := Ping(ctx, database, opts.PingTimeout); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

// GetSingleton returns the process-wide pool, connecting on first use.
// Concurrent callers wait for the in-flight attempt; a failed attempt is
// retried by the next caller.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	for singletonInFly && singletonDB == nil {
		singletonCond.Wait()
	}
	if singletonDB != nil {
		database := singletonDB
		singletonMu.Unlock()
		telemetry.Info("db.singleton.reuse", nil)
		return database, nil
	}
	singletonInFly = true
	singletonMu.Unlock()

	database, err := Connect(ctx, databaseURL, opts)

	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonInFly = false
	singletonCond.Broadcast()
	if err != nil {
		return nil, err
	}
	singletonDB = database
	telemetry.Info("db.singleton.init", nil)
	return database, nil
}

func logPoolStats(database *sql.DB, label string) {
	stats := database.Stats()
	telemetry.Info(label, map[string]any{
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic.
func WithTx(ctx context.Context, database *sql.DB, fn func(*sql.Tx) error) (err error) {
	if database == nil {
		return errors.New("database is nil")
	}
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks connectivity within timeout, defaulting to two seconds.
func Ping(ctx context.Context, database *sql.DB, timeout time.Duration) error {
	if database == nil {
		return errors.New("database is nil")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return database.PingContext(pingCtx)
}
