package db

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/config"
)

// Store wraps the shared pgx pool with a readiness gate. Handlers must not
// touch the pool before Ready reports true; WaitReady blocks up to the
// connect budget and then fails fast with a retryable error.
type Store struct {
	Pool  *pgxpool.Pool
	ready atomic.Bool
}

// Connect builds the shared pool. The pool itself is lazy; a reconnect
// supervisor pings in the background and flips the readiness gate, closing
// sockets stuck in the connecting state between attempts.
func Connect(ctx context.Context, cfg *config.Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdle
	poolCfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := &Store{Pool: pool}
	go s.superviseConnection(cfg.Database.ConnectBudget)
	return s, nil
}

// superviseConnection pings until the store is reachable, then keeps
// watching and drops the readiness flag on sustained failure.
func (s *Store) superviseConnection(connectBudget time.Duration) {
	deadline := time.Now().Add(connectBudget)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.Pool.Ping(ctx)
		cancel()

		if err == nil {
			if !s.ready.Load() {
				log.Printf("[DB] Store ready")
			}
			s.ready.Store(true)
		} else {
			if s.ready.Load() {
				log.Printf("[DB] Store connection lost: %v", err)
			} else if time.Now().After(deadline) {
				log.Printf("[DB] Store still unreachable after connect budget: %v", err)
			}
			s.ready.Store(false)
			// Drop half-open sockets before the next attempt
			s.Pool.Reset()
		}

		time.Sleep(5 * time.Second)
	}
}

// Ready reports whether the store answered the last health ping
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// WaitReady blocks until the store is ready or the context expires
func (s *Store) WaitReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("store not ready: %w", ctx.Err())
		case <-ticker.C:
			if s.ready.Load() {
				return nil
			}
		}
	}
}

// Close shuts the pool down
func (s *Store) Close() {
	s.Pool.Close()
}
