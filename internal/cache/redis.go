package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

var client *redis.Client

// Init initializes the Redis connection. Redis is optional: rate limiting
// falls back to per-process counters and balance reads fall through to the
// store when it is down.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client (nil when unavailable)
func GetClient() *redis.Client {
	return client
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// ============================================
// Rate-limit counters (shared across workers)
// ============================================

// IncrWindow increments the counter for (principal, window) and returns the
// new count. The key expires when the window rolls over, so abandoned
// principals cost nothing. ok=false means Redis is down and the caller
// should use its in-process fallback.
func IncrWindow(ctx context.Context, principal string, window time.Duration) (int64, bool) {
	if client == nil {
		return 0, false
	}
	bucket := time.Now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("rl:%s:%d", principal, bucket)

	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false
	}
	return incr.Val(), true
}

// DecrWindow undoes one count, used when successful login attempts must not
// count against the login limit.
func DecrWindow(ctx context.Context, principal string, window time.Duration) {
	if client == nil {
		return
	}
	bucket := time.Now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("rl:%s:%d", principal, bucket)
	client.Decr(ctx, key)
}

// ============================================
// Current-balance cache
// ============================================

func balanceKey(theaterID, productID int, ledger string) string {
	return fmt.Sprintf("stock:balance:%d:%d:%s", theaterID, productID, ledger)
}

// GetCachedStock returns the cached current-stock snapshot if present.
// The whole snapshot is stored so cache hits answer with the same shape
// as store reads.
func GetCachedStock(ctx context.Context, theaterID, productID int, ledger string) (*models.CurrentStock, bool) {
	if client == nil {
		return nil, false
	}
	raw, err := client.Get(ctx, balanceKey(theaterID, productID, ledger)).Bytes()
	if err != nil {
		return nil, false
	}
	var cs models.CurrentStock
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false
	}
	return &cs, true
}

// CacheStock stores a current-stock snapshot for 5 minutes
func CacheStock(ctx context.Context, cs *models.CurrentStock) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return
	}
	client.Set(ctx, balanceKey(cs.TheaterID, cs.ProductID, string(cs.Ledger)), raw, 5*time.Minute)
}

// InvalidateBalance drops a cached balance after any ledger write
func InvalidateBalance(ctx context.Context, theaterID, productID int, ledger string) {
	if client == nil {
		return
	}
	client.Del(ctx, balanceKey(theaterID, productID, ledger))
}

// InvalidateTheaterBalances drops all cached balances for a theater
func InvalidateTheaterBalances(ctx context.Context, theaterID int) {
	if client == nil {
		return
	}
	pattern := fmt.Sprintf("stock:balance:%d:*", theaterID)
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
