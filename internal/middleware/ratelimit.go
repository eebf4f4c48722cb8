package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/cache"
	"canteen-backend/internal/config"
	"canteen-backend/internal/metrics"
	"canteen-backend/pkg/utils"
)

const limitWindow = 15 * time.Minute

// RateLimiter applies the tiered request limits. Counters live in Redis so
// all replicas share one window; when Redis is down an in-process counter
// takes over rather than failing open completely.
type RateLimiter struct {
	cfg *config.Config
	jwt *auth.JWTManager

	mu    sync.Mutex
	local map[string]*localWindow
}

type localWindow struct {
	count   int64
	resetAt time.Time
}

func NewRateLimiter(cfg *config.Config, jwt *auth.JWTManager) *RateLimiter {
	return &RateLimiter{
		cfg:   cfg,
		jwt:   jwt,
		local: make(map[string]*localWindow),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// principal picks the counting key and the tier limit for a request.
// Authenticated callers are counted per user, anonymous ones per IP.
func (l *RateLimiter) principal(r *http.Request) (key string, limit int, tier string) {
	if token := bearerToken(r); token != "" {
		if claims, err := l.jwt.ValidateToken(token); err == nil {
			if claims.Role == "admin" {
				return "user:" + claims.Email, l.cfg.RateLimit.Admin, "admin"
			}
			return "user:" + claims.Email, l.cfg.RateLimit.Auth, "auth"
		}
	}
	return "ip:" + clientIP(r), l.cfg.RateLimit.Unauth, "unauth"
}

func (l *RateLimiter) incr(ctx context.Context, key string, window time.Duration) int64 {
	if cache.IsHealthy() {
		if n, ok := cache.IncrWindow(ctx, key, window); ok {
			return n
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	w := l.local[key]
	if w == nil || now.After(w.resetAt) {
		w = &localWindow{resetAt: now.Add(window)}
		l.local[key] = w
	}
	w.count++
	return w.count
}

// Tiered is the main API limiter: unauth/auth/admin buckets over a 15 minute
// window. CORS preflights are exempt.
func (l *RateLimiter) Tiered(next http.Handler) http.Handler {
	if !l.cfg.RateLimit.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key, limit, tier := l.principal(r)
		if n := l.incr(r.Context(), key, limitWindow); n > int64(limit) {
			metrics.RateLimited.WithLabelValues(tier).Inc()
			w.Header().Set("Retry-After", "60")
			utils.ErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PerMinute caps burst traffic on hot endpoints independently of the 15
// minute tier window.
func (l *RateLimiter) PerMinute(next http.Handler) http.Handler {
	if !l.cfg.RateLimit.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key, _, tier := l.principal(r)
		if n := l.incr(r.Context(), "minute:"+key, time.Minute); n > int64(l.cfg.RateLimit.GenericPerMin) {
			metrics.RateLimited.WithLabelValues(tier + ":minute").Inc()
			w.Header().Set("Retry-After", "10")
			utils.ErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loginKey(r *http.Request) string {
	return "login:" + clientIP(r)
}

// Login throttles credential guessing per source IP. Successful logins are
// forgiven so a shared office IP does not lock everyone out.
func (l *RateLimiter) Login(next http.Handler) http.Handler {
	if !l.cfg.RateLimit.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := l.incr(r.Context(), loginKey(r), limitWindow); n > int64(l.cfg.RateLimit.Login) {
			metrics.RateLimited.WithLabelValues("login").Inc()
			w.Header().Set("Retry-After", "900")
			utils.ErrorStatus(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ForgiveLogin refunds one login attempt after a successful authentication
func (l *RateLimiter) ForgiveLogin(r *http.Request) {
	key := loginKey(r)
	if cache.IsHealthy() {
		cache.DecrWindow(r.Context(), key, limitWindow)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w := l.local[key]; w != nil && w.count > 0 {
		w.count--
	}
}
