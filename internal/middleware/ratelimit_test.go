package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

func rateLimitConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "canteen-backend"
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Unauth = 3
	cfg.RateLimit.Auth = 5
	cfg.RateLimit.Admin = 8
	cfg.RateLimit.Login = 2
	cfg.RateLimit.GenericPerMin = 2
	return cfg
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func apiRequest(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	r.RemoteAddr = ip + ":51234"
	return r
}

func hit(t *testing.T, h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestTieredLimitsAnonymousPerIP(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Tiered(okHandler())

	for i := 0; i < cfg.RateLimit.Unauth; i++ {
		rec := hit(t, h, apiRequest("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := hit(t, h, apiRequest("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	// A different source IP has its own window
	rec = hit(t, h, apiRequest("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTieredUsesForwardedForHeader(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Tiered(okHandler())

	for i := 0; i < cfg.RateLimit.Unauth; i++ {
		r := apiRequest("127.0.0.1")
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		require.Equal(t, http.StatusOK, hit(t, h, r).Code)
	}

	r := apiRequest("127.0.0.1")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, r).Code)

	// The proxy address itself is not what got limited
	assert.Equal(t, http.StatusOK, hit(t, h, apiRequest("127.0.0.1")).Code)
}

func TestTieredAuthenticatedTierIsWider(t *testing.T) {
	cfg := rateLimitConfig()
	jwt := auth.NewJWTManager(cfg)
	limiter := NewRateLimiter(cfg, jwt)
	h := limiter.Tiered(okHandler())

	token, err := jwt.GenerateToken(&models.User{
		ID: 10, Email: "cashier@canteen.local", Role: "cashier", IsActive: true,
	})
	require.NoError(t, err)

	for i := 0; i < cfg.RateLimit.Auth; i++ {
		r := apiRequest("10.0.0.1")
		r.Header.Set("Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, hit(t, h, r).Code, "request %d", i+1)
	}

	r := apiRequest("10.0.0.1")
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, r).Code)
}

func TestTieredAdminTierIsWidest(t *testing.T) {
	cfg := rateLimitConfig()
	jwt := auth.NewJWTManager(cfg)
	limiter := NewRateLimiter(cfg, jwt)
	h := limiter.Tiered(okHandler())

	token, err := jwt.GenerateToken(&models.User{
		ID: 1, Email: "admin@canteen.local", Role: "admin", IsActive: true,
	})
	require.NoError(t, err)

	for i := 0; i < cfg.RateLimit.Admin; i++ {
		r := apiRequest("10.0.0.1")
		r.Header.Set("Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, hit(t, h, r).Code, "request %d", i+1)
	}

	r := apiRequest("10.0.0.1")
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, r).Code)
}

func TestTieredGarbageTokenFallsBackToIPTier(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Tiered(okHandler())

	for i := 0; i < cfg.RateLimit.Unauth; i++ {
		r := apiRequest("10.0.0.1")
		r.Header.Set("Authorization", "Bearer not-a-token")
		require.Equal(t, http.StatusOK, hit(t, h, r).Code)
	}

	r := apiRequest("10.0.0.1")
	r.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, r).Code)
}

func TestTieredExemptsPreflight(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Tiered(okHandler())

	for i := 0; i < cfg.RateLimit.Unauth*3; i++ {
		r := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
		r.RemoteAddr = "10.0.0.1:51234"
		require.Equal(t, http.StatusOK, hit(t, h, r).Code)
	}

	// Preflights never consumed the window
	assert.Equal(t, http.StatusOK, hit(t, h, apiRequest("10.0.0.1")).Code)
}

func TestTieredDisabledPassesThrough(t *testing.T) {
	cfg := rateLimitConfig()
	cfg.RateLimit.Enabled = false
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Tiered(okHandler())

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, hit(t, h, apiRequest("10.0.0.1")).Code)
	}
}

func TestPerMinuteCapsBursts(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.PerMinute(okHandler())

	for i := 0; i < cfg.RateLimit.GenericPerMin; i++ {
		require.Equal(t, http.StatusOK, hit(t, h, apiRequest("10.0.0.1")).Code)
	}

	rec := hit(t, h, apiRequest("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestLoginThrottleForgivesSuccess(t *testing.T) {
	cfg := rateLimitConfig()
	limiter := NewRateLimiter(cfg, auth.NewJWTManager(cfg))
	h := limiter.Login(okHandler())

	login := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "10.0.0.1:51234"
		return r
	}

	// A successful login is refunded, leaving the full failure budget
	require.Equal(t, http.StatusOK, hit(t, h, login()).Code)
	limiter.ForgiveLogin(login())

	for i := 0; i < cfg.RateLimit.Login; i++ {
		require.Equal(t, http.StatusOK, hit(t, h, login()).Code)
	}
	rec := hit(t, h, login())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many login attempts")
}
