package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/contextkeys"
)

func TestRateLimiterBurst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 3)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := rl.Allow(ctx, "user:a")
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "user:b")
	assert.True(t, ok, "keys have independent budgets")

	now = now.Add(time.Second)
	ok, _ = rl.Allow(ctx, "user:a")
	assert.True(t, ok, "one token refilled")
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 10)
	rl.now = func() time.Time { return now }

	rl.Allow(context.Background(), "user:a")
	now = now.Add(time.Minute)
	rl.Allow(context.Background(), "user:b")
	require.Equal(t, 2, rl.size())

	now = now.Add(idleLimiterTTL)
	rl.Cleanup()
	assert.Equal(t, 1, rl.size())
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := NewRateLimitMiddleware(rl, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	asUser := func(userID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(contextkeys.WithPrincipal(req.Context(), &Principal{UserID: userID}))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("u-1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("u-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("u-2"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	h := NewRateLimitMiddleware(failingLimiter{}, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.4")
	assert.Equal(t, "192.0.2.4", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(req))
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	rl := NewDistributedRateLimiter(client, 2, time.Minute, "")
	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("sitepass:ratelimit:user:a"))

	mr.FastForward(time.Minute)
	ok, err = rl.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, ok, "window expired")

	require.NoError(t, rl.Reset(ctx, "user:a"))
	assert.False(t, mr.Exists("sitepass:ratelimit:user:a"))

	mr.Close()
	_, err = rl.Allow(ctx, "user:a")
	assert.Error(t, err)
}

func TestDistributedRateLimiterRestoresMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	// a counter stranded over the limit with no expiry
	require.NoError(t, mr.Set("sitepass:ratelimit:user:b", "10"))
	assert.Zero(t, mr.TTL("sitepass:ratelimit:user:b"))

	rl := NewDistributedRateLimiter(client, 2, time.Minute, "")
	ok, err := rl.Allow(ctx, "user:b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("sitepass:ratelimit:user:b"))

	mr.FastForward(time.Minute)
	ok, err = rl.Allow(ctx, "user:b")
	require.NoError(t, err)
	assert.True(t, ok)
}
