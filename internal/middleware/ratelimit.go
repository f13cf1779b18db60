package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/pkg/clientip"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RedisRateLimit counts requests per IP in Redis so the limit holds across
// instances. An IP that exceeds limit within window is blocked for another
// window. Redis failures let the request through.
func RedisRateLimit(client *redis.Client, scope string, limit int, window time.Duration, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := clientip.FromRequest(r, trustProxy)
			blockedKey := BlockedIPKeyPrefix + scope + ":" + ip

			blocked, err := client.Exists(ctx, blockedKey).Result()
			if err == nil && blocked > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				reject(w, r, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}

			key := RateLimitKeyPrefix + scope + ":" + ip
			n, err := client.Incr(ctx, key).Result()
			if err != nil {
				logger.FromContext(ctx).Warn("rate limit unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if n == 1 {
				client.Expire(ctx, key, window)
			}

			count := int(n)
			if count > limit {
				client.Set(ctx, blockedKey, "1", window)
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				reject(w, r, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-count))
			next.ServeHTTP(w, r)
		})
	}
}
