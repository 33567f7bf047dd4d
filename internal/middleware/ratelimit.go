package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poof/backend/internal/models"
)

const (
	// SendRateLimitWindow / SendRateLimitMax: per-user cap on message sends.
	SendRateLimitWindow = 60 * time.Second
	SendRateLimitMax    = 30
	sendRateKeyPrefix   = "ratelimit:send:"
)

// SendRateLimit caps message sends per authenticated user using a fixed
// redis window. Fails open: if redis is down or not configured, requests
// pass through.
func SendRateLimit(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := sendRateKeyPrefix + userID
			count, err := rdb.Incr(r.Context(), key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(r.Context(), key, SendRateLimitWindow)
			}

			if count > SendRateLimitMax {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(SendRateLimitWindow.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse("Slow down, too many messages"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
