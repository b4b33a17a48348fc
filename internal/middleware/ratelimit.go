package middleware

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/talknote/talknote/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const defaultCaptureRate = "5-M"

// RateLimit returns middleware that limits requests per client IP using
// ulule/limiter with a Redis store. rate uses the limiter's formatted
// syntax, e.g. "5-M" for five per minute. Applied to the capture routes so
// one client cannot burn through the transcription quota.
func RateLimit(redisClient *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = defaultCaptureRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	store, err := redisstore.NewStore(redisClient)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(store, parsed)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
