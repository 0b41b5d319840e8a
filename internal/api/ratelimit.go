package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter applies a token bucket per client IP. Buckets of idle clients
// expire from the cache.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

// NewRateLimiter allows perMinute requests per client with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: cache.New(limiterIdleTTL, 2*limiterIdleTTL),
	}
}

// Allow reports whether a request from key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Another request created the bucket first.
		if v, ok := l.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.limiter(clientIP(r))
		if !lim.Allow() {
			retry := lim.Reserve()
			delay := retry.Delay()
			retry.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, inquiryError{Error: "demasiadas consultas, intenta de nuevo en unos minutos"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of r.RemoteAddr. Forwarding headers only
// count when the server is configured to trust its proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
