package api

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// CodeRateLimited is returned with 429 when a client exceeds its budget.
const CodeRateLimited = "RATE_LIMITED"

var errRateLimited = errors.New("rate limit exceeded")

const (
	visitorTTL    = 3 * time.Minute
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Idle clients are
// swept on access, so no background goroutine is needed.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// reserve takes one token for ip. A positive duration means the request is
// rejected and the client should retry after it.
func (rl *rateLimiter) reserve(ip string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}

// withRateLimit rejects API requests over the per-client budget. Health and
// metrics stay reachable for health checks and scrapers.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		delay := s.limiter.reserve(ip)
		if delay <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(delay.Seconds()))
		s.metrics.ErrorsInc()
		log.Warn().
			Str("client_ip", ip).
			Str("path", r.URL.Path).
			Int("retry_after", retryAfter).
			Str("request_id", requestID(r.Context())).
			Msg("Rate limit exceeded")

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Success:    false,
			Message:    errRateLimited.Error(),
			ErrorCode:  CodeRateLimited,
			StatusCode: http.StatusTooManyRequests,
			Timestamp:  s.now().UTC(),
			RequestID:  requestID(r.Context()),
			RetryAfter: retryAfter,
		})
	})
}
