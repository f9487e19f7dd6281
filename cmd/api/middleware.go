package main

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"adminconsole/internal/jsonlog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxAge          = 3 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. When limiting is enabled
// a janitor goroutine evicts clients idle for longer than limiterMaxAge;
// stop it with shutdown and waitForShutdown.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}
}

func initializeRateLimiter(cfg config, logger *jsonlog.Logger) *rateLimiter {
	rl := newRateLimiter(cfg.limiter.rps, cfg.limiter.burst)
	if !cfg.limiter.enabled {
		return rl
	}

	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.done:
				return
			case now := <-ticker.C:
				if n := rl.evictIdle(now.Add(-limiterMaxAge)); n > 0 {
					logger.Debug("rate limiter cleanup", "removed", n, "remaining", rl.size())
				}
			}
		}
	}()

	return rl
}

// allow takes a token from ip's bucket, creating the bucket on first use.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// evictIdle drops clients not seen since cutoff and returns how many.
func (rl *rateLimiter) evictIdle(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var n int
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			n++
		}
	}
	return n
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *rateLimiter) shutdown() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) waitForShutdown() {
	rl.wg.Wait()
}

// getClientIP returns the first valid address of X-Forwarded-For, then
// X-Real-IP, then the host part of RemoteAddr.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				w.Header().Set("Connection", "close")
				app.serverErrorResponse(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// correlationID takes X-Correlation-ID from the request or generates one,
// echoes it in the response and stores it in the request context for
// jsonlog's *WithContext helpers.
func (app *application) correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)

		next.ServeHTTP(w, r.WithContext(jsonlog.WithCorrelationID(r.Context(), id)))
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		app.logger.InfoWithContext(r.Context(), "HTTP request completed",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"addr", r.RemoteAddr,
			"status", rec.statusCode,
			"bytes", rec.written,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// responseRecorder captures the status code and body size for logRequest.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

// rateLimit rejects clients that exceed their token bucket with 429.
func (app *application) rateLimit(limiter *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !app.config.limiter.enabled || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !limiter.allow(ip) {
				app.logger.WarnWithContext(r.Context(), "rate limit exceeded",
					"ip", ip,
					"rps_limit", float64(limiter.rps),
					"burst_limit", limiter.burst,
					"method", r.Method,
					"uri", r.URL.RequestURI())

				app.rateLimitExceededResponse(w, r, time.Duration(float64(time.Second)/float64(limiter.rps)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
