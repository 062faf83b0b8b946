package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a process-wide token bucket. A non-positive rate disables it.
type rateLimiter struct {
	limiter  *rate.Limiter
	onReject func()
}

func newRateLimiter(rps float64, burst int, onReject func()) *rateLimiter {
	if rps <= 0 {
		return &rateLimiter{}
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	return &rateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		onReject: onReject,
	}
}

func (l *rateLimiter) wrap(next http.Handler) http.Handler {
	if l.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := l.limiter.Reserve()
		if !reservation.OK() {
			l.reject(w, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			l.reject(w, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) reject(w http.ResponseWriter, retryAfter time.Duration) {
	if l.onReject != nil {
		l.onReject()
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	return newRateLimiter(rps, burst, nil).wrap(next)
}

// backpressureGate bounds concurrent requests. A request waits up to wait
// for a free slot before it is turned away with 503.
type backpressureGate struct {
	slots    chan struct{}
	wait     time.Duration
	onReject func()
}

func newBackpressureGate(maxInFlight int, wait time.Duration, onReject func()) *backpressureGate {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &backpressureGate{
		slots:    make(chan struct{}, maxInFlight),
		wait:     wait,
		onReject: onReject,
	}
}

func (g *backpressureGate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.acquire(r) {
			if g.onReject != nil {
				g.onReject()
			}
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is overloaded, retry later"})
			return
		}
		defer func() { <-g.slots }()
		next.ServeHTTP(w, r)
	})
}

func (g *backpressureGate) acquire(r *http.Request) bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
	}
	if g.wait <= 0 {
		return false
	}

	timer := time.NewTimer(g.wait)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-r.Context().Done():
		return false
	}
}

func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	return newBackpressureGate(maxInFlight, wait, nil).wrap(next)
}
