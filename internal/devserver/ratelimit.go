package devserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter applies a token bucket per client IP so one misbehaving
// client cannot brute-force the login endpoint. Idle entries are
// evicted opportunistically on each hit.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byIP  map[string]*ipEntry
	sweep time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &ipLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byIP:    make(map[string]*ipEntry),
		sweep:   time.Now(),
	}
}

// allow reports whether one token can be consumed for ip. A nil
// limiter allows everything.
func (l *ipLimiter) allow(ip string) bool {
	if l == nil || ip == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.sweep) > l.idleTTL {
		for k, e := range l.byIP {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.byIP, k)
			}
		}
		l.sweep = now
	}

	e, ok := l.byIP[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}
