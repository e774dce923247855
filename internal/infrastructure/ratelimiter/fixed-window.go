package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowRateLimiter counts requests per client inside aligned time
// windows. Windows are anchored at Truncate(window), so every client
// resets on the same boundary.
type FixedWindowRateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*clientWindow

	stop chan struct{}
	once sync.Once
}

type clientWindow struct {
	count   int
	resetAt time.Time
}

func NewFixedWindowRateLimiter(limit int, window time.Duration) *FixedWindowRateLimiter {
	rl := &FixedWindowRateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*clientWindow),
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether the client may proceed. When denied it also
// returns how long until the window resets.
func (rl *FixedWindowRateLimiter) Allow(client string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[client]
	if !ok || !now.Before(w.resetAt) {
		w = &clientWindow{resetAt: now.Truncate(rl.window).Add(rl.window)}
		rl.windows[client] = w
	}
	if w.count >= rl.limit {
		return false, time.Until(w.resetAt)
	}
	w.count++
	return true, 0
}

// sweep drops windows whose reset time has passed so idle clients do
// not accumulate.
func (rl *FixedWindowRateLimiter) sweep() {
	tick := time.NewTicker(rl.window)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			now := time.Now()
			rl.mu.Lock()
			for client, w := range rl.windows {
				if now.After(w.resetAt) {
					delete(rl.windows, client)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stop)
	})
}
