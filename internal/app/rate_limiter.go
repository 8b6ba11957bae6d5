package app

import (
	"errors"
	"sync"
	"time"

	"github.com/Meloken/voicehub/internal/domain"
)

var ErrRateLimited = errors.New("too many messages, slow down")

// TextRateLimiter bounds text-message frequency per connection with a
// sliding window over recent send times.
type TextRateLimiter struct {
	mu      sync.Mutex
	history map[domain.ConnID][]time.Time
	limit   int
	window  time.Duration
}

func NewTextRateLimiter(limit int, window time.Duration) *TextRateLimiter {
	return &TextRateLimiter{
		history: make(map[domain.ConnID][]time.Time),
		limit:   limit,
		window:  window,
	}
}

func (rl *TextRateLimiter) Allow(id domain.ConnID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	rl.history[id] = append(fresh, now)
	return true
}

func (rl *TextRateLimiter) Forget(id domain.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
