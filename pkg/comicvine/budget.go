package comicvine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Budget is the process-scoped request budget shared by every catalog call.
// It enforces a minimum interval between calls and a rolling hourly cap.
// When the budget is exhausted, Wait blocks until the window frees up rather
// than failing. The window resets with the process; nothing is persisted.
type Budget struct {
	interval *rate.Limiter

	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	now func() time.Time
}

// NewBudget creates a budget allowing perWindow requests per rolling hour
// with at least minInterval between consecutive requests.
func NewBudget(perWindow int, minInterval time.Duration) *Budget {
	interval := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		interval = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Budget{
		interval: interval,
		limit:    perWindow,
		window:   time.Hour,
		stamps:   make([]time.Time, 0, perWindow),
		now:      time.Now,
	}
}

// Wait blocks until a request is allowed, then records it. Returns the
// context error if the caller is cancelled while waiting.
func (b *Budget) Wait(ctx context.Context) error {
	if err := b.interval.Wait(ctx); err != nil {
		return errors.WithStack(err)
	}

	for {
		b.mu.Lock()
		b.prune()
		if len(b.stamps) < b.limit {
			b.stamps = append(b.stamps, b.now())
			b.mu.Unlock()
			return nil
		}
		wait := b.stamps[0].Add(b.window).Sub(b.now())
		b.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WithStack(ctx.Err())
		case <-timer.C:
		}
	}
}

// Remaining reports how many requests are left in the current window.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	return b.limit - len(b.stamps)
}

func (b *Budget) prune() {
	cutoff := b.now().Add(-b.window)
	i := 0
	for i < len(b.stamps) && !b.stamps[i].After(cutoff) {
		i++
	}
	b.stamps = b.stamps[i:]
}
