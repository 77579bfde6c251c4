package modelclient

import (
	"context"
	"sync"
	"time"
)

const budgetWindow = time.Minute

type tokenEntry struct {
	at     time.Time
	tokens int
}

// Budget enforces a sliding one-minute request and token ceiling. Entries
// older than 60s are purged before every check, so a full minute of
// inactivity resets both trackers. Safe for concurrent callers: the mutex is
// the single shared resource between in-flight requests.
type Budget struct {
	mu       sync.Mutex
	rpm      int
	tpm      int
	requests []time.Time
	tokens   []tokenEntry
	clock    func() time.Time
}

// NewBudget creates a budget with the given per-minute ceilings. clock may be
// nil, in which case time.Now is used; tests inject a fake.
func NewBudget(rpm, tpm int, clock func() time.Time) *Budget {
	if clock == nil {
		clock = time.Now
	}
	return &Budget{
		rpm:   rpm,
		tpm:   tpm,
		clock: clock,
	}
}

// Acquire blocks until both budgets have headroom for one request consuming
// an estimated number of tokens, then records the request and reserves the
// estimate. It never busy waits: between checks it sleeps until the oldest
// window entry expires.
func (b *Budget) Acquire(ctx context.Context, estimatedTokens int) error {
	for {
		if b.TryAcquire(estimatedTokens) {
			return nil
		}

		b.mu.Lock()
		wait := b.nextExpiry(b.clock())
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryAcquire records the request and reserves the token estimate if both
// budgets have headroom, without blocking. The reservation keeps concurrent
// in-flight requests visible to each other; Record reconciles it against the
// usage the service reports.
func (b *Budget) TryAcquire(estimatedTokens int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	b.purge(now)

	if len(b.requests)+1 > b.rpm {
		return false
	}
	if b.tokenTotal()+estimatedTokens > b.tpm {
		return false
	}

	b.requests = append(b.requests, now)
	if estimatedTokens > 0 {
		b.tokens = append(b.tokens, tokenEntry{at: now, tokens: estimatedTokens})
	}
	return true
}

// Record reconciles a request's reserved estimate with the usage the service
// reported, adjusting the token window by the difference. A request that
// never completes leaves its reservation in place until it ages out of the
// window.
func (b *Budget) Record(estimatedTokens, actualTokens int) {
	if actualTokens <= 0 || actualTokens == estimatedTokens {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, tokenEntry{at: b.clock(), tokens: actualTokens - estimatedTokens})
}

// purge discards entries older than the window. Caller holds the mutex.
func (b *Budget) purge(now time.Time) {
	cutoff := now.Add(-budgetWindow)

	kept := b.requests[:0]
	for _, at := range b.requests {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.requests = kept

	keptTokens := b.tokens[:0]
	for _, e := range b.tokens {
		if e.at.After(cutoff) {
			keptTokens = append(keptTokens, e)
		}
	}
	b.tokens = keptTokens
}

func (b *Budget) tokenTotal() int {
	total := 0
	for _, e := range b.tokens {
		total += e.tokens
	}
	return total
}

// nextExpiry returns how long until the oldest window entry falls out,
// bounded below so wakeups stay coarse. Caller holds the mutex.
func (b *Budget) nextExpiry(now time.Time) time.Duration {
	const minSleep = 50 * time.Millisecond

	var oldest time.Time
	if len(b.requests) > 0 {
		oldest = b.requests[0]
	}
	if len(b.tokens) > 0 && (oldest.IsZero() || b.tokens[0].at.Before(oldest)) {
		oldest = b.tokens[0].at
	}
	if oldest.IsZero() {
		return minSleep
	}

	wait := oldest.Add(budgetWindow).Sub(now)
	if wait < minSleep {
		wait = minSleep
	}
	return wait
}
