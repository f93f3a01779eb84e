package issuer

import (
	"fmt"
	"sync"
	"time"
)

// purchaseLocks serializes purchase attempts per (buyer, event) pair within
// this process. A failed attempt leaves the key cooling down for a window so
// the buyer cannot immediately re-fire a reserve that may already have landed.
type purchaseLocks struct {
	mu       sync.Mutex
	inFlight map[string]bool
	coolOff  map[string]time.Time
	window   time.Duration
}

func newPurchaseLocks(window time.Duration) *purchaseLocks {
	return &purchaseLocks{
		inFlight: make(map[string]bool),
		coolOff:  make(map[string]time.Time),
		window:   window,
	}
}

func lockKey(buyer string, eventAppID uint64) string {
	return fmt.Sprintf("%s:%d", buyer, eventAppID)
}

func (l *purchaseLocks) acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[key] {
		return ErrPurchaseInFlight
	}
	if until, ok := l.coolOff[key]; ok {
		if time.Now().Before(until) {
			return ErrPurchaseInFlight
		}
		delete(l.coolOff, key)
	}

	l.inFlight[key] = true
	return nil
}

// release clears the in-flight mark. After a failure the key stays blocked
// for the cooldown window; after success it is free immediately.
func (l *purchaseLocks) release(key string, failed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.inFlight, key)
	if failed {
		l.coolOff[key] = time.Now().Add(l.window)
	}
}
