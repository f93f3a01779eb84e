package verifier

import (
	"context"
	"time"

	"campus-tickets-backend/logger"
)

// ScanQueue decouples a continuous scanner feed from verification. The
// scanner emits many reads per second for the same badge held in front of
// it; the queue keeps at most one pending scan, drops the rest, and spaces
// deliveries by a debounce window so one badge produces one verification.
type ScanQueue struct {
	scans    chan string
	debounce time.Duration
}

func NewScanQueue(debounce time.Duration) *ScanQueue {
	return &ScanQueue{
		scans:    make(chan string, 1),
		debounce: debounce,
	}
}

// Offer enqueues a raw scan if no scan is already pending. It never blocks;
// the return value reports whether the scan was accepted.
func (q *ScanQueue) Offer(raw string) bool {
	select {
	case q.scans <- raw:
		return true
	default:
		return false
	}
}

// Run consumes scans until ctx is done, invoking handle for each and then
// sleeping out the debounce window. Single consumer; call it once.
func (q *ScanQueue) Run(ctx context.Context, handle func(ctx context.Context, raw string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-q.scans:
			handle(ctx, raw)
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.debounce):
			}
		}
	}
}

// Drain empties any pending scan, used when the operator switches events so
// a stale scan is not verified against the new event.
func (q *ScanQueue) Drain(ctx context.Context) {
	select {
	case raw := <-q.scans:
		logger.Debugf(ctx, "drain: discarding pending scan of %d bytes", len(raw))
	default:
	}
}
