package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/monitoring"
	"campus-tickets-backend/projection"

	"github.com/redis/go-redis/v9"
)

// Signatures are structural: an application matches when its global state
// carries every listed key, whatever its name or metadata says.
var (
	TicketingSignature = []string{
		projection.KeyTicketPrice,
		projection.KeyMaxSupply,
		projection.KeySoldCount,
		projection.KeyEventDate,
		projection.KeySaleEndDate,
		projection.KeyIsSaleActive,
	}

	FundraisingSignature = []string{
		projection.KeyGoalAmount,
		projection.KeyRaisedAmount,
		projection.KeyMilestoneCount,
		projection.KeyCurrentMilestone,
		projection.KeyContributorCount,
		projection.KeyIsActive,
		projection.KeyDeadline,
	}
)

const ticketingCacheKey = "discovery:ticketing_apps"

// Ledger is the slice of the gateway discovery needs.
type Ledger interface {
	SearchApplications(ctx context.Context) ([]algorand.AppState, error)
	ApplicationState(ctx context.Context, appID uint64) (*algorand.AppState, error)
}

// Discovery finds tickets-capable applications by scanning the indexer and
// caches the result in redis under a short TTL. Registration of a fresh
// deployment invalidates the cache so the new application is visible on the
// next read instead of after the TTL runs out.
type Discovery struct {
	ledger Ledger
	cache  *redis.Client
	ttl    time.Duration
}

func New(ledger Ledger, cache *redis.Client, ttl time.Duration) *Discovery {
	return &Discovery{ledger: ledger, cache: cache, ttl: ttl}
}

// TicketingApps returns the app ids of all deployed ticketing applications.
func (d *Discovery) TicketingApps(ctx context.Context) ([]uint64, error) {
	cached, err := d.cache.Get(ctx, ticketingCacheKey).Result()
	if err == nil {
		var ids []uint64
		if err := json.Unmarshal([]byte(cached), &ids); err == nil {
			monitoring.DiscoveryCacheHit()
			return ids, nil
		}
		logger.Warnf(ctx, "ticketingApps: dropping unreadable cache entry: %+v", err)
	} else if err != redis.Nil {
		// A cache outage degrades to a full scan, it does not fail the read.
		logger.Warnf(ctx, "ticketingApps: cache read failed: %+v", err)
	}
	monitoring.DiscoveryCacheMiss()

	ids, err := d.scan(ctx, TicketingSignature)
	if err != nil {
		return nil, fmt.Errorf("ticketingApps: %w", err)
	}

	payload, err := json.Marshal(ids)
	if err == nil {
		if err := d.cache.Set(ctx, ticketingCacheKey, payload, d.ttl).Err(); err != nil {
			logger.Warnf(ctx, "ticketingApps: cache write failed: %+v", err)
		}
	}

	return ids, nil
}

// Invalidate drops the cached scan result. Called when a new deployment is
// registered.
func (d *Discovery) Invalidate(ctx context.Context) error {
	if err := d.cache.Del(ctx, ticketingCacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate: error dropping cache key: %w", err)
	}
	return nil
}

func (d *Discovery) scan(ctx context.Context, signature []string) ([]uint64, error) {
	apps, err := d.ledger.SearchApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: error listing applications: %w", err)
	}

	ids := []uint64{}
	for i := range apps {
		if Matches(&apps[i], signature) {
			ids = append(ids, apps[i].AppID)
		}
	}
	return ids, nil
}

// Matches reports whether the application's global state carries every key of
// the signature.
func Matches(app *algorand.AppState, signature []string) bool {
	state := projection.Decode(app)
	for _, key := range signature {
		if !state.Has(key) {
			return false
		}
	}
	return true
}

// Describe fetches and projects one candidate application. A candidate whose
// state cannot be fetched is reported as an error to the caller, which skips
// it; a single bad app must never abort a whole listing.
func (d *Discovery) Describe(ctx context.Context, appID uint64) (*algorand.AppState, error) {
	state, err := d.ledger.ApplicationState(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("describe: error fetching state for app %d: %w", appID, err)
	}
	return state, nil
}
