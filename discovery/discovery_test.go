package discovery

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"campus-tickets-backend/algorand"

	"github.com/algorand/go-algorand-sdk/client/v2/common/models"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type fakeLedger struct {
	apps      []algorand.AppState
	searchErr error
	stateErr  error
	scans     int
}

func (f *fakeLedger) SearchApplications(ctx context.Context) ([]algorand.AppState, error) {
	f.scans++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.apps, nil
}

func (f *fakeLedger) ApplicationState(ctx context.Context, appID uint64) (*algorand.AppState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	for i := range f.apps {
		if f.apps[i].AppID == appID {
			return &f.apps[i], nil
		}
	}
	return nil, errors.New("application does not exist")
}

func appWithKeys(id uint64, keys ...string) algorand.AppState {
	var kvs []models.TealKeyValue
	for _, k := range keys {
		kvs = append(kvs, models.TealKeyValue{
			Key:   base64.StdEncoding.EncodeToString([]byte(k)),
			Value: models.TealValue{Type: 2, Uint: 1},
		})
	}
	return algorand.AppState{AppID: id, GlobalState: kvs}
}

func ticketingApp(id uint64) algorand.AppState {
	return appWithKeys(id, TicketingSignature...)
}

func TestTicketingAppsCacheMissScansAndCaches(t *testing.T) {
	ledger := &fakeLedger{apps: []algorand.AppState{
		ticketingApp(42),
		appWithKeys(43, FundraisingSignature...),
		appWithKeys(44, "ticket_price"), // partial signature, no match
	}}
	cache, mock := redismock.NewClientMock()
	mock.ExpectGet(ticketingCacheKey).RedisNil()
	mock.ExpectSet(ticketingCacheKey, []byte("[42]"), 30*time.Second).SetVal("OK")

	d := New(ledger, cache, 30*time.Second)
	ids, err := d.TicketingApps(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []uint64{42}, ids)
	assert.Equal(t, 1, ledger.scans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketingAppsCacheHitSkipsScan(t *testing.T) {
	ledger := &fakeLedger{}
	cache, mock := redismock.NewClientMock()
	mock.ExpectGet(ticketingCacheKey).SetVal("[7,8]")

	d := New(ledger, cache, 30*time.Second)
	ids, err := d.TicketingApps(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []uint64{7, 8}, ids)
	assert.Equal(t, 0, ledger.scans)
}

func TestInvalidateDropsCacheKey(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	mock.ExpectDel(ticketingCacheKey).SetVal(1)

	d := New(&fakeLedger{}, cache, 30*time.Second)
	assert.NoError(t, d.Invalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketingAppsScanErrorSurfaces(t *testing.T) {
	ledger := &fakeLedger{searchErr: errors.New("indexer down")}
	cache, mock := redismock.NewClientMock()
	mock.ExpectGet(ticketingCacheKey).RedisNil()

	d := New(ledger, cache, 30*time.Second)
	_, err := d.TicketingApps(context.Background())
	assert.Error(t, err)
}

func TestMatchesIsStructural(t *testing.T) {
	full := ticketingApp(1)
	assert.True(t, Matches(&full, TicketingSignature))

	partial := appWithKeys(2, "ticket_price", "max_supply")
	assert.False(t, Matches(&partial, TicketingSignature))

	// Extra keys do not disqualify a match.
	extra := appWithKeys(3, append([]string{"something_else"}, TicketingSignature...)...)
	assert.True(t, Matches(&extra, TicketingSignature))
}
