package issuer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/model"

	"github.com/stretchr/testify/assert"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*model.PurchaseSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*model.PurchaseSession)}
}

func (s *memStore) CreateSession(ctx context.Context, session *model.PurchaseSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memStore) UpdateSession(ctx context.Context, id, state string, assetID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return errors.New("no row updated")
	}
	session.State = state
	session.AssetID = assetID
	session.UpdatedAt = time.Now().Unix()
	return nil
}

func (s *memStore) ActiveSession(ctx context.Context, buyer string, eventAppID uint64) (*model.PurchaseSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.Buyer == buyer && session.EventAppID == eventAppID &&
			(session.State == model.SessionReserved || session.State == model.SessionOptedIn) {
			copied := *session
			return &copied, true, nil
		}
	}
	return nil, false, nil
}

func (s *memStore) SessionsForBuyer(ctx context.Context, buyer string) ([]model.PurchaseSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PurchaseSession
	for _, session := range s.sessions {
		if session.Buyer == buyer {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *memStore) AssetsForEvent(ctx context.Context, eventAppID uint64) (map[uint64]bool, error) {
	return map[uint64]bool{}, nil
}

func (s *memStore) CheckedInAssets(ctx context.Context) (map[uint64]bool, error) {
	return map[uint64]bool{}, nil
}

func (s *memStore) MarkCheckedIn(ctx context.Context, assetID uint64) error {
	return nil
}

// fakeLedger enforces supply at reserve time the way the contract does.
type fakeLedger struct {
	mu         sync.Mutex
	supply     uint64
	sold       uint64
	nextAsset  uint64
	reserveErr error
	optInErr   error
	claimErr   error
	reserves   int
	claims     int
}

func (f *fakeLedger) ReserveAsset(ctx context.Context, buyer, eventAccount *algorand.Account, appID, priceMicros uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserves++
	if f.reserveErr != nil {
		return 0, f.reserveErr
	}
	if f.sold >= f.supply {
		return 0, errors.New("logic eval error: sold out")
	}
	f.sold++
	f.nextAsset++
	return 1000 + f.nextAsset, nil
}

func (f *fakeLedger) OptInAsset(ctx context.Context, holder *algorand.Account, assetID uint64) error {
	return f.optInErr
}

func (f *fakeLedger) TransferAsset(ctx context.Context, from *algorand.Account, to string, assetID uint64) (string, error) {
	if f.claimErr != nil {
		return "", f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	return "TXID", nil
}

func (f *fakeLedger) ApplicationState(ctx context.Context, appID uint64) (*algorand.AppState, error) {
	return &algorand.AppState{AppID: appID}, nil
}

type fakeCustody struct {
	accounts map[string]*algorand.Account
}

func (f *fakeCustody) Holder(address string) (*algorand.Account, bool, error) {
	a, ok := f.accounts[address]
	return a, ok, nil
}

func (f *fakeCustody) SaveHolder(account *algorand.Account) error {
	f.accounts[account.AccountAddress] = account
	return nil
}

func (f *fakeCustody) EventAccount(appID uint64) (*algorand.Account, bool, error) {
	return &algorand.Account{AccountAddress: "EVENTACCT"}, true, nil
}

func (f *fakeCustody) SaveEventAccount(appID uint64, account *algorand.Account) error {
	return nil
}

func custodyFor(addresses ...string) *fakeCustody {
	c := &fakeCustody{accounts: make(map[string]*algorand.Account)}
	for _, a := range addresses {
		c.accounts[a] = &algorand.Account{AccountAddress: a}
	}
	return c
}

func openEvent() model.EventDescriptor {
	return model.EventDescriptor{
		AppID:             42,
		TicketPriceMicros: 1_000_000,
		MaxSupply:         100,
		SoldCount:         10,
		SaleEndDate:       time.Now().Add(time.Hour).Unix(),
		IsSaleActive:      true,
	}
}

func TestPurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{supply: 100}
	i := New(ledger, store, custodyFor("BUYER"), time.Minute)

	ticket, err := i.Purchase(ctx, openEvent(), "BUYER")
	assert.NoError(t, err)
	assert.Equal(t, "BUYER", ticket.Holder)
	assert.Equal(t, uint64(42), ticket.EventAppID)
	assert.Equal(t, uint64(1_000_000), ticket.PurchasePriceMicros)
	assert.NotZero(t, ticket.AssetID)

	sessions, err := i.Sessions(ctx, "BUYER")
	assert.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, model.SessionClaimed, sessions[0].State)
	assert.Equal(t, ticket.AssetID, sessions[0].AssetID)
}

func TestPurchasePreconditions(t *testing.T) {
	ctx := context.Background()
	i := New(&fakeLedger{supply: 100}, newMemStore(), custodyFor("BUYER"), time.Minute)

	closed := openEvent()
	closed.IsSaleActive = false
	_, err := i.Purchase(ctx, closed, "BUYER")
	assert.ErrorIs(t, err, ErrSaleClosed)

	ended := openEvent()
	ended.SaleEndDate = time.Now().Add(-time.Hour).Unix()
	_, err = i.Purchase(ctx, ended, "BUYER")
	assert.ErrorIs(t, err, ErrSaleEnded)

	soldOut := openEvent()
	soldOut.SoldCount = soldOut.MaxSupply
	_, err = i.Purchase(ctx, soldOut, "BUYER")
	assert.ErrorIs(t, err, ErrSoldOut)
}

func TestPurchaseReserveFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{supply: 100, reserveErr: errors.New("overspend")}
	i := New(ledger, store, custodyFor("BUYER"), time.Minute)

	_, err := i.Purchase(ctx, openEvent(), "BUYER")
	assert.Error(t, err)

	var indeterminate *IndeterminateError
	assert.False(t, errors.As(err, &indeterminate), "reserve failure is a plain failure, nothing is reserved")

	sessions, _ := i.Sessions(ctx, "BUYER")
	assert.Len(t, sessions, 1)
	assert.Equal(t, model.SessionFailedReserve, sessions[0].State)
}

func TestPurchaseOptInFailureIsIndeterminate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{supply: 100, optInErr: errors.New("below min balance")}
	i := New(ledger, store, custodyFor("BUYER"), time.Minute)

	_, err := i.Purchase(ctx, openEvent(), "BUYER")

	var indeterminate *IndeterminateError
	assert.True(t, errors.As(err, &indeterminate))
	assert.Equal(t, model.SessionFailedOptIn, indeterminate.Session.State)
	assert.True(t, indeterminate.Session.Indeterminate())
	assert.NotZero(t, indeterminate.Session.AssetID)
}

func TestPurchaseClaimFailureIsIndeterminate(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{supply: 100, claimErr: errors.New("asset frozen")}
	i := New(ledger, newMemStore(), custodyFor("BUYER"), time.Minute)

	_, err := i.Purchase(ctx, openEvent(), "BUYER")

	var indeterminate *IndeterminateError
	assert.True(t, errors.As(err, &indeterminate))
	assert.Equal(t, model.SessionFailedClaim, indeterminate.Session.State)
}

func TestPurchaseReEntrantCallBlocked(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{supply: 100, optInErr: errors.New("boom")}
	i := New(ledger, newMemStore(), custodyFor("BUYER"), time.Hour)

	_, err := i.Purchase(ctx, openEvent(), "BUYER")
	assert.Error(t, err)

	// Failure leaves the key cooling down; an immediate retry is refused
	// without touching the ledger again.
	reserves := ledger.reserves
	_, err = i.Purchase(ctx, openEvent(), "BUYER")
	assert.ErrorIs(t, err, ErrPurchaseInFlight)
	assert.Equal(t, reserves, ledger.reserves)
}

func TestLastTicketRace(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{supply: 1}
	store := newMemStore()
	i := New(ledger, store, custodyFor("ALICE", "BOB"), time.Minute)

	event := openEvent()
	event.MaxSupply = 1
	event.SoldCount = 0

	var wg sync.WaitGroup
	results := make([]error, 2)
	for idx, buyer := range []string{"ALICE", "BOB"} {
		wg.Add(1)
		go func(idx int, buyer string) {
			defer wg.Done()
			_, results[idx] = i.Purchase(ctx, event, buyer)
		}(idx, buyer)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of the two buyers gets the last ticket")
	assert.Equal(t, 1, ledger.claims)
}
