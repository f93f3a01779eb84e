package market

import (
	"context"
	"errors"
	"testing"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/model"

	"github.com/stretchr/testify/assert"
)

type memStore struct {
	listings map[string]model.ResaleListing
	history  []model.SaleRecord
}

func newMemStore() *memStore {
	return &memStore{listings: make(map[string]model.ResaleListing)}
}

func (s *memStore) CreateListing(ctx context.Context, l *model.ResaleListing) error {
	s.listings[l.ID] = *l
	return nil
}

func (s *memStore) Listing(ctx context.Context, id string) (*model.ResaleListing, bool, error) {
	l, ok := s.listings[id]
	if !ok {
		return nil, false, nil
	}
	return &l, true, nil
}

func (s *memStore) OpenListings(ctx context.Context) ([]model.ResaleListing, error) {
	var out []model.ResaleListing
	for _, l := range s.listings {
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) IsAssetListed(ctx context.Context, assetID uint64) (bool, error) {
	for _, l := range s.listings {
		if l.AssetID == assetID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListedAssetIDs(ctx context.Context) (map[uint64]bool, error) {
	ids := make(map[uint64]bool)
	for _, l := range s.listings {
		ids[l.AssetID] = true
	}
	return ids, nil
}

func (s *memStore) DeleteListing(ctx context.Context, id string) (bool, error) {
	if _, ok := s.listings[id]; !ok {
		return false, nil
	}
	delete(s.listings, id)
	return true, nil
}

func (s *memStore) AppendSaleRecord(ctx context.Context, r *model.SaleRecord) error {
	s.history = append(s.history, *r)
	return nil
}

func (s *memStore) SaleHistory(ctx context.Context) ([]model.SaleRecord, error) {
	return s.history, nil
}

type settlement struct {
	buyer   string
	seller  string
	amount  uint64
	assetID uint64
}

type fakeLedger struct {
	settlements []settlement
	err         error
}

func (f *fakeLedger) PayAndTransferAsset(ctx context.Context, buyer, seller *algorand.Account, amountMicros, assetID uint64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.settlements = append(f.settlements, settlement{buyer.AccountAddress, seller.AccountAddress, amountMicros, assetID})
	return "TXID", nil
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
	return nil, false, nil
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

func heldTicket() model.Ticket {
	return model.Ticket{
		AssetID:             1001,
		EventAppID:          42,
		Holder:              "SELLER",
		PurchasePriceMicros: 1_000_000,
	}
}

func TestMaxResalePrice(t *testing.T) {
	assert.Equal(t, uint64(1_100_000), MaxResalePrice(1_000_000))
	assert.Equal(t, uint64(110), MaxResalePrice(100))
	// 101 * 1.10 = 111.1, floors to 111
	assert.Equal(t, uint64(111), MaxResalePrice(101))
	assert.Equal(t, uint64(0), MaxResalePrice(0))
}

func TestListAcceptsExactCapRejectsOneAbove(t *testing.T) {
	ctx := context.Background()

	m := New(newMemStore(), &fakeLedger{}, custodyFor("SELLER"), nil)
	listing, err := m.List(ctx, heldTicket(), 1_100_000, "Spring Concert")
	assert.NoError(t, err)
	assert.Equal(t, uint64(1_100_000), listing.MaxResalePriceMicros)
	assert.Equal(t, uint64(1_000_000), listing.OriginalPriceMicros)

	m = New(newMemStore(), &fakeLedger{}, custodyFor("SELLER"), nil)
	_, err = m.List(ctx, heldTicket(), 1_100_001, "Spring Concert")
	assert.ErrorIs(t, err, ErrOverCap)
}

func TestListRejectsNonPositiveAndUsedAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := New(store, &fakeLedger{}, custodyFor("SELLER"), nil)

	_, err := m.List(ctx, heldTicket(), 0, "")
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	used := heldTicket()
	used.CheckedIn = true
	_, err = m.List(ctx, used, 100, "")
	assert.ErrorIs(t, err, ErrTicketUsed)

	_, err = m.List(ctx, heldTicket(), 900_000, "")
	assert.NoError(t, err)
	_, err = m.List(ctx, heldTicket(), 900_000, "")
	assert.ErrorIs(t, err, ErrAlreadyListed)
}

func TestListFallsBackToPriceLookup(t *testing.T) {
	ctx := context.Background()
	lookup := func(ctx context.Context, eventAppID uint64) (uint64, error) {
		assert.Equal(t, uint64(42), eventAppID)
		return 2_000_000, nil
	}
	m := New(newMemStore(), &fakeLedger{}, custodyFor("SELLER"), lookup)

	ticket := heldTicket()
	ticket.PurchasePriceMicros = 0
	listing, err := m.List(ctx, ticket, 2_200_000, "")
	assert.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), listing.OriginalPriceMicros)
	assert.Equal(t, uint64(2_200_000), listing.MaxResalePriceMicros)
}

func TestBuySettlesAtomicallyAndRecords(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{}
	m := New(store, ledger, custodyFor("SELLER", "BUYER"), nil)

	listing, err := m.List(ctx, heldTicket(), 1_050_000, "Spring Concert")
	assert.NoError(t, err)

	record, err := m.Buy(ctx, listing.ID, "BUYER")
	assert.NoError(t, err)

	assert.Len(t, ledger.settlements, 1)
	assert.Equal(t, settlement{"BUYER", "SELLER", 1_050_000, 1001}, ledger.settlements[0])

	assert.Equal(t, "SELLER", record.Seller)
	assert.Equal(t, "BUYER", record.Buyer)
	assert.Equal(t, uint64(1_050_000), record.PriceMicros)

	// Listing gone, record appended.
	assert.Empty(t, store.listings)
	assert.Len(t, store.history, 1)
}

func TestBuyRejectsSelfTrade(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{}
	m := New(store, ledger, custodyFor("SELLER"), nil)

	listing, err := m.List(ctx, heldTicket(), 1_000_000, "")
	assert.NoError(t, err)

	_, err = m.Buy(ctx, listing.ID, "SELLER")
	assert.ErrorIs(t, err, ErrSelfTrade)
	assert.Empty(t, ledger.settlements)
	assert.Len(t, store.listings, 1)
}

func TestBuyReEnforcesCapAtSettlement(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{}
	m := New(store, ledger, custodyFor("SELLER", "BUYER"), nil)

	// A listing row that somehow carries an over-cap ask must still be
	// refused at the point of transfer.
	store.listings["rogue"] = model.ResaleListing{
		ID:                  "rogue",
		AssetID:             1001,
		Seller:              "SELLER",
		AskPriceMicros:      1_200_000,
		OriginalPriceMicros: 1_000_000,
	}

	_, err := m.Buy(ctx, "rogue", "BUYER")
	assert.ErrorIs(t, err, ErrOverCap)
	assert.Empty(t, ledger.settlements)
}

func TestBuyLedgerRejectionSurfacesAndKeepsListing(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := &fakeLedger{err: errors.New("overspend")}
	m := New(store, ledger, custodyFor("SELLER", "BUYER"), nil)

	listing, err := m.List(ctx, heldTicket(), 1_000_000, "")
	assert.NoError(t, err)

	_, err = m.Buy(ctx, listing.ID, "BUYER")
	assert.Error(t, err)
	assert.Len(t, store.listings, 1)
	assert.Empty(t, store.history)
}

func TestBuyMissingListing(t *testing.T) {
	m := New(newMemStore(), &fakeLedger{}, custodyFor(), nil)
	_, err := m.Buy(context.Background(), "missing", "BUYER")
	assert.ErrorIs(t, err, ErrListingGone)
}

func TestCancelOnlyBySeller(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := New(store, &fakeLedger{}, custodyFor("SELLER"), nil)

	listing, err := m.List(ctx, heldTicket(), 1_000_000, "")
	assert.NoError(t, err)

	assert.ErrorIs(t, m.Cancel(ctx, listing.ID, "SOMEONE_ELSE"), ErrNotSeller)
	assert.Len(t, store.listings, 1)

	assert.NoError(t, m.Cancel(ctx, listing.ID, "SELLER"))
	assert.Empty(t, store.listings)
	assert.Empty(t, store.history)
}

func TestCancelThenRelistRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := New(store, &fakeLedger{}, custodyFor("SELLER"), nil)

	first, err := m.List(ctx, heldTicket(), 1_050_000, "Spring Concert")
	assert.NoError(t, err)
	assert.NoError(t, m.Cancel(ctx, first.ID, "SELLER"))

	second, err := m.List(ctx, heldTicket(), 1_050_000, "Spring Concert")
	assert.NoError(t, err)

	// Equivalent listing, fresh identity.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.AssetID, second.AssetID)
	assert.Equal(t, first.AskPriceMicros, second.AskPriceMicros)
	assert.Equal(t, first.OriginalPriceMicros, second.OriginalPriceMicros)
	assert.Equal(t, first.MaxResalePriceMicros, second.MaxResalePriceMicros)
	assert.Equal(t, first.Seller, second.Seller)
}
