package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/custody"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/model"
	"campus-tickets-backend/monitoring"

	"github.com/google/uuid"
)

var (
	ErrNonPositivePrice = errors.New("ask price must be positive")
	ErrOverCap          = errors.New("ask price exceeds the resale cap")
	ErrTicketUsed       = errors.New("ticket has already been checked in")
	ErrAlreadyListed    = errors.New("ticket is already listed")
	ErrListingGone      = errors.New("listing no longer exists")
	ErrSelfTrade        = errors.New("seller cannot buy their own listing")
	ErrNotSeller        = errors.New("only the seller can cancel a listing")
	ErrUnknownPrice     = errors.New("original ticket price could not be determined")
)

// Ledger is the slice of the gateway the market needs: the settlement group.
type Ledger interface {
	PayAndTransferAsset(ctx context.Context, buyer, seller *algorand.Account, amountMicros, assetID uint64) (string, error)
}

// PriceLookup resolves an event's current ticket price, used as the cap base
// when the seller's own purchase price is unknown.
type PriceLookup func(ctx context.Context, eventAppID uint64) (uint64, error)

// Market lets a holder re-offer an unused ticket at a bounded price, lets
// another account buy it, and keeps an append-only sale history. A ticket is
// either held, listed, or sold back into a new holder's held set; nothing
// here ever lets a sale close above the cap.
type Market struct {
	store       Store
	ledger      Ledger
	custody     custody.Store
	priceLookup PriceLookup
}

func New(store Store, ledger Ledger, keys custody.Store, priceLookup PriceLookup) *Market {
	return &Market{
		store:       store,
		ledger:      ledger,
		custody:     keys,
		priceLookup: priceLookup,
	}
}

// List creates an open listing for a held, unused ticket. The cap is fixed
// here, once, from the price the seller actually paid.
func (m *Market) List(ctx context.Context, ticket model.Ticket, askPriceMicros uint64, eventTitle string) (*model.ResaleListing, error) {
	if askPriceMicros == 0 {
		return nil, ErrNonPositivePrice
	}
	if ticket.CheckedIn {
		return nil, ErrTicketUsed
	}

	listed, err := m.store.IsAssetListed(ctx, ticket.AssetID)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if listed {
		return nil, ErrAlreadyListed
	}

	original := ticket.PurchasePriceMicros
	if original == 0 && m.priceLookup != nil {
		original, err = m.priceLookup(ctx, ticket.EventAppID)
		if err != nil {
			return nil, fmt.Errorf("list: price lookup failed: %w", err)
		}
	}
	if original == 0 {
		return nil, ErrUnknownPrice
	}

	maxPrice := MaxResalePrice(original)
	if askPriceMicros > maxPrice {
		monitoring.ResaleOperation("list", "over_cap")
		return nil, ErrOverCap
	}

	listing := &model.ResaleListing{
		ID:                   uuid.NewString(),
		AssetID:              ticket.AssetID,
		EventAppID:           ticket.EventAppID,
		EventTitle:           eventTitle,
		Seller:               ticket.Holder,
		AskPriceMicros:       askPriceMicros,
		OriginalPriceMicros:  original,
		MaxResalePriceMicros: maxPrice,
		ListedAt:             time.Now().Unix(),
	}

	if err := m.store.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	monitoring.ResaleOperation("list", "ok")
	return listing, nil
}

// Buy settles a listing: payment and ticket transfer as one atomic group,
// then the audit record. The cap is re-checked here because the settlement is
// the authoritative enforcement point, whatever the listing row says.
func (m *Market) Buy(ctx context.Context, listingID, buyer string) (*model.SaleRecord, error) {
	listing, ok, err := m.store.Listing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if !ok {
		return nil, ErrListingGone
	}

	if buyer == listing.Seller {
		monitoring.ResaleOperation("buy", "self_trade")
		return nil, ErrSelfTrade
	}

	if listing.AskPriceMicros > MaxResalePrice(listing.OriginalPriceMicros) {
		monitoring.ResaleOperation("buy", "over_cap")
		return nil, ErrOverCap
	}

	buyerAccount, ok, err := m.custody.Holder(buyer)
	if err != nil {
		return nil, fmt.Errorf("buy: error fetching buyer account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("buy: buyer account not found")
	}

	sellerAccount, ok, err := m.custody.Holder(listing.Seller)
	if err != nil {
		return nil, fmt.Errorf("buy: error fetching seller account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("buy: seller account not found")
	}

	if _, err := m.ledger.PayAndTransferAsset(ctx, buyerAccount, sellerAccount, listing.AskPriceMicros, listing.AssetID); err != nil {
		monitoring.ResaleOperation("buy", "ledger_rejected")
		return nil, fmt.Errorf("buy: settlement failed: %w", err)
	}

	// Settlement is done on ledger. Local bookkeeping past this point is
	// eventually consistent: failures are logged, never surfaced as a failed
	// buy.
	if _, err := m.store.DeleteListing(ctx, listing.ID); err != nil {
		logger.Errorf(ctx, "buy: sold listing %s could not be removed: %+v", listing.ID, err)
	}

	record := &model.SaleRecord{
		Seller:      listing.Seller,
		Buyer:       buyer,
		PriceMicros: listing.AskPriceMicros,
		Timestamp:   time.Now().Unix(),
	}
	if err := m.store.AppendSaleRecord(ctx, record); err != nil {
		logger.Errorf(ctx, "buy: sale record for listing %s could not be appended: %+v", listing.ID, err)
	}

	monitoring.ResaleOperation("buy", "ok")
	return record, nil
}

// Cancel removes a listing and returns the ticket to the seller's held set.
// No sale record is written; a cancellation is not a sale.
func (m *Market) Cancel(ctx context.Context, listingID, caller string) error {
	listing, ok, err := m.store.Listing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if !ok {
		return ErrListingGone
	}

	if caller != listing.Seller {
		return ErrNotSeller
	}

	deleted, err := m.store.DeleteListing(ctx, listing.ID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if !deleted {
		return ErrListingGone
	}

	monitoring.ResaleOperation("cancel", "ok")
	return nil
}

// Listings returns all open listings.
func (m *Market) Listings(ctx context.Context) ([]model.ResaleListing, error) {
	listings, err := m.store.OpenListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listings: %w", err)
	}
	return listings, nil
}

// History returns the append-only sale history.
func (m *Market) History(ctx context.Context) ([]model.SaleRecord, error) {
	records, err := m.store.SaleHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return records, nil
}
