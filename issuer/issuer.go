package issuer

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
	"campus-tickets-backend/projection"

	"github.com/google/uuid"
)

// staleSessionAfter is how old an unfinished session must be before a new
// purchase attempt reconciles it instead of being blocked by it.
const staleSessionAfter = 10 * time.Minute

var (
	ErrSaleClosed       = errors.New("ticket sales are not active for this event")
	ErrSaleEnded        = errors.New("the sale window for this event has ended")
	ErrSoldOut          = errors.New("event is sold out")
	ErrPurchaseInFlight = errors.New("a purchase for this buyer and event is already in flight")
)

// IndeterminateError reports a purchase that failed after the reservation had
// already hit the ledger. The asset may exist and may even be deliverable;
// the buyer must check their holdings before retrying, because re-running the
// reserve step would charge them again.
type IndeterminateError struct {
	Session *model.PurchaseSession
	Err     error
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("purchase in indeterminate state (%s): %v", e.Session.State, e.Err)
}

func (e *IndeterminateError) Unwrap() error {
	return e.Err
}

// Ledger is the slice of the gateway the issuer needs.
type Ledger interface {
	ReserveAsset(ctx context.Context, buyer, eventAccount *algorand.Account, appID, priceMicros uint64) (uint64, error)
	OptInAsset(ctx context.Context, holder *algorand.Account, assetID uint64) error
	TransferAsset(ctx context.Context, from *algorand.Account, to string, assetID uint64) (string, error)
	ApplicationState(ctx context.Context, appID uint64) (*algorand.AppState, error)
}

// Issuer converts a payment intent into a claimed, holder-owned ticket via
// the reserve, opt-in, claim sequence. The three steps are not atomic as a
// group, so each attempt is tracked as a persisted session and guarded by a
// per-(buyer,event) lock.
type Issuer struct {
	ledger  Ledger
	store   Store
	custody custody.Store
	locks   *purchaseLocks
}

func New(ledger Ledger, store Store, keys custody.Store, cooldown time.Duration) *Issuer {
	return &Issuer{
		ledger:  ledger,
		store:   store,
		custody: keys,
		locks:   newPurchaseLocks(cooldown),
	}
}

// Purchase runs the full issuance saga for one buyer against one event.
func (i *Issuer) Purchase(ctx context.Context, event model.EventDescriptor, buyer string) (*model.Ticket, error) {
	if !event.IsSaleActive {
		return nil, ErrSaleClosed
	}
	if event.SaleEndDate > 0 && time.Now().Unix() >= event.SaleEndDate {
		return nil, ErrSaleEnded
	}
	if event.SoldOut() {
		return nil, ErrSoldOut
	}

	key := lockKey(buyer, event.AppID)
	if err := i.locks.acquire(key); err != nil {
		return nil, err
	}

	ticket, err := i.purchase(ctx, event, buyer)
	i.locks.release(key, err != nil)
	return ticket, err
}

func (i *Issuer) purchase(ctx context.Context, event model.EventDescriptor, buyer string) (*model.Ticket, error) {
	// A session persisted by an earlier attempt (or an earlier process) that
	// never reached a terminal state blocks further purchases until it is
	// reconciled against the ledger.
	if active, ok, err := i.store.ActiveSession(ctx, buyer, event.AppID); err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	} else if ok {
		if time.Since(time.Unix(active.UpdatedAt, 0)) < staleSessionAfter {
			return nil, ErrPurchaseInFlight
		}
		// Abandoned by an earlier process. Park it as failed at the step it
		// stopped at; the reservation may still have landed, so the buyer is
		// sent to their holdings rather than through another reserve.
		logger.Warnf(ctx, "purchase: reconciling stale session %s for %s on event %d", active.ID, buyer, event.AppID)
		failState := model.SessionFailedReserve
		if active.State == model.SessionOptedIn {
			failState = model.SessionFailedClaim
		} else if active.AssetID > 0 {
			failState = model.SessionFailedOptIn
		}
		i.fail(ctx, active, failState, active.AssetID)
		return nil, &IndeterminateError{Session: active, Err: errors.New("previous purchase attempt was abandoned")}
	}

	buyerAccount, ok, err := i.custody.Holder(buyer)
	if err != nil {
		return nil, fmt.Errorf("purchase: error fetching buyer account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("purchase: buyer account not found")
	}

	eventAccount, ok, err := i.custody.EventAccount(event.AppID)
	if err != nil {
		return nil, fmt.Errorf("purchase: error fetching event account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("purchase: event operating account not found")
	}

	session := &model.PurchaseSession{
		ID:         uuid.NewString(),
		Buyer:      buyer,
		EventAppID: event.AppID,
		State:      model.SessionReserved,
		UpdatedAt:  time.Now().Unix(),
	}
	if err := i.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	// Step 1: reserve. Payment, buy_ticket call and mint land as one group.
	assetID, err := i.ledger.ReserveAsset(ctx, buyerAccount, eventAccount, event.AppID, event.TicketPriceMicros)
	if err != nil {
		i.fail(ctx, session, model.SessionFailedReserve, 0)
		monitoring.PurchaseEnded(model.SessionFailedReserve)
		return nil, fmt.Errorf("purchase: reserve failed: %w", err)
	}
	session.AssetID = assetID
	if err := i.store.UpdateSession(ctx, session.ID, model.SessionReserved, assetID); err != nil {
		logger.Errorf(ctx, "purchase: could not record reserved asset %d: %+v", assetID, err)
	}

	// Step 2: opt-in. From here on a failure leaves a minted, undelivered
	// asset behind; the caller gets an indeterminate result, not a plain
	// failure.
	if err := i.ledger.OptInAsset(ctx, buyerAccount, assetID); err != nil {
		i.fail(ctx, session, model.SessionFailedOptIn, assetID)
		monitoring.PurchaseEnded(model.SessionFailedOptIn)
		return nil, &IndeterminateError{Session: session, Err: err}
	}
	session.State = model.SessionOptedIn
	if err := i.store.UpdateSession(ctx, session.ID, model.SessionOptedIn, assetID); err != nil {
		logger.Errorf(ctx, "purchase: could not record opt-in for asset %d: %+v", assetID, err)
	}

	// Step 3: claim.
	if _, err := i.ledger.TransferAsset(ctx, eventAccount, buyer, assetID); err != nil {
		i.fail(ctx, session, model.SessionFailedClaim, assetID)
		monitoring.PurchaseEnded(model.SessionFailedClaim)
		return nil, &IndeterminateError{Session: session, Err: err}
	}

	session.State = model.SessionClaimed
	if err := i.store.UpdateSession(ctx, session.ID, model.SessionClaimed, assetID); err != nil {
		logger.Errorf(ctx, "purchase: could not record claim for asset %d: %+v", assetID, err)
	}
	monitoring.PurchaseEnded(model.SessionClaimed)

	// Counters live on ledger; re-project them instead of bumping local
	// copies.
	if state, err := i.ledger.ApplicationState(ctx, event.AppID); err != nil {
		logger.Warnf(ctx, "purchase: could not re-project event %d after claim: %+v", event.AppID, err)
	} else {
		updated := projection.Event(state)
		logger.Infof(ctx, "purchase: event %d now sold %d/%d to %d unique buyers",
			event.AppID, updated.SoldCount, updated.MaxSupply, updated.UniqueBuyers)
	}

	return &model.Ticket{
		AssetID:             assetID,
		EventAppID:          event.AppID,
		Holder:              buyer,
		PurchasePriceMicros: event.TicketPriceMicros,
	}, nil
}

func (i *Issuer) fail(ctx context.Context, session *model.PurchaseSession, state string, assetID uint64) {
	session.State = state
	if err := i.store.UpdateSession(ctx, session.ID, state, assetID); err != nil {
		logger.Errorf(ctx, "fail: could not record session %s failure %s: %+v", session.ID, state, err)
	}
}

// Sessions returns the buyer's purchase sessions, most recent last. The
// indeterminate ones are what "check my tickets" is about.
func (i *Issuer) Sessions(ctx context.Context, buyer string) ([]model.PurchaseSession, error) {
	sessions, err := i.store.SessionsForBuyer(ctx, buyer)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	return sessions, nil
}
