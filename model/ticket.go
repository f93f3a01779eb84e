package model

// Ticket is a non-fungible credential bound to exactly one holder. CheckedIn
// only ever moves false to true; the transition is driven by the ledger, not
// by this struct.
type Ticket struct {
	AssetID             uint64 `json:"asset_id"`
	EventAppID          uint64 `json:"event_app_id"`
	Holder              string `json:"holder"`
	CheckedIn           bool   `json:"checked_in"`
	PurchasePriceMicros uint64 `json:"purchase_price_micros"`
	Credential          string `json:"credential,omitempty"`
}

// Purchase session states. A session moves reserved -> opted_in -> claimed, or
// stops at one of the failed_at states, in which case the asset may already be
// minted on ledger and the buyer has to be told to check their holdings.
const (
	SessionReserved      = "reserved"
	SessionOptedIn       = "opted_in"
	SessionClaimed       = "claimed"
	SessionFailedReserve = "failed_at_reserve"
	SessionFailedOptIn   = "failed_at_opt_in"
	SessionFailedClaim   = "failed_at_claim"
)

// PurchaseSession is the persisted record of one buyer's issuance attempt.
// Keeping it in the database rather than in memory means a crash between
// reserve and claim is visible afterwards instead of silently lost.
type PurchaseSession struct {
	ID         string `json:"id"`
	Buyer      string `json:"buyer"`
	EventAppID uint64 `json:"event_app_id"`
	AssetID    uint64 `json:"asset_id,omitempty"`
	State      string `json:"state"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Indeterminate reports whether the session stopped after the reservation had
// already hit the ledger. Retrying the reserve step for such a session would
// double-charge the buyer.
func (s PurchaseSession) Indeterminate() bool {
	return s.State == SessionFailedOptIn || s.State == SessionFailedClaim
}
