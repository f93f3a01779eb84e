package model

// ResaleListing is an open offer to sell an owned, not yet used ticket.
// MaxResalePriceMicros is fixed at listing time from the price the seller
// actually paid and is the anti-scalping cap.
type ResaleListing struct {
	ID                   string `json:"id"`
	AssetID              uint64 `json:"asset_id"`
	EventAppID           uint64 `json:"event_app_id"`
	EventTitle           string `json:"event_title,omitempty"`
	Seller               string `json:"seller"`
	AskPriceMicros       uint64 `json:"ask_price_micros"`
	OriginalPriceMicros  uint64 `json:"original_price_micros"`
	MaxResalePriceMicros uint64 `json:"max_resale_price_micros"`
	ListedAt             int64  `json:"listed_at"`
}

// SaleRecord is an immutable audit entry for a completed resale. Records are
// append only, never updated or deleted.
type SaleRecord struct {
	Seller      string `json:"seller"`
	Buyer       string `json:"buyer"`
	PriceMicros uint64 `json:"price_micros"`
	Timestamp   int64  `json:"timestamp"`
}
