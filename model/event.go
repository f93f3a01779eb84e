package model

// EventDescriptor is the projection of one ticketing application's global
// state. Counters come straight from the ledger; the service never maintains
// its own copy of sold_count or unique_buyers.
type EventDescriptor struct {
	AppID             uint64 `json:"app_id"`
	Organizer         string `json:"organizer,omitempty"`
	Title             string `json:"title,omitempty"`
	Venue             string `json:"venue,omitempty"`
	Description       string `json:"description,omitempty"`
	TicketPriceMicros uint64 `json:"ticket_price_micros"`
	MaxSupply         uint64 `json:"max_supply"`
	SoldCount         uint64 `json:"sold_count"`
	UniqueBuyers      uint64 `json:"unique_buyers"`
	EventDate         int64  `json:"event_date"`
	SaleEndDate       int64  `json:"sale_end_date"`
	IsSaleActive      bool   `json:"is_sale_active"`
}

// SoldOut reports whether every ticket the contract will ever mint has been
// sold. sold_count can never exceed max_supply on ledger.
func (e EventDescriptor) SoldOut() bool {
	return e.MaxSupply > 0 && e.SoldCount >= e.MaxSupply
}
