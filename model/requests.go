package model

// Request envelopes follow the marketplace convention of wrapping the payload
// under a data key together with the caller's auth token.

type Auth struct {
	Token   string `json:"token,omitempty"`
	Address string `json:"address,omitempty"`
}

type RegisterHolderRequest struct {
	Data struct {
		Auth *Auth `json:"auth,omitempty"`
	} `json:"data"`
}

type RegisterEventRequest struct {
	Data struct {
		AppID uint64 `json:"app_id"`
		Auth  *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}

type PurchaseRequest struct {
	Data struct {
		EventAppID uint64 `json:"event_app_id"`
		Buyer      string `json:"buyer"`
		Auth       *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}

type CheckInRequest struct {
	Data struct {
		EventAppID uint64 `json:"event_app_id"`
		RawScan    string `json:"raw_scan"`
		Verifier   string `json:"verifier"`
		Auth       *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}

type ListTicketRequest struct {
	Data struct {
		AssetID        uint64 `json:"asset_id"`
		EventAppID     uint64 `json:"event_app_id"`
		Seller         string `json:"seller"`
		AskPriceMicros uint64 `json:"ask_price_micros"`
		Auth           *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}

type BuyListingRequest struct {
	Data struct {
		ListingID string `json:"listing_id"`
		Buyer     string `json:"buyer"`
		Auth      *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}

type CancelListingRequest struct {
	Data struct {
		ListingID string `json:"listing_id"`
		Seller    string `json:"seller"`
		Auth      *Auth  `json:"auth,omitempty"`
	} `json:"data"`
}
