package response

import (
	"encoding/json"
	"net/http"

	"campus-tickets-backend/model"
)

type SuccessResponse struct {
	Data       interface{} `json:"data"`
	StatusCode int         `json:"-"`
}

// Data is the success payload envelope; only the fields relevant to the
// handler are populated.
type Data struct {
	Events      []model.EventDescriptor `json:"events,omitempty"`
	Event       *model.EventDescriptor  `json:"event,omitempty"`
	Tickets     []model.Ticket          `json:"tickets,omitempty"`
	Ticket      *model.Ticket           `json:"ticket,omitempty"`
	Listings    []model.ResaleListing   `json:"listings,omitempty"`
	Listing     *model.ResaleListing    `json:"listing,omitempty"`
	SaleHistory []model.SaleRecord      `json:"sale_history,omitempty"`
	Sale        *model.SaleRecord       `json:"sale,omitempty"`
	Session     *model.PurchaseSession  `json:"session,omitempty"`
	Auth        *model.Auth             `json:"auth,omitempty"`
}

func (r SuccessResponse) Send(w http.ResponseWriter) {
	w.WriteHeader(r.StatusCode)
	json.NewEncoder(w).Encode(r)
}
