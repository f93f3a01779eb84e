package projection

import (
	"encoding/base64"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/model"
)

// Contract-defined global state keys. Names must match the deployed TEAL
// exactly.
const (
	KeyTicketPrice  = "ticket_price"
	KeyMaxSupply    = "max_supply"
	KeySoldCount    = "sold_count"
	KeyEventDate    = "event_date"
	KeySaleEndDate  = "sale_end_date"
	KeyUniqueBuyers = "unique_buyers"
	KeyIsSaleActive = "is_sale_active"

	KeyEventTitle       = "event_title"
	KeyVenue            = "venue"
	KeyEventDescription = "event_description"
)

// Sibling fundraising contract keys, used only for discovery signature
// matching.
const (
	KeyGoalAmount       = "goal_amount"
	KeyRaisedAmount     = "raised_amount"
	KeyMilestoneCount   = "milestone_count"
	KeyCurrentMilestone = "current_milestone"
	KeyContributorCount = "contributor_count"
	KeyIsActive         = "is_active"
	KeyDeadline         = "deadline"
)

const tealBytesType = 1

// State is one application's decoded global state. Absent keys are a valid
// "not yet set" condition, so lookups default rather than fail.
type State struct {
	uints map[string]uint64
	bytes map[string][]byte
}

// Decode turns the raw base64-keyed TealKeyValue list into a State. Entries
// whose key is not valid base64 are skipped; the ledger never produces them
// and a corrupt entry must not sink the rest of the state.
func Decode(raw *algorand.AppState) *State {
	s := &State{
		uints: make(map[string]uint64),
		bytes: make(map[string][]byte),
	}
	if raw == nil {
		return s
	}

	for _, kv := range raw.GlobalState {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			continue
		}
		if kv.Value.Type == tealBytesType {
			b, err := base64.StdEncoding.DecodeString(kv.Value.Bytes)
			if err != nil {
				continue
			}
			s.bytes[string(key)] = b
		} else {
			s.uints[string(key)] = kv.Value.Uint
		}
	}
	return s
}

// Uint returns the numeric value for key, zero when absent. Downstream
// arithmetic never has to deal with null.
func (s *State) Uint(key string) uint64 {
	return s.uints[key]
}

// Flag reports a boolean-like field. The contract encodes booleans as uints
// where exactly 1 means true; anything else, including an absent key, is
// false.
func (s *State) Flag(key string) bool {
	return s.uints[key] == 1
}

// Bytes returns the string value for key, "" when absent.
func (s *State) Bytes(key string) string {
	return string(s.bytes[key])
}

// Has reports whether the key is present at all, regardless of value type.
func (s *State) Has(key string) bool {
	if _, ok := s.uints[key]; ok {
		return true
	}
	_, ok := s.bytes[key]
	return ok
}

// Event projects one ticketing application's state into an EventDescriptor.
func Event(raw *algorand.AppState) model.EventDescriptor {
	s := Decode(raw)
	desc := model.EventDescriptor{
		TicketPriceMicros: s.Uint(KeyTicketPrice),
		MaxSupply:         s.Uint(KeyMaxSupply),
		SoldCount:         s.Uint(KeySoldCount),
		UniqueBuyers:      s.Uint(KeyUniqueBuyers),
		EventDate:         int64(s.Uint(KeyEventDate)),
		SaleEndDate:       int64(s.Uint(KeySaleEndDate)),
		IsSaleActive:      s.Flag(KeyIsSaleActive),
		Title:             s.Bytes(KeyEventTitle),
		Venue:             s.Bytes(KeyVenue),
		Description:       s.Bytes(KeyEventDescription),
	}
	if raw != nil {
		desc.AppID = raw.AppID
		desc.Organizer = raw.Creator
	}
	return desc
}

// Tickets projects an account's asset holdings against a known event into
// Ticket records. Only assets actually held (amount 1) count; a holding of 0
// is an opted-in but undelivered slot.
func Tickets(event model.EventDescriptor, holder string, holdings map[uint64]uint64, eventAssets map[uint64]bool) []model.Ticket {
	var tickets []model.Ticket
	for assetID, amount := range holdings {
		if amount == 0 || !eventAssets[assetID] {
			continue
		}
		tickets = append(tickets, model.Ticket{
			AssetID:             assetID,
			EventAppID:          event.AppID,
			Holder:              holder,
			PurchasePriceMicros: event.TicketPriceMicros,
		})
	}
	return tickets
}
