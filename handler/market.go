package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"
	"campus-tickets-backend/discovery"
	"campus-tickets-backend/issuer"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/market"
	"campus-tickets-backend/model"
	"campus-tickets-backend/projection"
	"campus-tickets-backend/response"

	"github.com/spf13/viper"
)

// ListTicket opens a resale listing for a ticket the caller actually holds.
// Held-ness is established from ledger holdings here; the cap and the used
// check live in the market itself.
func ListTicket(service *market.Market, ledger algorand.Ledger, disc *discovery.Discovery, sessions issuer.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.ListTicketRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "listTicket: error unmarshalling request body: %+v", err)
			response.BadRequest("invalid request body", "").Send(ctx, w)
			return
		}

		if req.Data.Auth == nil {
			response.Unauthorized().Send(ctx, w)
			return
		}
		address, ok := auth.VerifyToken(viper.GetString(config.Secret), req.Data.Auth.Token)
		if !ok || address != req.Data.Seller {
			response.Unauthorized().Send(ctx, w)
			return
		}

		holdings, err := ledger.AccountAssets(ctx, req.Data.Seller)
		if err != nil {
			logger.Errorf(ctx, "listTicket: unable to fetch holdings for %s: %+v", req.Data.Seller, err)
			response.SomethingWrong().Send(ctx, w)
			return
		}
		if holdings[req.Data.AssetID] == 0 {
			response.TicketNotOwned().Send(ctx, w)
			return
		}

		checkedIn, err := sessions.CheckedInAssets(ctx)
		if err != nil {
			logger.Errorf(ctx, "listTicket: unable to fetch check-in states: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		var eventTitle string
		if state, err := disc.Describe(ctx, req.Data.EventAppID); err != nil {
			logger.Warnf(ctx, "listTicket: could not project event %d: %+v", req.Data.EventAppID, err)
		} else {
			eventTitle = projection.Event(state).Title
		}

		ticket := model.Ticket{
			AssetID:    req.Data.AssetID,
			EventAppID: req.Data.EventAppID,
			Holder:     req.Data.Seller,
			CheckedIn:  checkedIn[req.Data.AssetID],
		}

		listing, err := service.List(ctx, ticket, req.Data.AskPriceMicros, eventTitle)
		if err != nil {
			switch {
			case errors.Is(err, market.ErrOverCap):
				response.OverResaleCap().Send(ctx, w)
			case errors.Is(err, market.ErrTicketUsed):
				response.TicketAlreadyUsed().Send(ctx, w)
			case errors.Is(err, market.ErrNonPositivePrice),
				errors.Is(err, market.ErrAlreadyListed),
				errors.Is(err, market.ErrUnknownPrice):
				response.InvalidData(err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "listTicket: unable to create listing: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Listing: listing},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}

// BuyListing settles a listing for the caller: payment and ticket transfer
// as one atomic group, then the sale record.
func BuyListing(service *market.Market) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.BuyListingRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "buyListing: error unmarshalling request body: %+v", err)
			response.BadRequest("invalid request body", "").Send(ctx, w)
			return
		}

		if req.Data.Auth == nil {
			response.Unauthorized().Send(ctx, w)
			return
		}
		address, ok := auth.VerifyToken(viper.GetString(config.Secret), req.Data.Auth.Token)
		if !ok || address != req.Data.Buyer {
			response.Unauthorized().Send(ctx, w)
			return
		}

		record, err := service.Buy(ctx, req.Data.ListingID, req.Data.Buyer)
		if err != nil {
			switch {
			case errors.Is(err, market.ErrListingGone):
				response.ListingGone().Send(ctx, w)
			case errors.Is(err, market.ErrSelfTrade):
				response.SelfTrade().Send(ctx, w)
			case errors.Is(err, market.ErrOverCap):
				response.OverResaleCap().Send(ctx, w)
			default:
				logger.Errorf(ctx, "buyListing: unable to settle listing %s: %+v", req.Data.ListingID, err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Sale: record},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

// CancelListing removes the caller's own listing. No sale record is written.
func CancelListing(service *market.Market) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.CancelListingRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "cancelListing: error unmarshalling request body: %+v", err)
			response.BadRequest("invalid request body", "").Send(ctx, w)
			return
		}

		if req.Data.Auth == nil {
			response.Unauthorized().Send(ctx, w)
			return
		}
		address, ok := auth.VerifyToken(viper.GetString(config.Secret), req.Data.Auth.Token)
		if !ok || address != req.Data.Seller {
			response.Unauthorized().Send(ctx, w)
			return
		}

		if err := service.Cancel(ctx, req.Data.ListingID, req.Data.Seller); err != nil {
			switch {
			case errors.Is(err, market.ErrListingGone):
				response.ListingGone().Send(ctx, w)
			case errors.Is(err, market.ErrNotSeller):
				response.Unauthorized().Send(ctx, w)
			default:
				logger.Errorf(ctx, "cancelListing: unable to cancel listing %s: %+v", req.Data.ListingID, err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

// GetListings returns every open listing.
func GetListings(service *market.Market) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		listings, err := service.Listings(ctx)
		if err != nil {
			logger.Errorf(ctx, "getListings: unable to fetch listings: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Listings: listings},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

// GetSaleHistory returns the append-only resale record.
func GetSaleHistory(service *market.Market) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		records, err := service.History(ctx)
		if err != nil {
			logger.Errorf(ctx, "getSaleHistory: unable to fetch sale history: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{SaleHistory: records},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
