package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"
	"campus-tickets-backend/discovery"
	"campus-tickets-backend/issuer"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/model"
	"campus-tickets-backend/projection"
	"campus-tickets-backend/response"

	"github.com/spf13/viper"
)

// Purchase drives the reserve, opt-in, claim sequence for one buyer. The
// event's preconditions are evaluated against a fresh projection, not a
// cached one, so a sold-out event is refused before any money moves.
func Purchase(service *issuer.Issuer, disc *discovery.Discovery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.PurchaseRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "purchase: error unmarshalling request body: %+v", err)
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

		state, err := disc.Describe(ctx, req.Data.EventAppID)
		if err != nil {
			logger.Errorf(ctx, "purchase: unable to fetch event %d: %+v", req.Data.EventAppID, err)
			response.SomethingWrong().Send(ctx, w)
			return
		}
		event := projection.Event(state)

		ticket, err := service.Purchase(ctx, event, req.Data.Buyer)
		if err != nil {
			var indeterminate *issuer.IndeterminateError
			switch {
			case errors.As(err, &indeterminate):
				logger.Errorf(ctx, "purchase: indeterminate at %s: %+v", indeterminate.Session.State, err)
				resp := response.PurchaseIndeterminate()
				resp.Send(ctx, w)
			case errors.Is(err, issuer.ErrSaleClosed), errors.Is(err, issuer.ErrSaleEnded):
				response.SaleClosed().Send(ctx, w)
			case errors.Is(err, issuer.ErrSoldOut):
				response.SoldOut().Send(ctx, w)
			case errors.Is(err, issuer.ErrPurchaseInFlight):
				response.PurchaseInFlight().Send(ctx, w)
			default:
				logger.Errorf(ctx, "purchase: unable to issue ticket: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Ticket: ticket},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

// MySessions lets a buyer inspect their purchase attempts, in particular the
// indeterminate ones they were told to check after a partial failure.
func MySessions(service *issuer.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		address, ok := bearerAddress(r)
		if !ok {
			response.Unauthorized().Send(ctx, w)
			return
		}

		sessions, err := service.Sessions(ctx, address)
		if err != nil {
			logger.Errorf(ctx, "mySessions: unable to fetch sessions: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       sessions,
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
